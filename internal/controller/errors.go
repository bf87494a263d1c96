package controller

import "errors"

// Sentinel errors a session can end with. Every one is wrapped with %w so
// callers can errors.Is against these while still getting a specific
// message.
var (
	// ErrCapExceeded mirrors guard.ErrCapExceeded: the worker reported a
	// page count or dimension past the hard resource caps.
	ErrCapExceeded = errors.New("controller: resource cap exceeded")
	// ErrTransportBroken mirrors transport.ErrTransportBroken: the worker
	// process exited, or its stdout ended, mid-stream.
	ErrTransportBroken = errors.New("controller: worker connection broken")
	// ErrSubprocessFailed marks a client-side subprocess (gm, tesseract)
	// failure during page assembly.
	ErrSubprocessFailed = errors.New("controller: subprocess failed")
	// ErrInvalidOutputContract marks a worker reply that violates the
	// wire contract (e.g. an Image file reporting more than one page).
	ErrInvalidOutputContract = errors.New("controller: worker violated output contract")
	// ErrFilesystem marks a failure writing, moving, or archiving a file
	// on the trusted side.
	ErrFilesystem = errors.New("controller: filesystem error")
	// ErrCancelled marks a session stopped by its context being
	// cancelled, as opposed to any error intrinsic to the conversion
	// itself.
	ErrCancelled = errors.New("controller: session cancelled")
)
