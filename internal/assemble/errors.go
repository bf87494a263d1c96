package assemble

import "errors"

var (
	// ErrFilesystem marks a failure writing or copying a trusted output
	// artifact.
	ErrFilesystem = errors.New("assemble: filesystem error")
	// ErrMergeFailed marks a failed PDF merge, typically mapped to a
	// disk-space hint for the user.
	ErrMergeFailed = errors.New("assemble: pdf merge failed")
)
