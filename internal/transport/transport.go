// Package transport spawns the conversion worker as a disposable child
// process and exposes its stdin/stdout as the byte pipes the controller
// frames files onto and reads pages from. The worker's filesystem and
// memory are assumed discarded by whoever launches the real disposable VM;
// this package only models the subprocess-shaped half of that contract.
package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Worker wraps a spawned conversion worker process.
type Worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

// Spawn starts name with args, piping stdin and stdout. If forwardStderr is
// true the child's stderr is inherited from the parent process; otherwise
// it is discarded.
func Spawn(name string, args []string, forwardStderr bool) (*Worker, error) {
	cmd := exec.Command(name, args...)

	if forwardStderr {
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stderr = nil
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: could not open worker stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: could not open worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transport: worker failed to start: %w", err)
	}

	return &Worker{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// Stdin returns the pipe the transmitter writes files onto. It must be
// written to by a single goroutine; writing and reading Stdout from the
// same goroutine can deadlock once the worker's own pipe buffers fill.
func (w *Worker) Stdin() io.WriteCloser { return w.stdin }

// Stdout returns the pipe page records are read from.
func (w *Worker) Stdout() io.ReadCloser { return w.stdout }

// CloseStdin signals end of input to the worker. Safe to call once the
// transmitter has written every file.
func (w *Worker) CloseStdin() error {
	return w.stdin.Close()
}

// Wait blocks until the worker exits and reports whether it exited
// cleanly. A non-nil error here, or a short/absent read from Stdout before
// it, means the transport is broken and any files still in flight must be
// failed.
func (w *Worker) Wait() error {
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportBroken, err)
	}
	return nil
}

// Kill terminates the worker immediately. Used when the controller aborts
// the session on a session-fatal error.
func (w *Worker) Kill() error {
	if w.cmd.Process == nil {
		return errors.New("transport: worker was never started")
	}
	return w.cmd.Process.Kill()
}

// ErrTransportBroken marks a worker process that exited early or whose
// stdout ended before the controller finished reading an in-flight frame.
var ErrTransportBroken = errors.New("transport: worker connection broken")
