package server

import (
	"errors"
	"fmt"
)

var (
	// ErrServerNotRunning is returned by command execution outside Running.
	ErrServerNotRunning = errors.New("language server is not running")

	// ErrConnectionClosed marks a call that failed because the stream closed.
	ErrConnectionClosed = errors.New("language server connection closed")

	// ErrStartAborted is returned when Stop or Restart overtook a start.
	ErrStartAborted = errors.New("language server start aborted")
)

// ExecutableMissingError means the server binary was not found. It is never
// retried.
type ExecutableMissingError struct {
	Path string
}

func (e *ExecutableMissingError) Error() string {
	return fmt.Sprintf("sqls executable not found at %s", e.Path)
}

// StartError wraps a failed spawn or handshake.
type StartError struct {
	Cause error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start language server: %v", e.Cause)
}

func (e *StartError) Unwrap() error {
	return e.Cause
}

// TransportError is reported once the transport error budget is exhausted.
type TransportError struct {
	Count int
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("language server stopped after %d transport errors: %v", e.Count, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// MaxRestartsError is reported when automatic restarts are exhausted.
type MaxRestartsError struct {
	Restarts int
}

func (e *MaxRestartsError) Error() string {
	return fmt.Sprintf("language server crashed %d times, restart it manually", e.Restarts)
}

// CommandError wraps a failed remote command.
type CommandError struct {
	Command string
	Cause   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Cause)
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}
