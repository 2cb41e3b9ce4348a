package app

import (
	"errors"
	"fmt"

	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/joacominatel/sqlbridge/internal/server"
)

// ErrConnection represents a language server or connection error.
type ErrConnection struct {
	Cause error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrQuery represents a query execution error.
type ErrQuery struct {
	Query string
	Cause error
}

func (e *ErrQuery) Error() string {
	return fmt.Sprintf("query error: %v", e.Cause)
}

func (e *ErrQuery) Unwrap() error {
	return e.Cause
}

// ErrConfig represents a saved-connection or configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}

// Hint returns a short suggestion for the user about err, or "".
func Hint(err error) string {
	var (
		missing *server.ExecutableMissingError
		maxed   *server.MaxRestartsError
	)
	switch {
	case errors.As(err, &missing):
		return "install sqls under the server root or set server.binary"
	case errors.Is(err, server.ErrServerNotRunning), errors.As(err, &maxed):
		return "press F2 to restart the language server"
	case errors.Is(err, connstore.ErrNotFound):
		return "add the connection first"
	}
	return ""
}
