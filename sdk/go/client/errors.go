package client

import (
	"errors"
	"fmt"

	"github.com/zeusync/dodgesim/internal/server"
)

// Client-specific errors
var (
	ErrClientClosed   = errors.New("client is closed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidConfig  = errors.New("invalid client configuration")
	ErrInvalidMessage = errors.New("invalid message")
	ErrNotReset       = errors.New("environment has not been reset")
	ErrEpisodeOver    = errors.New("episode is over, reset required")
	ErrInvalidAction  = errors.New("invalid action")
)

// ServerError is an error answer from the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// Unwrap maps well-known codes onto this package's sentinels.
func (e *ServerError) Unwrap() error {
	switch e.Code {
	case server.CodeNotReset:
		return ErrNotReset
	case server.CodeEpisodeOver:
		return ErrEpisodeOver
	case server.CodeInvalidAction, server.CodeInvalidDuration:
		return ErrInvalidAction
	case server.CodeBadRequest, server.CodeUnknownMessage:
		return ErrInvalidMessage
	default:
		return nil
	}
}
