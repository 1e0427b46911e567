package server

import (
	"errors"

	"github.com/zeusync/dodgesim/internal/core/agent"
	"github.com/zeusync/dodgesim/internal/core/env"
)

// Message types a client may send.
const (
	MessageReset     = "reset"
	MessageStep      = "step"
	MessageInfo      = "info"
	MessageCollision = "collision"
)

// Message types the server answers with.
const (
	MessageObservation = "observation"
	MessageAck         = "ack"
	MessageError       = "error"
)

// Error codes carried by MessageError.
const (
	CodeBadRequest      = "bad_request"
	CodeInvalidAction   = "invalid_action"
	CodeNotReset        = "not_reset"
	CodeEpisodeOver     = "episode_over"
	CodeInternal        = "internal"
	CodeUnknownMessage  = "unknown_message"
	CodeInvalidDuration = "invalid_dt"
)

// Request is one client message. Seq is echoed back so clients can match
// responses.
type Request struct {
	Type   string    `json:"type"`
	Seq    uint64    `json:"seq,omitempty"`
	Action []float64 `json:"action,omitempty"`
	// Dt is the tick duration in seconds; zero uses the arena's fixed_dt.
	Dt float64 `json:"dt,omitempty"`
}

type Response struct {
	Type   string          `json:"type"`
	Seq    uint64          `json:"seq,omitempty"`
	Result *env.StepResult `json:"result,omitempty"`
	Info   *env.Info       `json:"info,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func errorResponse(seq uint64, err error) Response {
	return Response{Type: MessageError, Seq: seq, Error: err.Error(), Code: errorCode(err)}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, agent.ErrInvalidAction):
		return CodeInvalidAction
	case errors.Is(err, env.ErrNotReset):
		return CodeNotReset
	case errors.Is(err, env.ErrEpisodeTerminated):
		return CodeEpisodeOver
	case errors.Is(err, env.ErrInvalidDt):
		return CodeInvalidDuration
	case errors.Is(err, ErrUnknownMessage):
		return CodeUnknownMessage
	case errors.Is(err, ErrInvalidMessage):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}
