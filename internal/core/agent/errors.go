package agent

import "errors"

var (
	ErrTerminated    = errors.New("agent is terminated")
	ErrInvalidAction = errors.New("invalid action")
)
