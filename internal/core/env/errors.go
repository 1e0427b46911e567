package env

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid environment configuration")
	ErrNotReset          = errors.New("environment has not been reset")
	ErrEpisodeTerminated = errors.New("episode is over, reset required")
	ErrInvalidDt         = errors.New("invalid tick duration")
)
