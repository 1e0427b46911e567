package rollout

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid rollout configuration")

// Policy names accepted by Config.Policy.
const (
	PolicyRandom  = "random"
	PolicyEvasive = "evasive"
)

// Config controls a batch of offline episodes.
type Config struct {
	Episodes int `json:"episodes" yaml:"episodes"`
	// Workers bounds the number of episodes simulated at once.
	Workers int    `json:"workers" yaml:"workers"`
	Policy  string `json:"policy" yaml:"policy"`
	// MaxSteps caps every episode, whatever the arena's own truncation says.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
	// Output is the trajectory file; empty disables recording.
	Output string `json:"output" yaml:"output"`
}

func DefaultConfig() Config {
	return Config{
		Episodes: 16,
		Workers:  4,
		Policy:   PolicyEvasive,
		MaxSteps: 5000,
	}
}

func (c Config) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("%w: episodes must be > 0", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: max_steps must be > 0", ErrInvalidConfig)
	}
	switch c.Policy {
	case PolicyRandom, PolicyEvasive:
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy)
	}
	return nil
}
