package env

import (
	"fmt"

	"github.com/zeusync/dodgesim/internal/core/agent"
	"github.com/zeusync/dodgesim/internal/core/emitter"
	"github.com/zeusync/dodgesim/internal/core/observation"
	"github.com/zeusync/dodgesim/internal/core/reward"
	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

// Config describes one arena and its episode rules.
type Config struct {
	// Seed is the base of every per-episode random stream.
	Seed uint64 `json:"seed" yaml:"seed"`
	// FixedDt is used when a step does not carry its own tick duration.
	FixedDt float64 `json:"fixed_dt" yaml:"fixed_dt"`
	// MaxEpisodeSteps truncates episodes; zero disables truncation.
	MaxEpisodeSteps int          `json:"max_episode_steps" yaml:"max_episode_steps"`
	Bounds          physics.Rect `json:"bounds" yaml:"bounds"`
	// ProjectileHalfExtent is the half size of each projectile's trigger box.
	ProjectileHalfExtent float64            `json:"projectile_half_extent" yaml:"projectile_half_extent"`
	Emitters             []emitter.Config   `json:"emitters" yaml:"emitters"`
	Agent                agent.Config       `json:"agent" yaml:"agent"`
	Observation          observation.Config `json:"observation" yaml:"observation"`
	Reward               reward.Config      `json:"reward" yaml:"reward"`
}

func DefaultConfig() Config {
	return Config{
		FixedDt:              0.02,
		Bounds:               physics.Rect{MinX: -10, MaxX: 10, MinY: -6, MaxY: 6},
		ProjectileHalfExtent: 0.1,
		Emitters:             []emitter.Config{emitter.DefaultConfig()},
		Agent:                agent.DefaultConfig(),
		Observation:          observation.DefaultConfig(),
		Reward:               reward.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if err := c.Bounds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.FixedDt <= 0 || !physics.IsFinite(c.FixedDt) {
		return fmt.Errorf("%w: fixed_dt must be > 0, got %v", ErrInvalidConfig, c.FixedDt)
	}
	if c.MaxEpisodeSteps < 0 {
		return fmt.Errorf("%w: max_episode_steps must be >= 0", ErrInvalidConfig)
	}
	if c.ProjectileHalfExtent < 0 {
		return fmt.Errorf("%w: projectile_half_extent must be >= 0", ErrInvalidConfig)
	}

	names := make(map[string]struct{}, len(c.Emitters))
	for i, em := range c.Emitters {
		if err := em.Validate(); err != nil {
			return fmt.Errorf("%w: emitter %d: %w", ErrInvalidConfig, i, err)
		}
		if _, dup := names[em.Name]; dup {
			return fmt.Errorf("%w: duplicate emitter name %q", ErrInvalidConfig, em.Name)
		}
		names[em.Name] = struct{}{}
	}

	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Observation.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Reward.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
