// Package agent moves the player-controlled dodger from continuous actions.
package agent

import (
	"fmt"
	"math"

	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

// Status is the episode-level state of the agent.
type Status uint8

const (
	StatusActive Status = iota
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// slowThreshold is the value of the third action component above which the
// agent moves at SlowSpeed.
const slowThreshold = 0.5

type Config struct {
	NormalSpeed float64      `json:"normal_speed" yaml:"normal_speed"`
	SlowSpeed   float64      `json:"slow_speed" yaml:"slow_speed"`
	Spawn       physics.Vec2 `json:"spawn" yaml:"spawn"`
	// HalfExtent is the half size of the agent's square trigger box.
	HalfExtent float64 `json:"half_extent" yaml:"half_extent"`
	// Bounds restricts movement; nil means the arena bounds.
	Bounds *physics.Rect `json:"bounds,omitempty" yaml:"bounds,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		NormalSpeed: 5,
		SlowSpeed:   2,
		Spawn:       physics.V(-5, 0),
		HalfExtent:  0.25,
	}
}

func (c Config) Validate() error {
	if c.NormalSpeed <= 0 || !physics.IsFinite(c.NormalSpeed) {
		return fmt.Errorf("agent normal speed must be > 0")
	}
	if c.SlowSpeed < 0 || c.SlowSpeed > c.NormalSpeed {
		return fmt.Errorf("agent slow speed must be in [0, normal speed]")
	}
	if c.HalfExtent < 0 {
		return fmt.Errorf("agent half extent must be >= 0")
	}
	if !c.Spawn.IsFinite() {
		return fmt.Errorf("agent spawn must be finite")
	}
	if c.Bounds != nil {
		if err := c.Bounds.Validate(); err != nil {
			return fmt.Errorf("agent bounds: %w", err)
		}
	}
	return nil
}

// State is the agent's kinematic state.
type State struct {
	Position         physics.Vec2
	Velocity         physics.Vec2
	PreviousVelocity physics.Vec2
	Bounds           physics.Rect
}

type Controller struct {
	cfg    Config
	state  State
	status Status
}

// New creates an active agent at its spawn point. arena is used when the
// config carries no bounds of its own.
func New(cfg Config, arena physics.Rect) *Controller {
	bounds := arena
	if cfg.Bounds != nil {
		bounds = *cfg.Bounds
	}
	c := &Controller{cfg: cfg, state: State{Bounds: bounds}}
	c.Reset()
	return c
}

func (c *Controller) State() State   { return c.state }
func (c *Controller) Status() Status { return c.status }
func (c *Controller) Config() Config { return c.cfg }

// TargetPosition lets aimed emitters track the agent.
func (c *Controller) TargetPosition() (physics.Vec2, bool) {
	return c.state.Position, true
}

// Box is the agent's trigger volume.
func (c *Controller) Box() physics.AABB {
	return physics.AABB{Center: c.state.Position, Half: physics.V(c.cfg.HalfExtent, c.cfg.HalfExtent)}
}

// Reset puts the agent back at its spawn point with zero velocity.
func (c *Controller) Reset() {
	c.state.Position = c.state.Bounds.Clamp(c.cfg.Spawn)
	c.state.Velocity = physics.Vec2{}
	c.state.PreviousVelocity = physics.Vec2{}
	c.status = StatusActive
}

// Terminate ends the episode for this agent.
func (c *Controller) Terminate() { c.status = StatusTerminated }

// ApplyAction turns an action [moveX, moveY, slow?] into a velocity and moves
// the agent by it for dt seconds.
func (c *Controller) ApplyAction(action []float64, dt float64) error {
	if c.status == StatusTerminated {
		return ErrTerminated
	}
	if err := ValidateAction(action); err != nil {
		return err
	}

	move := c.Velocity(action)

	pos := c.state.Position
	b := c.state.Bounds
	if (pos.X <= b.MinX && move.X < 0) || (pos.X >= b.MaxX && move.X > 0) {
		move.X = 0
	}
	if (pos.Y <= b.MinY && move.Y < 0) || (pos.Y >= b.MaxY && move.Y > 0) {
		move.Y = 0
	}

	c.state.PreviousVelocity = c.state.Velocity
	c.state.Velocity = move
	c.state.Position = b.Clamp(pos.Add(move.Scale(dt)))
	return nil
}

// ValidateAction reports whether an action can be applied: at least two
// components, all finite.
func ValidateAction(action []float64) error {
	if len(action) < 2 {
		return fmt.Errorf("%w: need at least 2 components, got %d", ErrInvalidAction, len(action))
	}
	for i, a := range action {
		if !physics.IsFinite(a) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidAction, i, a)
		}
	}
	return nil
}

// Velocity maps an action to the velocity it requests, before boundary
// handling. Diagonal input never exceeds the axis speed.
func (c *Controller) Velocity(action []float64) physics.Vec2 {
	in := physics.V(physics.Clamp(action[0], -1, 1), physics.Clamp(action[1], -1, 1))
	if in.LenSq() > 1 {
		in = in.Normalize()
	}

	speed := c.cfg.NormalSpeed
	if len(action) >= 3 && physics.Clamp(action[2], 0, 1) > slowThreshold {
		speed = c.cfg.SlowSpeed
	}
	return in.Scale(speed)
}

// ActionFromAxes builds an action from raw input axes and a slow modifier,
// the same shape a human controller produces.
func ActionFromAxes(horizontal, vertical float64, slow bool) []float64 {
	s := 0.0
	if slow {
		s = 1
	}
	return []float64{clampAxis(horizontal), clampAxis(vertical), s}
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return physics.Clamp(v, -1, 1)
}
