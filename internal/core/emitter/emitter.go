// Package emitter spawns projectiles on a fixed timer using one of two
// firing patterns.
package emitter

import (
	"github.com/zeusync/dodgesim/internal/core/projectile"
	"github.com/zeusync/dodgesim/internal/core/systems/physics"
	"github.com/zeusync/dodgesim/internal/core/trajectory"
)

// Rand is the random source used for jitter and burst start angles.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// Target is whatever an aimed emitter tracks. ok=false means nothing to aim at.
type Target interface {
	TargetPosition() (pos physics.Vec2, ok bool)
}

// Spawner receives new projectiles; *projectile.Pool implements it.
type Spawner interface {
	Spawn(position physics.Vec2, spec trajectory.SpawnSpec) projectile.Handle
}

// Controller is a single emitter. It is driven by Update once per tick.
type Controller struct {
	cfg    Config
	rng    Rand
	target Target

	timer   float64
	volleys uint64
	skipped uint64
}

func New(cfg Config, rng Rand, target Target) *Controller {
	return &Controller{cfg: cfg, rng: rng, target: target}
}

func (c *Controller) Config() Config { return c.cfg }

func (c *Controller) SetTarget(t Target) { c.target = t }

// Reset restarts the timer and swaps the random source for a new episode.
func (c *Controller) Reset(rng Rand) {
	c.timer = 0
	if rng != nil {
		c.rng = rng
	}
}

// Volleys returns how many times the emitter fired since creation.
func (c *Controller) Volleys() uint64 { return c.volleys }

// Skipped returns how many aimed volleys were dropped for lack of a target.
func (c *Controller) Skipped() uint64 { return c.skipped }

// Update accumulates dt and fires at most once when the interval elapsed.
// The accumulator is reset to zero rather than reduced by the interval, so a
// long frame never produces two volleys. It returns the number of projectiles
// spawned.
func (c *Controller) Update(dt float64, sp Spawner) int {
	c.timer += dt
	if c.timer < c.cfg.Interval {
		return 0
	}
	c.timer = 0

	var n int
	switch c.cfg.Mode {
	case ModeAimed:
		n = c.fireAimed(sp)
	case ModeRadial:
		n = c.fireRadial(sp)
	}
	return n
}

func (c *Controller) fireAimed(sp Spawner) int {
	if c.target == nil {
		c.skipped++
		return 0
	}
	pos, ok := c.target.TargetPosition()
	if !ok {
		c.skipped++
		return 0
	}

	angle := pos.Sub(c.cfg.Position).AngleDeg()
	angle += (c.rng.Float64()*2 - 1) * c.cfg.AimJitterDeg

	sp.Spawn(c.cfg.Position, c.spec(angle, c.cfg.AngleData.Accel))
	c.volleys++
	return 1
}

func (c *Controller) fireRadial(sp Spawner) int {
	n := c.cfg.BurstCount
	step := 360.0 / float64(n)
	start := 1 + c.rng.Float64()*359

	angleAccel := 0.0
	if c.cfg.BurstAngleAccel {
		angleAccel = c.cfg.AngleData.Accel
	}
	for i := 0; i < n; i++ {
		sp.Spawn(c.cfg.Position, c.spec(start+float64(i)*step, angleAccel))
	}
	c.volleys++
	return n
}

func (c *Controller) spec(angle, angleAccel float64) trajectory.SpawnSpec {
	return trajectory.SpawnSpec{
		InitialSpeed:    c.cfg.SpeedData.Default,
		SpeedAccel:      c.cfg.SpeedData.Accel,
		MaxSpeed:        c.cfg.SpeedData.Max,
		InitialAngleDeg: angle,
		AngleAccel:      angleAccel,
	}
}
