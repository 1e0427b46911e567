// Package trajectory advances a projectile along its parametric speed/angle
// curve. Everything here is a pure function of the spawn parameters, the
// current state and the tick duration.
package trajectory

import (
	"math"

	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

// SpawnSpec fully determines a projectile's flight once it is created.
// MaxSpeed <= 0 means the speed is not capped.
type SpawnSpec struct {
	InitialSpeed    float64 `json:"initial_speed" msgpack:"initial_speed"`
	SpeedAccel      float64 `json:"speed_accel" msgpack:"speed_accel"`
	MaxSpeed        float64 `json:"max_speed" msgpack:"max_speed"`
	InitialAngleDeg float64 `json:"initial_angle_deg" msgpack:"initial_angle_deg"`
	AngleAccel      float64 `json:"angle_accel" msgpack:"angle_accel"`
}

// State is the mutable kinematic part of a projectile.
type State struct {
	Position physics.Vec2
	Speed    float64
	AngleDeg float64
	Velocity physics.Vec2
}

// SpeedCap returns the effective upper bound on speed.
func (s SpawnSpec) SpeedCap() float64 {
	if s.MaxSpeed > 0 {
		return s.MaxSpeed
	}
	return math.Inf(1)
}

// ClampSpeed keeps speed inside [0, SpeedCap()].
func (s SpawnSpec) ClampSpeed(speed float64) float64 {
	if speed < 0 {
		return 0
	}
	if c := s.SpeedCap(); speed > c {
		return c
	}
	return speed
}

// Initial returns the age-0 state of a projectile spawned at pos.
func Initial(pos physics.Vec2, spec SpawnSpec) State {
	speed := spec.ClampSpeed(spec.InitialSpeed)
	return State{
		Position: pos,
		Speed:    speed,
		AngleDeg: spec.InitialAngleDeg,
		Velocity: physics.FromAngleDeg(spec.InitialAngleDeg).Scale(speed),
	}
}

// Advance integrates one tick of length dt. Speed and angle are updated first,
// then the new velocity moves the position, so position' = position + velocity'*dt.
func Advance(s State, spec SpawnSpec, dt float64) State {
	speed := spec.ClampSpeed(s.Speed + spec.SpeedAccel*dt)
	angle := s.AngleDeg + spec.AngleAccel*dt
	vel := physics.FromAngleDeg(angle).Scale(speed)
	return State{
		Position: s.Position.Add(vel.Scale(dt)),
		Speed:    speed,
		AngleDeg: angle,
		Velocity: vel,
	}
}

// Predict extrapolates a point with constant acceleration over horizon t:
// p + v*t + 0.5*a*t^2.
func Predict(p, v, a physics.Vec2, t float64) physics.Vec2 {
	return p.Add(v.Scale(t)).Add(a.Scale(0.5 * t * t))
}
