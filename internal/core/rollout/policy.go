package rollout

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zeusync/dodgesim/internal/core/agent"
	"github.com/zeusync/dodgesim/internal/core/observation"
	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

//go:generate mockgen -destination=mocks/policy.go -package=mocks . Policy

// Policy maps an observation to an action. Implementations are used by one
// episode at a time.
type Policy interface {
	Act(obs []float64) []float64
}

// NewPolicy builds the named policy for an arena observing k projectiles.
func NewPolicy(name string, k int, seed uint64) (Policy, error) {
	switch name {
	case PolicyRandom:
		return NewRandomPolicy(seed), nil
	case PolicyEvasive:
		return NewEvasivePolicy(k), nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, name)
	}
}

// RandomPolicy wanders: it holds a random direction for a few ticks, then
// picks another.
type RandomPolicy struct {
	rng       *rand.Rand
	HoldSteps int
	SlowProb  float64

	held   []float64
	remain int
}

func NewRandomPolicy(seed uint64) *RandomPolicy {
	return &RandomPolicy{
		rng:       rand.New(rand.NewPCG(seed, ^seed)),
		HoldSteps: 10,
		SlowProb:  0.2,
	}
}

func (p *RandomPolicy) Act(_ []float64) []float64 {
	if p.remain <= 0 || p.held == nil {
		p.held = agent.ActionFromAxes(
			p.rng.Float64()*2-1,
			p.rng.Float64()*2-1,
			p.rng.Float64() < p.SlowProb,
		)
		p.remain = p.HoldSteps
	}
	p.remain--
	return append([]float64(nil), p.held...)
}

// EvasivePolicy steers away from the projectiles it is shown, weighting each
// by how close it will come within Lookahead seconds, with a weak pull back
// towards the arena centre.
type EvasivePolicy struct {
	K          int
	Lookahead  float64
	CenterPull float64
	// FocusDistance switches to slow movement when a projectile is predicted
	// closer than this. Zero never slows down.
	FocusDistance float64
}

func NewEvasivePolicy(k int) *EvasivePolicy {
	return &EvasivePolicy{K: k, Lookahead: 0.5, CenterPull: 0.05}
}

func (p *EvasivePolicy) Act(obs []float64) []float64 {
	if len(obs) < observation.AgentFeatures {
		return agent.ActionFromAxes(0, 0, false)
	}
	pos := physics.V(obs[0], obs[1])

	var push physics.Vec2
	nearest := math.Inf(1)
	for j := 0; j < p.K; j++ {
		base := observation.AgentFeatures + j*observation.FeaturesPerProjectile
		if base+observation.FeaturesPerProjectile > len(obs) {
			break
		}
		slot := obs[base : base+observation.FeaturesPerProjectile]
		if isPadding(slot) {
			continue
		}
		rel := physics.V(slot[0], slot[1])
		vel := physics.V(slot[2], slot[3])

		closest := rel.Add(vel.Scale(p.closestTime(rel, vel)))
		d := closest.Len()
		nearest = math.Min(nearest, d)

		away := closest.Scale(-1)
		if away.IsZero() {
			// dead centre: sidestep perpendicular to the shot
			away = physics.V(-vel.Y, vel.X)
		}
		push = push.Add(away.Normalize().Scale(1 / (d*d + 0.05)))
	}
	push = push.Add(pos.Scale(-p.CenterPull))

	if push.IsZero() {
		return agent.ActionFromAxes(0, 0, false)
	}
	dir := push.Normalize()
	return agent.ActionFromAxes(dir.X, dir.Y, nearest < p.FocusDistance)
}

// closestTime is when a projectile at rel moving with vel is nearest to the
// origin, limited to [0, Lookahead].
func (p *EvasivePolicy) closestTime(rel, vel physics.Vec2) float64 {
	vv := vel.LenSq()
	if vv == 0 {
		return 0
	}
	return physics.Clamp(-rel.Dot(vel)/vv, 0, p.Lookahead)
}

func isPadding(slot []float64) bool {
	for _, f := range slot {
		if f != 0 {
			return false
		}
	}
	return true
}
