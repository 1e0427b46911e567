// Package reward scores one simulation tick for the learning loop.
package reward

import (
	"fmt"
	"math"

	"github.com/zeusync/dodgesim/internal/core/agent"
	"github.com/zeusync/dodgesim/internal/core/projectile"
	"github.com/zeusync/dodgesim/internal/core/systems/physics"
	"github.com/zeusync/dodgesim/internal/core/trajectory"
)

type Config struct {
	SurvivalReward float64 `json:"survival_reward" yaml:"survival_reward"`
	// WallPenaltyScale weights -|y|/maxY, discouraging the top and bottom edges.
	WallPenaltyScale  float64 `json:"wall_penalty_scale" yaml:"wall_penalty_scale"`
	ReversalBonus     float64 `json:"reversal_bonus" yaml:"reversal_bonus"`
	ReversalThreshold float64 `json:"reversal_threshold" yaml:"reversal_threshold"`
	PredictionTime    float64 `json:"prediction_time" yaml:"prediction_time"`
	SafeDistance      float64 `json:"safe_distance" yaml:"safe_distance"`
	// FutureRewardScale weights the penalty when the predicted distance is
	// inside SafeDistance.
	FutureRewardScale float64 `json:"future_reward_scale" yaml:"future_reward_scale"`
	FutureBonusScale  float64 `json:"future_bonus_scale" yaml:"future_bonus_scale"`
	FutureBonusCap    float64 `json:"future_bonus_cap" yaml:"future_bonus_cap"`
	HitPenalty        float64 `json:"hit_penalty" yaml:"hit_penalty"`
}

func DefaultConfig() Config {
	return Config{
		SurvivalReward:    0.005,
		WallPenaltyScale:  0.005,
		ReversalBonus:     0.1,
		ReversalThreshold: 0.05,
		PredictionTime:    0.5,
		SafeDistance:      1.0,
		FutureRewardScale: 0.01,
		FutureBonusScale:  0.005,
		FutureBonusCap:    0.02,
		HitPenalty:        -1.0,
	}
}

func (c Config) Validate() error {
	fields := map[string]float64{
		"survival_reward":     c.SurvivalReward,
		"wall_penalty_scale":  c.WallPenaltyScale,
		"reversal_bonus":      c.ReversalBonus,
		"reversal_threshold":  c.ReversalThreshold,
		"prediction_time":     c.PredictionTime,
		"safe_distance":       c.SafeDistance,
		"future_reward_scale": c.FutureRewardScale,
		"future_bonus_scale":  c.FutureBonusScale,
		"future_bonus_cap":    c.FutureBonusCap,
		"hit_penalty":         c.HitPenalty,
	}
	for name, v := range fields {
		if !physics.IsFinite(v) {
			return fmt.Errorf("reward %s must be finite", name)
		}
	}
	if c.PredictionTime < 0 {
		return fmt.Errorf("reward prediction_time must be >= 0")
	}
	if c.SafeDistance < 0 {
		return fmt.Errorf("reward safe_distance must be >= 0")
	}
	if c.FutureBonusCap < 0 {
		return fmt.Errorf("reward future_bonus_cap must be >= 0")
	}
	if c.ReversalThreshold < 0 {
		return fmt.Errorf("reward reversal_threshold must be >= 0")
	}
	return nil
}

// Breakdown itemises the reward of one tick.
type Breakdown struct {
	Survival float64 `json:"survival" msgpack:"survival"`
	Wall     float64 `json:"wall" msgpack:"wall"`
	Reversal float64 `json:"reversal" msgpack:"reversal"`
	Risk     float64 `json:"risk" msgpack:"risk"`
	Hit      float64 `json:"hit" msgpack:"hit"`
	Total    float64 `json:"total" msgpack:"total"`
	// MinFutureDistance is only meaningful when RiskApplied is set.
	MinFutureDistance float64 `json:"min_future_distance" msgpack:"min_future_distance"`
	RiskApplied       bool    `json:"risk_applied" msgpack:"risk_applied"`
}

func (b *Breakdown) sum() {
	b.Total = b.Survival + b.Wall + b.Reversal + b.Risk + b.Hit
}

// Source is the iteration side of the projectile pool.
type Source interface {
	Each(fn func(*projectile.Projectile) bool)
}

type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Config() Config { return e.cfg }

// Evaluate computes the per-tick shaping terms. Collisions are added
// separately through ApplyHit.
func (e *Evaluator) Evaluate(st agent.State, src Source) (Breakdown, error) {
	var b Breakdown
	b.Survival = e.cfg.SurvivalReward
	b.Wall = e.wallTerm(st)

	prev, vel := st.PreviousVelocity.Y, st.Velocity.Y
	if math.Abs(prev) > e.cfg.ReversalThreshold && prev*vel < 0 {
		b.Reversal = e.cfg.ReversalBonus
	}

	if risk, minDist, ok := e.ForwardRisk(st.Position, src); ok {
		b.Risk = risk
		b.MinFutureDistance = minDist
		b.RiskApplied = true
	}

	b.sum()
	if err := b.check(); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}

// ApplyHit adds the collision penalty to b. Callers apply it at most once
// per tick.
func (e *Evaluator) ApplyHit(b *Breakdown) {
	b.Hit = e.cfg.HitPenalty
	b.sum()
}

// ForwardRisk predicts every projectile PredictionTime ahead and scores the
// closest predicted approach to pos. ok is false when there are no
// projectiles, in which case the term contributes nothing.
func (e *Evaluator) ForwardRisk(pos physics.Vec2, src Source) (value, minDist float64, ok bool) {
	t := e.cfg.PredictionTime
	minDist = math.MaxFloat64
	finite := true
	src.Each(func(p *projectile.Projectile) bool {
		future := trajectory.Predict(p.Position, p.Velocity, p.Acceleration(), t)
		d := future.Distance(pos)
		if !physics.IsFinite(d) {
			finite = false
			return false
		}
		if d < minDist {
			minDist = d
		}
		ok = true
		return true
	})
	if !finite {
		return math.NaN(), math.NaN(), true
	}
	if !ok {
		return 0, 0, false
	}

	safe := e.cfg.SafeDistance
	if minDist < safe {
		return -(safe - minDist) * e.cfg.FutureRewardScale, minDist, true
	}
	return math.Min((minDist-safe)*e.cfg.FutureBonusScale, e.cfg.FutureBonusCap), minDist, true
}

// wallTerm penalises vertical distance from the arena's horizontal center
// line, normalised by the largest |y| the agent can reach. This is
// max(|MinY|, |MaxY|) rather than MaxY alone, which only differs for bounds
// that are not symmetric about y=0.
func (e *Evaluator) wallTerm(st agent.State) float64 {
	ref := math.Max(math.Abs(st.Bounds.MinY), math.Abs(st.Bounds.MaxY))
	if ref == 0 {
		return 0
	}
	return -e.cfg.WallPenaltyScale * math.Abs(st.Position.Y) / ref
}

func (b Breakdown) check() error {
	terms := [...]struct {
		name string
		v    float64
	}{
		{"survival", b.Survival},
		{"wall", b.Wall},
		{"reversal", b.Reversal},
		{"risk", b.Risk},
		{"total", b.Total},
	}
	for _, t := range terms {
		if !physics.IsFinite(t.v) {
			return fmt.Errorf("%w: %s term is %v", ErrNonFinite, t.name, t.v)
		}
	}
	return nil
}
