// Package env runs one dodging episode at a time: it owns the projectile
// pool, the emitters and the agent, and turns each action into an
// observation and a reward.
package env

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/dodgesim/internal/core/agent"
	"github.com/zeusync/dodgesim/internal/core/emitter"
	"github.com/zeusync/dodgesim/internal/core/events/bus"
	"github.com/zeusync/dodgesim/internal/core/observability/log"
	"github.com/zeusync/dodgesim/internal/core/observation"
	"github.com/zeusync/dodgesim/internal/core/projectile"
	"github.com/zeusync/dodgesim/internal/core/reward"
	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

// ActionSize is the length of the action vector: move x, move y, slow.
const ActionSize = 3

// StepResult is what the learner sees after Reset or Step.
type StepResult struct {
	EpisodeID   string           `json:"episode_id"`
	Step        int              `json:"step"`
	Observation []float64        `json:"observation"`
	Reward      float64          `json:"reward"`
	Done        bool             `json:"done"`
	Truncated   bool             `json:"truncated"`
	Breakdown   reward.Breakdown `json:"breakdown"`
}

// Info describes the shapes and timing of an environment.
type Info struct {
	ObservationSize    int          `json:"observation_size"`
	ActionSize         int          `json:"action_size"`
	ObserveBulletCount int          `json:"observe_bullet_count"`
	FixedDt            float64      `json:"fixed_dt"`
	MaxEpisodeSteps    int          `json:"max_episode_steps"`
	Bounds             physics.Rect `json:"bounds"`
	Emitters           []string     `json:"emitters"`
}

type Option func(*Environment)

func WithLogger(l log.Log) Option {
	return func(e *Environment) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBus publishes episode lifecycle events to b.
func WithBus(b bus.EventBus) Option {
	return func(e *Environment) { e.bus = b }
}

// WithSeed overrides Config.Seed, so several environments built from one
// config play different episodes.
func WithSeed(seed uint64) Option {
	return func(e *Environment) {
		e.seed = seed
		e.seedSet = true
	}
}

// WithSource names the environment in published events.
func WithSource(name string) Option {
	return func(e *Environment) { e.source = name }
}

// Environment is not safe for concurrent use except for Reconfigure.
type Environment struct {
	cfg     Config
	logger  log.Log
	bus     bus.EventBus
	source  string
	seed    uint64
	seedSet bool

	pool      *projectile.Pool
	emitters  []*emitter.Controller
	agent     *agent.Controller
	observer  *observation.Builder
	evaluator *reward.Evaluator

	mu      sync.Mutex
	pending *Config

	started   bool
	over      bool
	collided  bool
	sanitized uint64
	stats     EpisodeStats
	statsBase projectile.Stats
}

func New(cfg Config, opts ...Option) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Environment{
		logger: log.NewNop(),
		source: "env",
	}
	for _, opt := range opts {
		opt(e)
	}
	e.build(cfg)
	return e, nil
}

func (e *Environment) build(cfg Config) {
	e.cfg = cfg
	if !e.seedSet {
		e.seed = cfg.Seed
	}

	e.pool = projectile.NewPool(cfg.Bounds)
	e.agent = agent.New(cfg.Agent, cfg.Bounds)
	e.emitters = make([]*emitter.Controller, 0, len(cfg.Emitters))
	for _, ec := range cfg.Emitters {
		e.emitters = append(e.emitters, emitter.New(ec, nil, e.agent))
	}
	e.observer = observation.NewBuilder(cfg.Observation)
	e.evaluator = reward.NewEvaluator(cfg.Reward)
	e.sanitized = 0
}

// Reconfigure validates cfg and applies it at the next Reset. The running
// episode is not affected.
func (e *Environment) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.pending = &cfg
	e.mu.Unlock()
	return nil
}

func (e *Environment) Config() Config { return e.cfg }

func (e *Environment) Info() Info {
	names := make([]string, len(e.cfg.Emitters))
	for i, ec := range e.cfg.Emitters {
		names[i] = ec.Name
	}
	return Info{
		ObservationSize:    e.observer.Size(),
		ActionSize:         ActionSize,
		ObserveBulletCount: e.cfg.Observation.ObserveBulletCount,
		FixedDt:            e.cfg.FixedDt,
		MaxEpisodeSteps:    e.cfg.MaxEpisodeSteps,
		Bounds:             e.cfg.Bounds,
		Emitters:           names,
	}
}

// Stats returns the counters of the current (or last) episode.
func (e *Environment) Stats() EpisodeStats { return e.stats }

// Agent returns the agent's kinematic state.
func (e *Environment) Agent() agent.State { return e.agent.State() }

// Pool exposes the live projectiles for inspection.
func (e *Environment) Pool() *projectile.Pool { return e.pool }

// Reset starts a new episode: pending config is applied, every projectile is
// destroyed, the agent returns to its spawn point and emitters get fresh
// random streams.
func (e *Environment) Reset() StepResult {
	e.mu.Lock()
	if e.pending != nil {
		e.build(*e.pending)
		e.pending = nil
	}
	e.mu.Unlock()

	episode := e.stats.Episode + 1
	e.stats = EpisodeStats{
		EpisodeID: uuid.NewString(),
		Episode:   episode,
		Seed:      e.seed,
	}

	before := e.pool.Stats()
	e.pool.ClearAll()
	e.agent.Reset()
	for i, em := range e.emitters {
		s := streamSeed(e.seed, episode, i)
		em.Reset(rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)))
	}
	e.statsBase = before

	e.started = true
	e.over = false
	e.collided = false

	e.logger.Debug("episode begin",
		log.String("episode_id", e.stats.EpisodeID),
		log.Uint64("episode", episode),
		log.Uint64("seed", e.seed),
	)
	e.publish(EventEpisodeBegin, e.stats)

	return StepResult{
		EpisodeID:   e.stats.EpisodeID,
		Observation: e.observe(),
	}
}

// ReportCollision marks the agent as hit by something outside the arena's own
// collision check. It takes effect on the next Step and counts once.
func (e *Environment) ReportCollision() {
	if e.started && !e.over {
		e.collided = true
	}
}

// Step advances the episode by one tick. A zero dt uses Config.FixedDt.
// Emitters fire first, then projectiles move, then the agent; the
// observation and reward are taken from the resulting state.
func (e *Environment) Step(action []float64, dt float64) (StepResult, error) {
	if !e.started {
		return StepResult{}, ErrNotReset
	}
	if e.over {
		return StepResult{}, ErrEpisodeTerminated
	}
	if dt == 0 {
		dt = e.cfg.FixedDt
	}
	if dt < 0 || !physics.IsFinite(dt) {
		return StepResult{}, fmt.Errorf("%w: %v", ErrInvalidDt, dt)
	}
	if err := agent.ValidateAction(action); err != nil {
		return StepResult{}, err
	}

	for _, em := range e.emitters {
		em.Update(dt, e.pool)
	}
	e.pool.Tick(dt)
	if err := e.agent.ApplyAction(action, dt); err != nil {
		return StepResult{}, err
	}

	external := e.collided
	hit := external || e.detectCollision()
	e.collided = false

	st := e.agent.State()
	obs := e.observe()

	bd, err := e.evaluator.Evaluate(st, e.pool)
	if err != nil {
		e.logger.Error("reward evaluation failed",
			log.String("episode_id", e.stats.EpisodeID),
			log.Int("step", e.stats.Steps+1),
			log.Error(err),
		)
		// the world has already advanced; the episode cannot be resumed
		e.agent.Terminate()
		e.over = true
		e.finish()
		return StepResult{}, err
	}

	e.stats.Steps++
	if hit {
		e.evaluator.ApplyHit(&bd)
		e.agent.Terminate()
		e.stats.Hits++
		e.publish(EventAgentHit, HitEvent{
			EpisodeID: e.stats.EpisodeID,
			Step:      e.stats.Steps,
			Position:  st.Position,
			External:  external,
		})
	}
	e.stats.Return += bd.Total

	res := StepResult{
		EpisodeID:   e.stats.EpisodeID,
		Step:        e.stats.Steps,
		Observation: obs,
		Reward:      bd.Total,
		Done:        hit,
		Breakdown:   bd,
	}
	if !hit && e.cfg.MaxEpisodeSteps > 0 && e.stats.Steps >= e.cfg.MaxEpisodeSteps {
		res.Truncated = true
		e.stats.Truncated = true
	}

	if res.Done || res.Truncated {
		e.over = true
		e.finish()
	}
	return res, nil
}

func (e *Environment) detectCollision() bool {
	box := e.agent.Box()
	half := physics.V(e.cfg.ProjectileHalfExtent, e.cfg.ProjectileHalfExtent)

	var hit bool
	e.pool.Each(func(p *projectile.Projectile) bool {
		if box.Overlaps(physics.AABB{Center: p.Position, Half: half}) {
			hit = true
			return false
		}
		return true
	})
	return hit
}

func (e *Environment) observe() []float64 {
	obs := e.observer.Build(e.agent.State(), e.pool)
	if n := e.observer.Sanitized(); n > e.sanitized {
		e.logger.Warn("non-finite observation values replaced with zero",
			log.String("episode_id", e.stats.EpisodeID),
			log.Uint64("count", n-e.sanitized),
		)
		e.sanitized = n
	}
	return obs
}

func (e *Environment) finish() {
	ps := e.pool.Stats()
	e.stats.Spawned = ps.Spawned - e.statsBase.Spawned
	e.stats.Culled = ps.Culled - e.statsBase.Culled

	e.logger.Info("episode end",
		log.String("episode_id", e.stats.EpisodeID),
		log.Int("steps", e.stats.Steps),
		log.Float64("return", e.stats.Return),
		log.Bool("truncated", e.stats.Truncated),
	)
	e.publish(EventEpisodeEnd, e.stats)
}

func (e *Environment) publish(typ string, data any) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(bus.NewEvent(typ, e.source, data)); err != nil {
		e.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}
