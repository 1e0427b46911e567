// Package rollout plays batches of episodes offline with a scripted policy,
// optionally recording every transition for later training.
package rollout

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/zeusync/dodgesim/internal/core/env"
	"github.com/zeusync/dodgesim/internal/core/events/bus"
	"github.com/zeusync/dodgesim/internal/core/observability/log"
	"github.com/zeusync/dodgesim/pkg/concurrent"
)

// PolicyFactory builds the policy for one episode.
type PolicyFactory func(episode int, seed uint64) Policy

// EpisodeResult summarises one finished episode.
type EpisodeResult struct {
	Episode   int     `json:"episode"`
	EpisodeID string  `json:"episode_id"`
	Seed      uint64  `json:"seed"`
	Steps     int     `json:"steps"`
	Return    float64 `json:"return"`
	Hit       bool    `json:"hit"`
	Truncated bool    `json:"truncated"`
}

type Summary struct {
	Episodes   int             `json:"episodes"`
	Steps      int             `json:"steps"`
	Hits       int             `json:"hits"`
	Truncated  int             `json:"truncated"`
	MeanReturn float64         `json:"mean_return"`
	MinReturn  float64         `json:"min_return"`
	MaxReturn  float64         `json:"max_return"`
	Duration   time.Duration   `json:"duration"`
	Results    []EpisodeResult `json:"results"`
}

type Runner struct {
	cfg      Config
	envCfg   env.Config
	policies PolicyFactory
	logger   log.Log
	bus      bus.EventBus
	recorder *Recorder
}

type Option func(*Runner)

func WithPolicyFactory(f PolicyFactory) Option {
	return func(r *Runner) { r.policies = f }
}

func WithLogger(l log.Log) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBus forwards every episode's lifecycle events to b.
func WithBus(b bus.EventBus) Option {
	return func(r *Runner) { r.bus = b }
}

func WithRecorder(rec *Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

func NewRunner(cfg Config, envCfg env.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := envCfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		envCfg: envCfg,
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policies == nil {
		k := envCfg.Observation.ObserveBulletCount
		name := cfg.Policy
		r.policies = func(_ int, seed uint64) Policy {
			p, _ := NewPolicy(name, k, seed) // name checked by Validate
			return p
		}
	}
	return r, nil
}

// Run plays Config.Episodes episodes on at most Config.Workers goroutines.
// Episode i uses seed envCfg.Seed+i, so a run is reproducible regardless of
// scheduling. The first failing episode cancels the rest.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	r.logger.Info("Rollout started",
		log.Int("episodes", r.cfg.Episodes),
		log.Int("workers", r.cfg.Workers),
		log.String("policy", r.cfg.Policy))

	results, err := concurrent.ParallelMap(ctx, r.cfg.Episodes, r.cfg.Workers, r.runEpisode)
	if err != nil {
		r.logger.Error("Rollout failed", log.Error(err))
		return Summary{}, err
	}

	sum := summarize(results)
	sum.Duration = time.Since(start)

	r.logger.Info("Rollout finished",
		log.Int("episodes", sum.Episodes),
		log.Int("steps", sum.Steps),
		log.Int("hits", sum.Hits),
		log.Float64("mean_return", sum.MeanReturn),
		log.Duration("duration", sum.Duration))
	return sum, nil
}

func (r *Runner) runEpisode(ctx context.Context, i int) (EpisodeResult, error) {
	seed := r.envCfg.Seed + uint64(i)
	opts := []env.Option{
		env.WithSeed(seed),
		env.WithLogger(r.logger.With(log.Int("episode", i))),
		env.WithSource(fmt.Sprintf("rollout-%d", i)),
	}
	if r.bus != nil {
		opts = append(opts, env.WithBus(r.bus))
	}

	e, err := env.New(r.envCfg, opts...)
	if err != nil {
		return EpisodeResult{}, err
	}
	policy := r.policies(i, seed)

	res := e.Reset()
	traj := Trajectory{EpisodeID: res.EpisodeID, Episode: i, Seed: seed}
	out := EpisodeResult{Episode: i, EpisodeID: res.EpisodeID, Seed: seed}

	for out.Steps < r.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		action := policy.Act(res.Observation)
		next, err := e.Step(action, 0)
		if err != nil {
			return out, fmt.Errorf("episode %d step %d: %w", i, out.Steps+1, err)
		}

		if r.recorder != nil {
			traj.Steps = append(traj.Steps, Step{
				Observation: res.Observation,
				Action:      action,
				Reward:      next.Reward,
				Done:        next.Done,
				Truncated:   next.Truncated,
			})
		}

		out.Steps++
		out.Return += next.Reward
		res = next
		if next.Done || next.Truncated {
			out.Hit = next.Done
			out.Truncated = next.Truncated
			break
		}
	}
	if !out.Hit && !out.Truncated {
		out.Truncated = true
		if n := len(traj.Steps); n > 0 {
			traj.Steps[n-1].Truncated = true
		}
	}

	if r.recorder != nil {
		traj.Return = out.Return
		if err := r.recorder.Write(&traj); err != nil {
			return out, err
		}
	}
	return out, nil
}

func summarize(results []EpisodeResult) Summary {
	sum := Summary{
		Episodes:  len(results),
		Results:   results,
		MinReturn: math.Inf(1),
		MaxReturn: math.Inf(-1),
	}
	if len(results) == 0 {
		sum.MinReturn, sum.MaxReturn = 0, 0
		return sum
	}

	var total float64
	for _, res := range results {
		sum.Steps += res.Steps
		if res.Hit {
			sum.Hits++
		}
		if res.Truncated {
			sum.Truncated++
		}
		total += res.Return
		sum.MinReturn = math.Min(sum.MinReturn, res.Return)
		sum.MaxReturn = math.Max(sum.MaxReturn, res.Return)
	}
	sum.MeanReturn = total / float64(len(results))
	return sum
}
