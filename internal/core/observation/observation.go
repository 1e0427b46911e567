// Package observation encodes the agent's view of the arena as a fixed-size
// feature vector.
//
// Layout for k observed projectiles:
//
//	[agentX, agentY, rel0.x, rel0.y, vel0.x, vel0.y, acc0.x, acc0.y, rel1.x, ...]
//
// Projectiles are ordered nearest first; missing slots are zero.
package observation

import (
	"fmt"

	"github.com/zeusync/dodgesim/internal/core/agent"
	"github.com/zeusync/dodgesim/internal/core/projectile"
	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

const (
	AgentFeatures         = 2
	FeaturesPerProjectile = 6
)

// Size is the observation length for k observed projectiles.
func Size(k int) int { return AgentFeatures + FeaturesPerProjectile*k }

type Config struct {
	ObserveBulletCount int `json:"observe_bullet_count" yaml:"observe_bullet_count"`
	// NormalizeAcceleration divides the velocity delta by the tick duration,
	// giving per-second units. Off by default, which keeps the raw per-tick
	// delta that existing policies were trained on.
	NormalizeAcceleration bool `json:"normalize_acceleration" yaml:"normalize_acceleration"`
}

func DefaultConfig() Config {
	return Config{ObserveBulletCount: 3}
}

func (c Config) Validate() error {
	if c.ObserveBulletCount < 0 {
		return fmt.Errorf("observe bullet count must be >= 0, got %d", c.ObserveBulletCount)
	}
	return nil
}

// Source is the read side of the projectile pool.
type Source interface {
	Nearest(point physics.Vec2, k int) []projectile.Handle
	Get(h projectile.Handle) (*projectile.Projectile, bool)
}

type Builder struct {
	k         int
	normalize bool
	sanitized uint64
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{k: cfg.ObserveBulletCount, normalize: cfg.NormalizeAcceleration}
}

// Size is the length of every vector this builder produces.
func (b *Builder) Size() int { return Size(b.k) }

// Sanitized counts the non-finite values replaced by zero so far.
func (b *Builder) Sanitized() uint64 { return b.sanitized }

// Build returns a fresh observation vector.
func (b *Builder) Build(st agent.State, src Source) []float64 {
	return b.BuildInto(make([]float64, b.Size()), st, src)
}

// BuildInto writes the observation into dst, reallocating only when dst is
// too small, and returns the filled slice.
func (b *Builder) BuildInto(dst []float64, st agent.State, src Source) []float64 {
	size := b.Size()
	if cap(dst) < size {
		dst = make([]float64, size)
	}
	dst = dst[:size]
	clear(dst)

	dst[0] = b.finite(st.Position.X)
	dst[1] = b.finite(st.Position.Y)

	i := AgentFeatures
	for _, h := range src.Nearest(st.Position, b.k) {
		p, ok := src.Get(h)
		if !ok {
			continue
		}
		rel := p.Position.Sub(st.Position)
		acc := p.Acceleration()
		if b.normalize && p.LastDt > 0 {
			acc = acc.Scale(1 / p.LastDt)
		}
		dst[i+0] = b.finite(rel.X)
		dst[i+1] = b.finite(rel.Y)
		dst[i+2] = b.finite(p.Velocity.X)
		dst[i+3] = b.finite(p.Velocity.Y)
		dst[i+4] = b.finite(acc.X)
		dst[i+5] = b.finite(acc.Y)
		i += FeaturesPerProjectile
	}
	return dst
}

func (b *Builder) finite(f float64) float64 {
	if physics.IsFinite(f) {
		return f
	}
	b.sanitized++
	return 0
}

// Build is a one-shot helper around Builder for k observed projectiles.
func Build(st agent.State, src Source, k int) []float64 {
	return NewBuilder(Config{ObserveBulletCount: k}).Build(st, src)
}
