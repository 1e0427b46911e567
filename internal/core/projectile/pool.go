// Package projectile owns the live enemy projectiles of an arena.
//
// Storage is a generation-tagged slot map: a Handle stays valid until the
// projectile it names is removed, and removing one projectile never
// invalidates another. Iteration and tie-breaking follow insertion order so
// that observations are reproducible.
package projectile

import (
	"cmp"
	"slices"

	"github.com/zeusync/dodgesim/internal/core/systems/physics"
	"github.com/zeusync/dodgesim/internal/core/trajectory"
)

// Handle names a projectile. The zero Handle never names a live projectile.
type Handle uint64

func makeHandle(index, gen uint32) Handle { return Handle(uint64(gen)<<32 | uint64(index)) }

func (h Handle) index() uint32      { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

// Projectile is a single enemy bullet.
type Projectile struct {
	ID               Handle
	Position         physics.Vec2
	Speed            float64
	AngleDeg         float64
	Velocity         physics.Vec2
	PreviousVelocity physics.Vec2
	Spec             trajectory.SpawnSpec
	Age              float64
	// LastDt is the duration of the tick that produced Velocity.
	LastDt float64

	seq uint64
}

// Acceleration is the finite difference of the last two velocities. It is a
// raw per-tick delta, not divided by LastDt.
func (p *Projectile) Acceleration() physics.Vec2 {
	return p.Velocity.Sub(p.PreviousVelocity)
}

// Stats counts pool lifecycle events since creation.
type Stats struct {
	Spawned uint64
	Culled  uint64
	Removed uint64
	Cleared uint64
}

type slot struct {
	gen  uint32
	live bool
	p    Projectile
}

// Pool is not safe for concurrent use; it belongs to one simulation loop.
type Pool struct {
	bounds  physics.Rect
	slots   []slot
	free    []uint32
	order   []Handle
	nextSeq uint64
	stats   Stats
}

func NewPool(bounds physics.Rect) *Pool {
	return &Pool{bounds: bounds}
}

func (p *Pool) Bounds() physics.Rect { return p.bounds }

// SetBounds changes the culling rectangle for subsequent ticks.
func (p *Pool) SetBounds(bounds physics.Rect) { p.bounds = bounds }

func (p *Pool) Len() int { return len(p.order) }

func (p *Pool) Stats() Stats { return p.stats }

// Spawn inserts a projectile at position whose flight is fully described by spec.
func (p *Pool) Spawn(position physics.Vec2, spec trajectory.SpawnSpec) Handle {
	var idx uint32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		idx = uint32(len(p.slots))
		p.slots = append(p.slots, slot{})
	}

	s := &p.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.live = true

	st := trajectory.Initial(position, spec)
	h := makeHandle(idx, s.gen)
	s.p = Projectile{
		ID:               h,
		Position:         st.Position,
		Speed:            st.Speed,
		AngleDeg:         st.AngleDeg,
		Velocity:         st.Velocity,
		PreviousVelocity: st.Velocity,
		Spec:             spec,
		seq:              p.nextSeq,
	}
	p.nextSeq++
	p.order = append(p.order, h)
	p.stats.Spawned++
	return h
}

// Get returns the projectile named by h. The pointer is valid until the next
// mutating call on the pool.
func (p *Pool) Get(h Handle) (*Projectile, bool) {
	idx := h.index()
	if h == 0 || int(idx) >= len(p.slots) {
		return nil, false
	}
	s := &p.slots[idx]
	if !s.live || s.gen != h.generation() {
		return nil, false
	}
	return &s.p, true
}

// Each visits live projectiles in insertion order until fn returns false.
func (p *Pool) Each(fn func(*Projectile) bool) {
	for _, h := range p.order {
		s := &p.slots[h.index()]
		if !fn(&s.p) {
			return
		}
	}
}

// Tick advances every projectile by dt and culls the ones that left the
// bounds. It returns the number of culled projectiles.
func (p *Pool) Tick(dt float64) int {
	kept := p.order[:0]
	culled := 0
	for _, h := range p.order {
		s := &p.slots[h.index()]
		pr := &s.p

		pr.PreviousVelocity = pr.Velocity
		st := trajectory.Advance(trajectory.State{
			Position: pr.Position,
			Speed:    pr.Speed,
			AngleDeg: pr.AngleDeg,
			Velocity: pr.Velocity,
		}, pr.Spec, dt)
		pr.Position = st.Position
		pr.Speed = st.Speed
		pr.AngleDeg = st.AngleDeg
		pr.Velocity = st.Velocity
		pr.Age += dt
		pr.LastDt = dt

		if !p.bounds.Contains(pr.Position) {
			p.release(h.index())
			culled++
			continue
		}
		kept = append(kept, h)
	}
	clear(p.order[len(kept):])
	p.order = kept
	p.stats.Culled += uint64(culled)
	return culled
}

// Remove destroys the projectile named by h, reporting whether it was live.
func (p *Pool) Remove(h Handle) bool {
	if _, ok := p.Get(h); !ok {
		return false
	}
	p.release(h.index())
	p.order = slices.DeleteFunc(p.order, func(o Handle) bool { return o == h })
	p.stats.Removed++
	return true
}

// ClearAll removes every projectile. Outstanding handles become invalid.
func (p *Pool) ClearAll() {
	for _, h := range p.order {
		p.release(h.index())
	}
	p.stats.Cleared += uint64(len(p.order))
	clear(p.order)
	p.order = p.order[:0]
}

// Nearest returns up to k live projectiles ordered by ascending distance to
// point. Equal distances keep insertion order. No padding is added.
func (p *Pool) Nearest(point physics.Vec2, k int) []Handle {
	if k <= 0 || len(p.order) == 0 {
		return nil
	}

	type candidate struct {
		h   Handle
		d2  float64
		seq uint64
	}
	cands := make([]candidate, 0, len(p.order))
	for _, h := range p.order {
		pr := &p.slots[h.index()].p
		cands = append(cands, candidate{h: h, d2: pr.Position.Sub(point).LenSq(), seq: pr.seq})
	}
	slices.SortStableFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(a.d2, b.d2); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	if k > len(cands) {
		k = len(cands)
	}
	out := make([]Handle, k)
	for i := range out {
		out[i] = cands[i].h
	}
	return out
}

func (p *Pool) release(idx uint32) {
	s := &p.slots[idx]
	s.live = false
	s.p = Projectile{}
	p.free = append(p.free, idx)
}
