package projectile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/dodgesim/internal/core/systems/physics"
	"github.com/zeusync/dodgesim/internal/core/trajectory"
)

var arena = physics.Rect{MinX: -10, MaxX: 10, MinY: -6, MaxY: 6}

func still() trajectory.SpawnSpec { return trajectory.SpawnSpec{} }

func TestPool_SpawnAndGet(t *testing.T) {
	p := NewPool(arena)
	h := p.Spawn(physics.V(1, 2), trajectory.SpawnSpec{InitialSpeed: 3, InitialAngleDeg: 0})

	pr, ok := p.Get(h)
	require.True(t, ok)
	assert.Equal(t, h, pr.ID)
	assert.Equal(t, physics.V(1, 2), pr.Position)
	assert.InDelta(t, 3, pr.Velocity.X, 1e-12)
	assert.Equal(t, physics.Vec2{}, pr.Acceleration())
	assert.Equal(t, 0.0, pr.Age)
	assert.Equal(t, 1, p.Len())

	_, ok = p.Get(0)
	assert.False(t, ok)
}

func TestPool_TickMovesWithNewVelocity(t *testing.T) {
	p := NewPool(arena)
	h := p.Spawn(physics.V(0, 0), trajectory.SpawnSpec{InitialSpeed: 1, SpeedAccel: 2, MaxSpeed: 5, AngleAccel: 30})

	for i := 0; i < 10; i++ {
		pr, ok := p.Get(h)
		require.True(t, ok)
		before := pr.Position
		prevVel := pr.Velocity

		p.Tick(0.05)

		pr, ok = p.Get(h)
		require.True(t, ok)
		assert.Equal(t, before.Add(pr.Velocity.Scale(0.05)), pr.Position)
		assert.Equal(t, prevVel, pr.PreviousVelocity)
		assert.Equal(t, pr.Velocity.Sub(prevVel), pr.Acceleration())
		assert.Equal(t, 0.05, pr.LastDt)
	}
}

func TestPool_TickCullsOutOfBounds(t *testing.T) {
	p := NewPool(arena)
	leaving := p.Spawn(physics.V(9.9, 0), trajectory.SpawnSpec{InitialSpeed: 10, InitialAngleDeg: 0})
	staying := p.Spawn(physics.V(0, 0), still())
	other := p.Spawn(physics.V(1, 1), still())

	culled := p.Tick(0.1)
	assert.Equal(t, 1, culled)
	assert.Equal(t, 2, p.Len())

	_, ok := p.Get(leaving)
	assert.False(t, ok)

	// survivors keep valid handles
	pr, ok := p.Get(staying)
	require.True(t, ok)
	assert.Equal(t, staying, pr.ID)
	_, ok = p.Get(other)
	assert.True(t, ok)

	assert.Equal(t, uint64(1), p.Stats().Culled)
}

func TestPool_SlotReuseInvalidatesOldHandle(t *testing.T) {
	p := NewPool(arena)
	a := p.Spawn(physics.V(0, 0), still())
	require.True(t, p.Remove(a))
	assert.False(t, p.Remove(a))

	b := p.Spawn(physics.V(1, 0), still())
	assert.Equal(t, a.index(), b.index())
	assert.NotEqual(t, a, b)

	_, ok := p.Get(a)
	assert.False(t, ok)
	pr, ok := p.Get(b)
	require.True(t, ok)
	assert.Equal(t, physics.V(1, 0), pr.Position)
}

func TestPool_Nearest(t *testing.T) {
	p := NewPool(arena)
	far := p.Spawn(physics.V(5, 0), still())
	near := p.Spawn(physics.V(1, 0), still())
	mid := p.Spawn(physics.V(0, -3), still())
	tieA := p.Spawn(physics.V(0, 2), still())
	tieB := p.Spawn(physics.V(-2, 0), still())

	got := p.Nearest(physics.V(0, 0), 10)
	require.Equal(t, []Handle{near, tieA, tieB, mid, far}, got)

	prev := -1.0
	for _, h := range got {
		pr, _ := p.Get(h)
		d := pr.Position.Len()
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}

	assert.Equal(t, []Handle{near, tieA}, p.Nearest(physics.V(0, 0), 2))
	assert.Empty(t, p.Nearest(physics.V(0, 0), 0))
}

func TestPool_NearestFewerThanK(t *testing.T) {
	p := NewPool(arena)
	p.Spawn(physics.V(1, 1), still())
	p.Spawn(physics.V(2, 2), still())

	assert.Len(t, p.Nearest(physics.V(0, 0), 5), 2)
}

func TestPool_ClearAll(t *testing.T) {
	p := NewPool(arena)
	hs := []Handle{
		p.Spawn(physics.V(1, 1), still()),
		p.Spawn(physics.V(2, 2), still()),
		p.Spawn(physics.V(3, 3), still()),
	}

	p.ClearAll()
	assert.Equal(t, 0, p.Len())
	assert.Empty(t, p.Nearest(physics.V(0, 0), 3))
	for _, h := range hs {
		_, ok := p.Get(h)
		assert.False(t, ok)
	}
	assert.Equal(t, uint64(3), p.Stats().Cleared)

	p.Spawn(physics.V(0, 0), still())
	assert.Equal(t, 1, p.Len())
}

func TestPool_EachInsertionOrder(t *testing.T) {
	p := NewPool(arena)
	a := p.Spawn(physics.V(3, 0), still())
	b := p.Spawn(physics.V(1, 0), still())
	c := p.Spawn(physics.V(2, 0), still())
	p.Remove(b)
	d := p.Spawn(physics.V(4, 0), still())

	var seen []Handle
	p.Each(func(pr *Projectile) bool {
		seen = append(seen, pr.ID)
		return true
	})
	assert.Equal(t, []Handle{a, c, d}, seen)
}
