package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec2_Normalize(t *testing.T) {
	n := V(3, 4).Normalize()
	assert.InDelta(t, 0.6, n.X, 1e-12)
	assert.InDelta(t, 0.8, n.Y, 1e-12)
	assert.Equal(t, Vec2{}, Vec2{}.Normalize())
}

func TestFromAngleDeg(t *testing.T) {
	d := FromAngleDeg(90)
	assert.InDelta(t, 0, d.X, 1e-12)
	assert.InDelta(t, 1, d.Y, 1e-12)

	assert.InDelta(t, 180, V(-1, 0).AngleDeg(), 1e-12)
}

func TestVec2_IsFinite(t *testing.T) {
	assert.True(t, V(1, 2).IsFinite())
	assert.False(t, V(math.NaN(), 0).IsFinite())
	assert.False(t, V(0, math.Inf(-1)).IsFinite())
}

func TestRect(t *testing.T) {
	r := Rect{MinX: -10, MaxX: 10, MinY: -6, MaxY: 6}
	require.NoError(t, r.Validate())

	assert.True(t, r.Contains(V(10, -6)))
	assert.False(t, r.Contains(V(10.01, 0)))
	assert.Equal(t, V(10, -6), r.Clamp(V(12, -7)))

	require.Error(t, Rect{MinX: 1, MaxX: -1, MinY: 0, MaxY: 1}.Validate())
	require.Error(t, Rect{MinX: 0, MaxX: 1, MinY: 2, MaxY: 2}.Validate())
	require.Error(t, Rect{MinX: math.NaN(), MaxX: 1, MinY: 0, MaxY: 1}.Validate())
}

func TestAABB_Overlaps(t *testing.T) {
	a := AABB{Center: V(0, 0), Half: V(0.5, 0.5)}
	assert.True(t, a.Overlaps(AABB{Center: V(0.9, 0), Half: V(0.5, 0.5)}))
	assert.True(t, a.Overlaps(AABB{Center: V(1, 1), Half: V(0.5, 0.5)}))
	assert.False(t, a.Overlaps(AABB{Center: V(1.1, 0), Half: V(0.5, 0.5)}))
}
