package agent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

var arena = physics.Rect{MinX: -10, MaxX: 10, MinY: -6, MaxY: 6}

func TestController_DiagonalIsNormalized(t *testing.T) {
	c := New(DefaultConfig(), arena)
	require.NoError(t, c.ApplyAction([]float64{1, 1}, 0.02))

	v := c.State().Velocity
	assert.InDelta(t, 5, v.Len(), 1e-12)
	assert.InDelta(t, 5/math.Sqrt2, v.X, 1e-12)
}

func TestController_ClampsAction(t *testing.T) {
	c := New(DefaultConfig(), arena)
	require.NoError(t, c.ApplyAction([]float64{7, 0}, 0.1))
	assert.InDelta(t, 5, c.State().Velocity.X, 1e-12)
	assert.InDelta(t, -4.5, c.State().Position.X, 1e-12)

	require.NoError(t, c.ApplyAction([]float64{0.3, -0.4}, 0.1))
	assert.InDelta(t, 1.5, c.State().Velocity.X, 1e-12)
	assert.InDelta(t, -2, c.State().Velocity.Y, 1e-12)
}

func TestController_SlowMode(t *testing.T) {
	c := New(DefaultConfig(), arena)
	require.NoError(t, c.ApplyAction([]float64{0, 1, 1}, 0.1))
	assert.InDelta(t, 2, c.State().Velocity.Y, 1e-12)

	require.NoError(t, c.ApplyAction([]float64{0, 1, 0.4}, 0.1))
	assert.InDelta(t, 5, c.State().Velocity.Y, 1e-12)
}

func TestController_BoundaryZeroesOutwardAxis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Spawn = physics.V(0, 6)
	c := New(cfg, arena)

	require.NoError(t, c.ApplyAction([]float64{1, 1}, 0.1))
	st := c.State()
	assert.Equal(t, 0.0, st.Velocity.Y)
	assert.Greater(t, st.Velocity.X, 0.0)
	assert.Equal(t, 6.0, st.Position.Y)

	// moving back inward is allowed
	require.NoError(t, c.ApplyAction([]float64{0, -1}, 0.1))
	assert.InDelta(t, -5, c.State().Velocity.Y, 1e-12)
}

func TestController_PositionClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Spawn = physics.V(9.99, 0)
	c := New(cfg, arena)
	require.NoError(t, c.ApplyAction([]float64{1, 0}, 1))
	assert.Equal(t, 10.0, c.State().Position.X)
}

func TestController_PreviousVelocity(t *testing.T) {
	c := New(DefaultConfig(), arena)
	require.NoError(t, c.ApplyAction([]float64{0, 1}, 0.01))
	require.NoError(t, c.ApplyAction([]float64{0, -1}, 0.01))
	st := c.State()
	assert.InDelta(t, 5, st.PreviousVelocity.Y, 1e-12)
	assert.InDelta(t, -5, st.Velocity.Y, 1e-12)
}

func TestController_TerminateAndReset(t *testing.T) {
	c := New(DefaultConfig(), arena)
	require.NoError(t, c.ApplyAction([]float64{1, 1}, 0.5))

	c.Terminate()
	assert.Equal(t, StatusTerminated, c.Status())
	require.ErrorIs(t, c.ApplyAction([]float64{0, 0}, 0.1), ErrTerminated)

	c.Reset()
	st := c.State()
	assert.Equal(t, StatusActive, c.Status())
	assert.Equal(t, physics.V(-5, 0), st.Position)
	assert.Equal(t, physics.Vec2{}, st.Velocity)
	assert.Equal(t, physics.Vec2{}, st.PreviousVelocity)
}

func TestController_InvalidAction(t *testing.T) {
	c := New(DefaultConfig(), arena)
	require.ErrorIs(t, c.ApplyAction([]float64{1}, 0.1), ErrInvalidAction)
	require.ErrorIs(t, c.ApplyAction([]float64{math.NaN(), 0}, 0.1), ErrInvalidAction)
	assert.Equal(t, physics.V(-5, 0), c.State().Position)
}

func TestController_OwnBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bounds = &physics.Rect{MinX: -8, MaxX: 0, MinY: -4, MaxY: 4}
	c := New(cfg, arena)
	assert.Equal(t, *cfg.Bounds, c.State().Bounds)
}

func TestActionFromAxes(t *testing.T) {
	assert.Equal(t, []float64{-1, 0.5, 1}, ActionFromAxes(-3, 0.5, true))
	assert.Equal(t, []float64{0, 0, 0}, ActionFromAxes(math.NaN(), 0, false))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.SlowSpeed = 9
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Bounds = &physics.Rect{MinX: 1, MaxX: 0, MinY: 0, MaxY: 1}
	require.Error(t, bad.Validate())
}
