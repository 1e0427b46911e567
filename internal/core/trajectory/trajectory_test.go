package trajectory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

func TestAdvance_SpeedCap(t *testing.T) {
	specs := []SpawnSpec{
		{InitialSpeed: 3, SpeedAccel: 0.5, MaxSpeed: 8, InitialAngleDeg: 270},
		{InitialSpeed: 1, SpeedAccel: 100, MaxSpeed: 2, InitialAngleDeg: 45, AngleAccel: 30},
		{InitialSpeed: 20, SpeedAccel: 1, MaxSpeed: 5},
	}
	for _, spec := range specs {
		s := Initial(physics.V(0, 0), spec)
		for i := 0; i < 500; i++ {
			s = Advance(s, spec, 1.0/60)
			require.LessOrEqual(t, s.Speed, spec.MaxSpeed)
		}
	}
}

func TestAdvance_NoCap(t *testing.T) {
	spec := SpawnSpec{InitialSpeed: 1, SpeedAccel: 10, MaxSpeed: 0}
	s := Initial(physics.V(0, 0), spec)
	s = Advance(s, spec, 1)
	assert.InDelta(t, 11, s.Speed, 1e-12)
}

func TestAdvance_SpeedNeverNegative(t *testing.T) {
	spec := SpawnSpec{InitialSpeed: 1, SpeedAccel: -10}
	s := Advance(Initial(physics.V(0, 0), spec), spec, 1)
	assert.Equal(t, 0.0, s.Speed)
	assert.Equal(t, physics.V(0, 0), s.Position)
}

func TestAdvance_PositionUsesNewVelocity(t *testing.T) {
	spec := SpawnSpec{InitialSpeed: 2, SpeedAccel: 1, MaxSpeed: 10, InitialAngleDeg: 10, AngleAccel: 45}
	s := Initial(physics.V(1, -1), spec)
	dt := 0.1
	for i := 0; i < 20; i++ {
		before := s.Position
		s = Advance(s, spec, dt)
		want := before.Add(s.Velocity.Scale(dt))
		assert.Equal(t, want, s.Position)
	}
}

func TestAdvance_Angle(t *testing.T) {
	spec := SpawnSpec{InitialSpeed: 1, InitialAngleDeg: 0, AngleAccel: 90}
	s := Advance(Initial(physics.V(0, 0), spec), spec, 1)
	assert.InDelta(t, 90, s.AngleDeg, 1e-12)
	assert.InDelta(t, 0, s.Velocity.X, 1e-12)
	assert.InDelta(t, 1, s.Velocity.Y, 1e-12)
}

func TestInitial(t *testing.T) {
	s := Initial(physics.V(2, 3), SpawnSpec{InitialSpeed: 9, MaxSpeed: 4, InitialAngleDeg: 180})
	assert.Equal(t, 4.0, s.Speed)
	assert.InDelta(t, -4, s.Velocity.X, 1e-12)
	assert.InDelta(t, 0, s.Velocity.Y, 1e-12)
	assert.True(t, math.IsInf(SpawnSpec{}.SpeedCap(), 1))
}

func TestPredict(t *testing.T) {
	p := Predict(physics.V(5, 0), physics.V(-1, 0), physics.V(0, 2), 1)
	assert.Equal(t, physics.V(4, 1), p)
}
