package emitter

import (
	"fmt"

	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

// Mode selects the firing pattern of an emitter.
type Mode string

const (
	// ModeAimed fires one jittered shot at the tracked target.
	ModeAimed Mode = "aimed"
	// ModeRadial fires an evenly spaced ring from a random start angle.
	ModeRadial Mode = "radial"
)

// SpanData is a base value with its per-second rate of change and a cap.
// The yaml key "accuracy" is kept for compatibility with existing arena files.
type SpanData struct {
	Default float64 `json:"default" yaml:"default"`
	Accel   float64 `json:"accuracy" yaml:"accuracy"`
	Max     float64 `json:"max" yaml:"max"`
}

// Config describes one emitter of the arena.
type Config struct {
	Name     string       `json:"name" yaml:"name"`
	Mode     Mode         `json:"mode" yaml:"mode"`
	Position physics.Vec2 `json:"position" yaml:"position"`
	// Interval is the time between volleys in seconds. Zero fires every tick.
	Interval  float64  `json:"interval" yaml:"interval"`
	SpeedData SpanData `json:"speed_data" yaml:"speed_data"`
	// AngleData.Accel is the angular acceleration given to aimed shots.
	AngleData    SpanData `json:"angle_data" yaml:"angle_data"`
	AimJitterDeg float64  `json:"aim_jitter_deg" yaml:"aim_jitter_deg"`
	BurstCount   int      `json:"burst_count" yaml:"burst_count"`
	// BurstAngleAccel gives radial bursts AngleData.Accel instead of zero.
	BurstAngleAccel bool `json:"burst_angle_accel" yaml:"burst_angle_accel"`
}

// DefaultConfig mirrors the stock arena: an aimed emitter on the right edge.
func DefaultConfig() Config {
	return Config{
		Name:         "aimed",
		Mode:         ModeAimed,
		Position:     physics.V(8, 0),
		Interval:     0.5,
		SpeedData:    SpanData{Default: 3, Accel: 0.5, Max: 8},
		AngleData:    SpanData{Default: 270},
		AimJitterDeg: 5,
		BurstCount:   36,
	}
}

func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("emitter name is required")
	}
	switch c.Mode {
	case ModeAimed, ModeRadial:
	default:
		return fmt.Errorf("emitter %s: unknown mode %q", c.Name, c.Mode)
	}
	if !c.Position.IsFinite() {
		return fmt.Errorf("emitter %s: position must be finite", c.Name)
	}
	if c.Interval < 0 || !physics.IsFinite(c.Interval) {
		return fmt.Errorf("emitter %s: interval must be a finite value >= 0, got %v", c.Name, c.Interval)
	}
	if c.SpeedData.Default < 0 {
		return fmt.Errorf("emitter %s: initial speed must be >= 0", c.Name)
	}
	if c.AimJitterDeg < 0 {
		return fmt.Errorf("emitter %s: aim jitter must be >= 0", c.Name)
	}
	if c.Mode == ModeRadial && c.BurstCount <= 0 {
		return fmt.Errorf("emitter %s: burst count must be > 0", c.Name)
	}
	return nil
}
