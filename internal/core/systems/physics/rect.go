package physics

import "fmt"

// Rect is an axis-aligned rectangle [MinX,MaxX]x[MinY,MaxY].
type Rect struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// Validate rejects inverted, empty or non-finite rectangles.
func (r Rect) Validate() error {
	for _, f := range []float64{r.MinX, r.MaxX, r.MinY, r.MaxY} {
		if !IsFinite(f) {
			return fmt.Errorf("bounds must be finite: %+v", r)
		}
	}
	if r.MinX >= r.MaxX {
		return fmt.Errorf("bounds inverted on x: min %.3f >= max %.3f", r.MinX, r.MaxX)
	}
	if r.MinY >= r.MaxY {
		return fmt.Errorf("bounds inverted on y: min %.3f >= max %.3f", r.MinY, r.MaxY)
	}
	return nil
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

func (r Rect) Clamp(p Vec2) Vec2 {
	return Vec2{X: Clamp(p.X, r.MinX, r.MaxX), Y: Clamp(p.Y, r.MinY, r.MaxY)}
}

// AABB is a box described by its center and half extents.
type AABB struct {
	Center Vec2
	Half   Vec2
}

// Overlaps is the trigger test used for collisions: touching boxes overlap.
func (a AABB) Overlaps(b AABB) bool {
	dx := a.Center.X - b.Center.X
	dy := a.Center.Y - b.Center.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx <= a.Half.X+b.Half.X && dy <= a.Half.Y+b.Half.Y
}
