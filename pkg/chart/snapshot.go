package chart

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Snapshot is a frozen copy of a scene, suitable for serialization and
// rendering.
type Snapshot struct {
	Step     Step      `json:"step"`
	ViewW    float64   `json:"view_w"`
	ViewH    float64   `json:"view_h"`
	Marks    []Mark    `json:"marks"`
	Elements []Element `json:"elements"`
}

// Interpolate returns the frame at fraction t of the way from a to b.
// Positions, radii and opacities are linear; colors blend in Lab space.
// Snapshots of different scenes cannot be blended and yield b.
func Interpolate(a, b Snapshot, t float64) Snapshot {
	if t >= 1 || len(a.Marks) != len(b.Marks) || len(a.Elements) != len(b.Elements) {
		return b
	}
	if t < 0 {
		t = 0
	}
	out := Snapshot{
		Step:     b.Step,
		ViewW:    b.ViewW,
		ViewH:    b.ViewH,
		Marks:    make([]Mark, len(b.Marks)),
		Elements: make([]Element, len(b.Elements)),
	}
	for i := range b.Marks {
		ma, mb := a.Marks[i], b.Marks[i]
		m := mb
		m.X = lerp(ma.X, mb.X, t)
		m.Y = lerp(ma.Y, mb.Y, t)
		m.R = lerp(ma.R, mb.R, t)
		m.Opacity = lerp(ma.Opacity, mb.Opacity, t)
		m.Fill = blend(ma.Fill, mb.Fill, t)
		out.Marks[i] = m
	}
	for i := range b.Elements {
		ea, eb := a.Elements[i], b.Elements[i]
		e := eb
		e.Opacity = lerp(ea.Opacity, eb.Opacity, t)
		e.X = lerp(ea.X, eb.X, t)
		e.Y = lerp(ea.Y, eb.Y, t)
		if t < 0.5 {
			e.Text = ea.Text
		}
		out.Elements[i] = e
	}
	return out
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// blend mixes two hex colors. Unparseable colors switch at the midpoint.
func blend(a, b string, t float64) string {
	ca, errA := colorful.Hex(a)
	cb, errB := colorful.Hex(b)
	if errA != nil || errB != nil {
		if t < 0.5 {
			return a
		}
		return b
	}
	return ca.BlendLab(cb, t).Clamped().Hex()
}
