package force

import "math"

// Accessor returns a per-node value such as a target coordinate or radius.
type Accessor func(i int) float64

// Constant returns an accessor that ignores the node.
func Constant(v float64) Accessor {
	return func(int) float64 { return v }
}

// DefaultPositionStrength is the pull of X and Y toward their targets.
const DefaultPositionStrength = 0.1

// PositionX pulls each node toward a target x. Nodes with a NaN target are
// left alone.
type PositionX struct {
	Target   Accessor
	Strength float64
}

// X returns a PositionX force with the default strength.
func X(target Accessor) *PositionX {
	return &PositionX{Target: target, Strength: DefaultPositionStrength}
}

// Apply implements Force.
func (f *PositionX) Apply(nodes []Node, alpha float64, _ func() float64) {
	for i := range nodes {
		t := f.Target(i)
		if math.IsNaN(t) {
			continue
		}
		nodes[i].VX += (t - nodes[i].X) * f.Strength * alpha
	}
}

// PositionY pulls each node toward a target y.
type PositionY struct {
	Target   Accessor
	Strength float64
}

// Y returns a PositionY force with the default strength.
func Y(target Accessor) *PositionY {
	return &PositionY{Target: target, Strength: DefaultPositionStrength}
}

// Apply implements Force.
func (f *PositionY) Apply(nodes []Node, alpha float64, _ func() float64) {
	for i := range nodes {
		t := f.Target(i)
		if math.IsNaN(t) {
			continue
		}
		nodes[i].VY += (t - nodes[i].Y) * f.Strength * alpha
	}
}

// ManyBody applies a pairwise force between all nodes. Negative strength
// repels, positive strength attracts. Pairs closer than DistanceMin are
// softened to avoid singular forces.
type ManyBody struct {
	Strength    float64
	DistanceMin float64
}

// NewManyBody returns a many-body force with a minimum distance of 1.
func NewManyBody(strength float64) *ManyBody {
	return &ManyBody{Strength: strength, DistanceMin: 1}
}

// Apply implements Force. It is exact and quadratic in the node count, which
// is fine for a few hundred marks.
func (f *ManyBody) Apply(nodes []Node, alpha float64, jiggle func() float64) {
	min2 := f.DistanceMin * f.DistanceMin
	for i := range nodes {
		ni := &nodes[i]
		for j := range nodes {
			if i == j {
				continue
			}
			x := nodes[j].X - ni.X
			y := nodes[j].Y - ni.Y
			if x == 0 {
				x = jiggle()
			}
			if y == 0 {
				y = jiggle()
			}
			l := x*x + y*y
			if l < min2 {
				l = math.Sqrt(min2 * l)
			}
			w := f.Strength * alpha / l
			ni.VX += x * w
			ni.VY += y * w
		}
	}
}

// Collide pushes apart nodes whose circles overlap. Unlike the other forces
// it is not scaled by alpha. NaN or negative radii count as zero.
type Collide struct {
	Radius     Accessor
	Strength   float64
	Iterations int
}

// NewCollide returns a collision force with full strength and one iteration.
func NewCollide(radius Accessor) *Collide {
	return &Collide{Radius: radius, Strength: 1, Iterations: 1}
}

// Apply implements Force.
func (f *Collide) Apply(nodes []Node, _ float64, jiggle func() float64) {
	radii := make([]float64, len(nodes))
	for i := range nodes {
		if r := f.Radius(i); r > 0 {
			radii[i] = r
		}
	}
	iterations := max(f.Iterations, 1)
	for range iterations {
		for i := range nodes {
			ni := &nodes[i]
			ri := radii[i]
			ri2 := ri * ri
			xi, yi := ni.X+ni.VX, ni.Y+ni.VY
			for j := i + 1; j < len(nodes); j++ {
				nj := &nodes[j]
				rj := radii[j]
				r := ri + rj
				x := xi - nj.X - nj.VX
				y := yi - nj.Y - nj.VY
				l := x*x + y*y
				if l >= r*r {
					continue
				}
				if x == 0 {
					x = jiggle()
					l += x * x
				}
				if y == 0 {
					y = jiggle()
					l += y * y
				}
				d := math.Sqrt(l)
				k := (r - d) / d * f.Strength
				x *= k
				y *= k
				rj2 := rj * rj
				share := 0.5
				if ri2+rj2 > 0 {
					share = rj2 / (ri2 + rj2)
				}
				ni.VX += x * share
				ni.VY += y * share
				nj.VX -= x * (1 - share)
				nj.VY -= y * (1 - share)
			}
		}
	}
}
