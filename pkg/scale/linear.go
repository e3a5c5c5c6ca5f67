package scale

import (
	"math"

	mscale "github.com/aclements/go-moremath/scale"
	"github.com/aclements/go-moremath/stats"
)

// DefaultTicks is the tick count requested when an axis does not specify one.
const DefaultTicks = 10

// Linear maps a continuous domain onto a continuous range. The mapping is
// not clamped: values outside the domain extrapolate.
type Linear struct {
	D0, D1 float64 // domain
	R0, R1 float64 // range
}

// NewLinear returns the scale [d0,d1] -> [r0,r1].
func NewLinear(d0, d1, r0, r1 float64) Linear {
	return Linear{D0: d0, D1: d1, R0: r0, R1: r1}
}

// FromExtent builds a scale whose domain is the extent of values.
func FromExtent(values []float64, r0, r1 float64) Linear {
	lo, hi := Extent(values)
	return NewLinear(lo, hi, r0, r1)
}

func (l Linear) unit() mscale.Linear {
	lo, hi := l.D0, l.D1
	if lo > hi {
		lo, hi = hi, lo
	}
	return mscale.Linear{Min: lo, Max: hi}
}

// Map returns the range value for v. A zero-width domain maps everything to
// the middle of the range; NaN maps to NaN.
func (l Linear) Map(v float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	if l.D0 == l.D1 {
		return (l.R0 + l.R1) / 2
	}
	u := l.unit().Map(v)
	if l.D0 > l.D1 {
		u = 1 - u
	}
	return l.R0 + u*(l.R1-l.R0)
}

// Ticks returns at most n round tick values inside the domain.
func (l Linear) Ticks(n int) []float64 {
	if n <= 0 {
		n = DefaultTicks
	}
	if l.D0 == l.D1 {
		return []float64{l.D0}
	}
	major, _ := l.unit().Ticks(mscale.TickOptions{Max: n})
	return major
}

// Extent returns the minimum and maximum of values, ignoring NaN. It returns
// (0, 0) when no value is usable.
func Extent(values []float64) (lo, hi float64) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0, 0
	}
	return stats.Bounds(clean)
}
