package scale

import (
	"math"

	"github.com/matzehuels/tractstory/pkg/dataset"
)

// Margin is the inset of the plot area inside the viewBox.
type Margin struct {
	Left, Top, Bottom, Right float64
}

// Frame describes the canvas geometry every scale is laid out against.
type Frame struct {
	Margin        Margin
	Width, Height float64 // plot area
	ViewW, ViewH  float64 // logical viewBox
}

// DefaultFrame is the 1200x1000 canvas with a 780x820 plot area.
func DefaultFrame() Frame {
	return Frame{
		Margin: Margin{Left: 200, Top: 80, Bottom: 50, Right: 20},
		Width:  780,
		Height: 820,
		ViewW:  1200,
		ViewH:  1000,
	}
}

// Bottom is the y of the plot area's lower edge.
func (f Frame) Bottom() float64 { return f.Margin.Top + f.Height }

// Right is the x of the plot area's right edge.
func (f Frame) Right() float64 { return f.Margin.Left + f.Width }

// Size ranges for bubble radii.
const (
	MinRadius = 3
	MaxRadius = 22
)

// Registry holds every scale the chart states read. It is a pure function of
// the dataset and the frame.
type Registry struct {
	Frame Frame

	IncomeY Linear

	Pop     Linear
	PopSize Linear

	PctBlackX  Linear
	PctPoverty Linear

	HistX Linear
	HistY Linear

	LineX Linear
	LineY Linear

	Area Ordinal
}

// Build derives all scales from ds.
func Build(ds *dataset.Dataset, f Frame) *Registry {
	var (
		pop        = ds.Values(func(t dataset.Tract) float64 { return t.Population })
		pctBlack   = ds.Values(func(t dataset.Tract) float64 { return t.PctBlack })
		pctPoverty = ds.Values(func(t dataset.Tract) float64 { return t.PctPoverty })
		midpoint   = ds.Values(func(t dataset.Tract) float64 { return t.Midpoint })
		bucket     = ds.Values(func(t dataset.Tract) float64 { return float64(t.Bucket) })
	)
	years := make([]float64, len(ds.Years))
	for i, y := range ds.Years {
		years[i] = float64(y.Year)
	}

	left, right := f.Margin.Left, f.Right()
	top, bottom := f.Margin.Top, f.Bottom()
	// clump charts spread across an inset band of the plot area
	bandLo, bandHi := left+120, right-50

	return &Registry{
		Frame: f,

		IncomeY: NewLinear(0, 85000, bottom, top),

		Pop:     FromExtent(pop, bandLo, bandHi),
		PopSize: FromExtent(pop, MinRadius, MaxRadius),

		PctBlackX:  FromExtent(pctBlack, left, right),
		PctPoverty: FromExtent(pctPoverty, bandLo, bandHi),

		HistX: FromExtent(midpoint, left, right),
		HistY: FromExtent(bucket, bottom, top),

		LineX: FromExtent(years, left, right),
		LineY: NewLinear(0, math.Max(ds.MaxYearPopulation(), 1), bottom, top),

		Area: AreaColors(),
	}
}
