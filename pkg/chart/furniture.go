package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/aclements/go-moremath/fit"
	"github.com/aclements/go-moremath/vec"

	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/scale"
)

const defaultTickSize = 6

func newAxis(s scale.Linear, orient Orient, format func(float64) string) *Axis {
	values := s.Ticks(scale.DefaultTicks)
	pos := vec.Map(s.Map, values)
	ticks := make([]Tick, len(values))
	for i, v := range values {
		ticks[i] = Tick{Value: v, Pos: pos[i], Label: format(v)}
	}
	return &Axis{
		Orient:      orient,
		Ticks:       ticks,
		TickSize:    defaultTickSize,
		TickOpacity: 1,
		Domain:      true,
		DomainStart: s.R0,
		DomainEnd:   s.R1,
	}
}

// grid turns a left axis into full-width dashed gridlines without a domain line.
func grid(a *Axis, width, opacity float64) *Axis {
	a.TickSize = width
	a.TickOpacity = opacity
	a.TickDash = "2.5"
	a.Domain = false
	return a
}

func noDomain(a *Axis) *Axis {
	a.Domain = false
	return a
}

// linePath renders points as an SVG path of straight segments.
func linePath(xs, ys []float64) string {
	var b strings.Builder
	for i := range xs {
		if i == 0 {
			b.WriteByte('M')
		} else {
			b.WriteByte('L')
		}
		fmt.Fprintf(&b, "%s,%s", num(xs[i]), num(ys[i]))
	}
	return b.String()
}

func num(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

// bestFit returns the regression line of median income on Black share,
// evaluated at shares 0 and 1.
func bestFit(ds *dataset.Dataset) (y0, y1 float64) {
	var xs, ys []float64
	for _, t := range ds.Tracts {
		if math.IsNaN(t.PctBlack) || math.IsNaN(t.Income) || t.Income <= 0 {
			continue
		}
		xs = append(xs, t.PctBlack)
		ys = append(ys, t.Income)
	}
	if lo, hi := scale.Extent(xs); len(xs) < 2 || lo == hi {
		return fallbackFit[0][1], fallbackFit[1][1]
	}
	r := fit.PolynomialRegression(xs, ys, nil, 1)
	y0, y1 = r.F(0), r.F(1)
	if math.IsNaN(y0) || math.IsNaN(y1) || math.IsInf(y0, 0) || math.IsInf(y1, 0) {
		return fallbackFit[0][1], fallbackFit[1][1]
	}
	return y0, y1
}

// buildFurniture creates every non-mark element in its initial state: the
// trend chart visible, everything else hidden.
func buildFurniture(ds *dataset.Dataset, reg *scale.Registry) []*Element {
	f := reg.Frame
	gridX := f.Margin.Left - 20 + f.Width
	trend := Tags(Trend)
	clumps := Tags(TotalPop, NWPop, BlackPop)
	var els []*Element

	// population trend
	els = append(els,
		&Element{ID: "population-x", Class: "population-x", Kind: KindAxis, Tags: trend, Opacity: 1,
			Y: f.Bottom(), Axis: noDomain(newAxis(reg.LineX, OrientBottom, scale.Year))},
		&Element{ID: "population-y", Class: "population-y", Kind: KindAxis, Tags: trend, Opacity: 1,
			X: gridX, Axis: grid(newAxis(reg.LineY, OrientLeft, scale.Comma), f.Width, 0.2)},
	)
	xs := make([]float64, len(ds.Years))
	city := make([]float64, len(ds.Years))
	county := make([]float64, len(ds.Years))
	for i, y := range ds.Years {
		xs[i] = reg.LineX.Map(float64(y.Year))
		city[i] = reg.LineY.Map(y.City)
		county[i] = reg.LineY.Map(y.County)
	}
	els = append(els,
		&Element{ID: "line1", Class: "line1", Kind: KindPath, Tags: trend, Opacity: 1,
			Stroke: scale.ColorCity, StrokeWidth: 3, Fill: "none", D: linePath(xs, city)},
		&Element{ID: "line2", Class: "line2", Kind: KindPath, Tags: trend, Opacity: 1,
			Stroke: scale.ColorCounty, StrokeWidth: 3, Fill: "none", D: linePath(xs, county)},
		&Element{ID: "linelabel1", Class: "linelabel1", Kind: KindText, Tags: trend, Opacity: 1,
			X: 840, Y: 530, Text: dataset.AreaCity, Fill: scale.ColorCity, Font: labelFont()},
		&Element{ID: "linelabel2", Class: "linelabel2", Kind: KindText, Tags: trend, Opacity: 1,
			X: 740, Y: 175, Text: dataset.AreaCounty, Fill: scale.ColorCounty, Font: labelFont()},
	)

	// scatter
	y0, y1 := bestFit(ds)
	els = append(els,
		&Element{ID: "best-fit", Class: "best-fit", Kind: KindPath, Tags: Tags(Scatter),
			Stroke: "grey", StrokeWidth: 3, Dash: "6.2", Fill: "none",
			D: linePath(
				[]float64{reg.PctBlackX.Map(0), reg.PctBlackX.Map(1)},
				[]float64{reg.IncomeY.Map(y0), reg.IncomeY.Map(y1)})},
		&Element{ID: "scatter-x", Class: "scatter-x", Kind: KindAxis, Tags: Tags(Scatter),
			Y: f.Bottom(), Axis: noDomain(newAxis(reg.PctBlackX, OrientBottom, scale.Percent))},
		&Element{ID: "scatter-y", Class: "scatter-y", Kind: KindAxis, Tags: Tags(Scatter),
			X: gridX, Axis: grid(newAxis(reg.IncomeY, OrientLeft, scale.DollarTick), f.Width, 0.2)},
	)

	// histogram and poverty axes; the horizontal poverty axis belongs to no step
	els = append(els,
		&Element{ID: "hist-axis", Class: "hist-axis", Kind: KindAxis, Tags: Tags(Histogram),
			Y: f.Bottom() + 10, Axis: newAxis(reg.HistX, OrientBottom, scale.DollarTick)},
		&Element{ID: "poverty-axis", Class: "poverty-axis", Kind: KindAxis,
			Y: 700, Axis: newAxis(reg.PctPoverty, OrientBottom, scale.Comma)},
		&Element{ID: "poverty-y-axis", Class: "poverty-y-axis", Kind: KindAxis, Tags: Tags(Poverty, Poverty2),
			X: gridX, Y: -100, Axis: grid(newAxis(reg.PctPoverty, OrientLeft, scale.Percent), f.Width, 0.3)},
	)

	// area labels
	for i, sum := range ds.Summaries {
		a := AnchorFor(sum.Area)
		els = append(els,
			&Element{ID: fmt.Sprintf("cat-rect-%d", i), Class: "cat-rect", Kind: KindRect, Tags: clumps, Area: sum.Area,
				X: a.X + 1000, Y: a.Y, W: 220, H: 30, Fill: rectFill},
			&Element{ID: fmt.Sprintf("lab-text-%d", i), Class: "lab-text", Kind: KindText, Tags: clumps, Area: sum.Area,
				X: a.X + 1200, Y: a.Y - 500, Anchor: "middle", Fill: "black", Font: labelFont(),
				Text: "Average: " + scale.Dollars(sum.AvgIncome), HoverText: sum.Area},
		)
	}

	// legends
	area, notWhite, black := scale.AreaLegend(), scale.NotWhiteLegend(), scale.BlackLegend()
	els = append(els,
		&Element{ID: "legend-area", Class: "legend", Kind: KindLegend, Tags: Tags(TotalPop, Histogram, Poverty2),
			X: 20, Y: 50, Legend: &area},
		&Element{ID: "legend-not-white", Class: "legend", Kind: KindLegend, Tags: Tags(NWPop),
			X: 20, Y: 50, Legend: &notWhite},
		&Element{ID: "legend-black", Class: "legend", Kind: KindLegend, Tags: Tags(BlackPop, Scatter, Poverty),
			X: 20, Y: 50, Legend: &black},
	)
	return els
}
