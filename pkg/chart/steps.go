package chart

import (
	"math"

	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/force"
	"github.com/matzehuels/tractstory/pkg/scale"
)

func renderTrend(s *Scene) {
	s.sim.Stop()
	s.style(
		func(dataset.Tract) float64 { return 1 },
		func(dataset.Tract) string { return trendFill },
	)
	s.sim.Place(func(int) (float64, float64) { return 1, 1 })
	for _, class := range []string{"population-x", "population-y", "line1", "line2", "linelabel1", "linelabel2"} {
		s.show(class, 1)
	}
}

func renderTotalPop(s *Scene) {
	s.areaLabels(func(sum dataset.Summary) string {
		return "Population: " + scale.Comma(sum.Population)
	})
	s.style(s.popRadius, s.areaFill)
	s.clump()
	s.showID("legend-area", 1)
}

func renderHistogram(s *Scene) {
	s.sim.Stop()
	s.style(
		func(dataset.Tract) float64 { return histRadius },
		s.areaFill,
	)
	s.place(func(t dataset.Tract) (float64, float64) {
		return s.reg.HistX.Map(t.Midpoint) + AnchorFor(t.Area).HistOffset, s.reg.HistY.Map(float64(t.Bucket))
	})
	s.show("hist-axis", 0.7)
	s.showID("legend-area", 1)
}

func renderNWPop(s *Scene) {
	s.areaLabels(func(sum dataset.Summary) string {
		return "People of Color: " + scale.Sig2(sum.PctNotWhite) + "%"
	})
	s.style(s.popRadius, func(t dataset.Tract) string { return scale.ClassifyNotWhite(t.PctNotWhite).Color() })
	s.clump()
	s.showID("legend-not-white", 1)
}

func renderBlackPop(s *Scene) {
	s.areaLabels(func(sum dataset.Summary) string {
		return "Black Residents: " + scale.Sig2(sum.PctBlack) + "%"
	})
	s.style(s.popRadius, blackFill)
	s.clump()
	s.showID("legend-black", 1)
}

func renderScatter(s *Scene) {
	s.sim.Stop()
	s.style(func(dataset.Tract) float64 { return scatterRadius }, blackFill)
	s.place(func(t dataset.Tract) (float64, float64) {
		return s.reg.PctBlackX.Map(t.PctBlack), s.reg.IncomeY.Map(t.Income)
	})
	s.show("scatter-x", 0.7)
	s.show("scatter-y", 0.7)
	s.show("best-fit", 0.5)
	s.showID("legend-black", 1)
}

// renderPoverty stacks tracts vertically by poverty rate around one column.
// The many-body force of the preceding clump charts stays installed.
func renderPoverty(s *Scene) {
	tracts := s.ds.Tracts
	s.sim.SetForce("forceX", force.Y(func(i int) float64 {
		return s.reg.PctPoverty.Map(tracts[i].PctPoverty) - 50
	}))
	s.sim.SetForce("forceY", force.X(force.Constant(povertyX)))
	s.sim.SetForce("collide", force.NewCollide(func(i int) float64 {
		return s.reg.PopSize.Map(tracts[i].Population) + 1
	}))
	s.sim.SetAlphaDecay(povertyDecay)
	s.sim.Restart(povertyAlpha)

	s.style(s.povertyRadius, blackFill)
	s.show("poverty-y-axis", 0.5)
	s.showID("legend-black", 1)
}

// renderPovertyByArea recolors the poverty layout by area and leaves the
// simulation running as configured by the poverty step.
func renderPovertyByArea(s *Scene) {
	s.style(s.povertyRadius, s.areaFill)
	s.show("poverty-y-axis", 0.5)
	s.showID("legend-area", 1)
}

// clump pulls each area's tracts toward a point beside its anchor.
func (s *Scene) clump() {
	tracts := s.ds.Tracts
	s.sim.SetForce("charge", force.NewManyBody(clumpCharge))
	s.sim.SetForce("forceX", force.X(func(i int) float64 { return AnchorFor(tracts[i].Area).X + 200 }))
	s.sim.SetForce("forceY", force.Y(func(i int) float64 { return AnchorFor(tracts[i].Area).Y - 50 }))
	s.sim.SetForce("collide", force.NewCollide(func(i int) float64 {
		return s.reg.PopSize.Map(tracts[i].Population) + 3
	}))
	s.sim.SetAlphaDecay(clumpDecay)
	s.sim.Restart(clumpAlpha)
}

// place moves every mark to a fixed position. Marks whose tract has no
// position are hidden.
func (s *Scene) place(pos func(dataset.Tract) (float64, float64)) {
	s.sim.Place(func(i int) (float64, float64) { return pos(s.ds.Tracts[i]) })
	for i, t := range s.ds.Tracts {
		if x, y := pos(t); math.IsNaN(x) || math.IsNaN(y) {
			s.marks[i].Opacity = 0
		}
	}
}

// areaLabels shows the area boxes and sets their label text.
func (s *Scene) areaLabels(text func(dataset.Summary) string) {
	s.each("cat-rect", func(e *Element) {
		a := AnchorFor(e.Area)
		e.Opacity = 0.2
		e.X, e.Y = a.X+90, a.Y+230
	})
	s.each("lab-text", func(e *Element) {
		a := AnchorFor(e.Area)
		e.Opacity = 1
		e.X, e.Y = a.X+200, a.Y+250
		if sum, ok := s.ds.Summary(e.Area); ok {
			e.Text = text(sum)
		}
		e.HoverText = e.Area
	})
}

func (s *Scene) popRadius(t dataset.Tract) float64 {
	return s.reg.PopSize.Map(t.Population)
}

func (s *Scene) povertyRadius(t dataset.Tract) float64 {
	return s.reg.Pop.Map(t.Population) * 0.02
}

func (s *Scene) areaFill(t dataset.Tract) string {
	return s.reg.Area.Map(t.Area)
}

func blackFill(t dataset.Tract) string {
	return scale.ClassifyBlack(t.PctBlack).Color()
}
