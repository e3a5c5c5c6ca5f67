package chart

import "github.com/matzehuels/tractstory/pkg/dataset"

// Anchor is where an area's clump and labels are placed.
type Anchor struct {
	X, Y float64
	// HistOffset shifts the area's histogram column so the two areas sit
	// side by side within a bin.
	HistOffset float64
}

var anchors = map[string]Anchor{
	dataset.AreaCity:   {X: 50, Y: 500, HistOffset: 0},
	dataset.AreaCounty: {X: 500, Y: 500, HistOffset: 15},
}

// fallbackAnchor sits between the two known areas.
var fallbackAnchor = Anchor{X: 275, Y: 500}

// AnchorFor returns the anchor of area.
func AnchorFor(area string) Anchor {
	if a, ok := anchors[area]; ok {
		return a
	}
	return fallbackAnchor
}

// Mark and clump constants.
const (
	initialFill   = "#919191"
	trendFill     = "#eae7dc"
	rectFill      = "#a5a8c2"
	initialX      = 550
	initialY      = 500
	clumpCharge   = 3
	clumpDecay    = 0.02
	clumpAlpha    = 0.9
	povertyX      = 550
	povertyAlpha  = 0.8
	povertyDecay  = 0.05
	histRadius    = 5
	scatterRadius = 4
)

// Fallback best-fit endpoints of income against Black share, used when the
// regression cannot be computed.
var fallbackFit = [2][2]float64{{0, 43238}, {1, 17543}}
