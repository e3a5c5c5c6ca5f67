package scale

import "github.com/matzehuels/tractstory/pkg/dataset"

// Palette colors.
const (
	ColorCity    = "#6d49d6"
	ColorCounty  = "#e85a4f"
	ColorTop     = "#802d72"
	ColorMid     = "#b06fa5"
	ColorNeutral = "#ccccc8"
	ColorSwatch  = "#d6d6d2" // neutral tier as drawn in legends
)

// Ordinal maps categories to colors by position. Categories outside the
// domain map to Unknown.
type Ordinal struct {
	Domain  []string
	Range   []string
	Unknown string
}

// Map returns the color for category.
func (o Ordinal) Map(category string) string {
	for i, d := range o.Domain {
		if d == category && len(o.Range) > 0 {
			return o.Range[i%len(o.Range)]
		}
	}
	return o.Unknown
}

// AreaColors is the two-category area scale.
func AreaColors() Ordinal {
	return Ordinal{
		Domain:  []string{dataset.AreaCity, dataset.AreaCounty},
		Range:   []string{ColorCity, ColorCounty},
		Unknown: ColorNeutral,
	}
}

// Tier is a three-level threshold classification.
type Tier int

const (
	TierNeutral Tier = iota
	TierMid
	TierTop
)

// Color returns the mark fill of the tier.
func (t Tier) Color() string {
	switch t {
	case TierTop:
		return ColorTop
	case TierMid:
		return ColorMid
	default:
		return ColorNeutral
	}
}

// ClassifyNotWhite buckets a people-of-color share. Both cutoffs are strict.
func ClassifyNotWhite(p float64) Tier {
	return classify(p, 0.50, 0.33)
}

// ClassifyBlack buckets a Black share. Both cutoffs are strict.
func ClassifyBlack(p float64) Tier {
	return classify(p, 0.50, 0.13)
}

func classify(p, top, mid float64) Tier {
	switch {
	case p > top:
		return TierTop
	case p > mid:
		return TierMid
	default:
		return TierNeutral
	}
}

// Swatch is one legend entry.
type Swatch struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Legend is a titled list of swatches.
type Legend struct {
	Name     string   `json:"name"`
	Swatches []Swatch `json:"swatches"`
}

// AreaLegend keys the area colors.
func AreaLegend() Legend {
	return Legend{Name: "area", Swatches: []Swatch{
		{dataset.AreaCity, ColorCity},
		{dataset.AreaCounty, ColorCounty},
	}}
}

// NotWhiteLegend keys the people-of-color tiers.
func NotWhiteLegend() Legend {
	return Legend{Name: "not-white", Swatches: []Swatch{
		{"< 30% People of Color", ColorSwatch},
		{"> 30% People of Color", ColorMid},
		{"> 50% People of Color", ColorTop},
	}}
}

// BlackLegend keys the Black tiers.
func BlackLegend() Legend {
	return Legend{Name: "black", Swatches: []Swatch{
		{"< 13% Black", ColorSwatch},
		{"> 13% Black", ColorMid},
		{"> 50% Black", ColorTop},
	}}
}
