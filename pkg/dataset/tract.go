package dataset

import "math"

// Area names as they appear in the COUNTY_NAME column.
const (
	AreaCity   = "St. Louis City"
	AreaCounty = "St. Louis County"
)

// Areas lists the two areas in display order.
var Areas = []string{AreaCity, AreaCounty}

// Tract is one census tract. Percentages are fractions in [0,1].
type Tract struct {
	ID          string  `json:"tract"`
	Area        string  `json:"area"`
	Population  float64 `json:"population"`
	Income      float64 `json:"income"`
	Black       float64 `json:"black"`
	PctBlack    float64 `json:"pct_black"`
	NotWhite    float64 `json:"not_white"`
	PctNotWhite float64 `json:"pct_not_white"`
	Poverty     float64 `json:"poverty"`
	PctPoverty  float64 `json:"pct_poverty"`
	Bucket      int     `json:"bucket_idx"`
	Midpoint    float64 `json:"midpoint"`
	Coords      string  `json:"coords,omitempty"`
}

// Year is one row of the population trend table.
type Year struct {
	Year   int     `json:"year"`
	City   float64 `json:"city"`
	County float64 `json:"county"`
}

// Dataset is the parsed, immutable input of one visualization.
type Dataset struct {
	Tracts    []Tract     `json:"tracts"`
	Years     []Year      `json:"years"`
	Summaries []Summary   `json:"summaries"`
	Hash      string      `json:"hash"`
	Report    ParseReport `json:"report"`
}

// Values extracts one field from every tract, in dataset order.
func (d *Dataset) Values(field func(Tract) float64) []float64 {
	out := make([]float64, len(d.Tracts))
	for i, t := range d.Tracts {
		out[i] = field(t)
	}
	return out
}

// Summary returns the aggregate for area, or false when the area has no tracts.
func (d *Dataset) Summary(area string) (Summary, bool) {
	for _, s := range d.Summaries {
		if s.Area == area {
			return s, true
		}
	}
	return Summary{}, false
}

// MaxYearPopulation returns the largest city or county population in the trend table.
func (d *Dataset) MaxYearPopulation() float64 {
	m := 0.0
	for _, y := range d.Years {
		m = math.Max(m, math.Max(y.City, y.County))
	}
	return m
}
