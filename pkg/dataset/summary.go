package dataset

import (
	"math"
	"slices"

	"github.com/aclements/go-moremath/stats"

	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

// Summary aggregates the tracts of one area. Percentages are on a 0-100 scale
// to match the published figures.
type Summary struct {
	Area        string  `json:"area"`
	Tracts      int     `json:"tracts"`
	AvgIncome   float64 `json:"avg_income"`
	Population  float64 `json:"population"`
	PctNotWhite float64 `json:"pct_not_white"`
	PctBlack    float64 `json:"pct_black"`
	Poverty     float64 `json:"poverty"`
}

// Reference holds the published per-area figures the derived summaries are
// checked against.
var Reference = map[string]Summary{
	AreaCity: {
		Area:        AreaCity,
		AvgIncome:   31913,
		Population:  311273,
		PctNotWhite: 53.0,
		PctBlack:    46.3,
		Poverty:     144255,
	},
	AreaCounty: {
		Area:        AreaCounty,
		AvgIncome:   30100,
		Population:  998684,
		PctNotWhite: 31.2,
		PctBlack:    23.7,
		Poverty:     237047,
	},
}

// DefaultTolerance is the relative error accepted by ValidateSummaries.
const DefaultTolerance = 0.05

// Summarize derives one Summary per area, in [Areas] order followed by any
// other area names in first-seen order. NaN cells are left out of every
// aggregate.
func Summarize(tracts []Tract) []Summary {
	order := append([]string(nil), Areas...)
	groups := make(map[string][]Tract)
	for _, t := range tracts {
		if _, ok := groups[t.Area]; !ok && !slices.Contains(order, t.Area) {
			order = append(order, t.Area)
		}
		groups[t.Area] = append(groups[t.Area], t)
	}

	var out []Summary
	for _, area := range order {
		ts := groups[area]
		if len(ts) == 0 {
			continue
		}
		out = append(out, summarize(area, ts))
	}
	return out
}

func summarize(area string, ts []Tract) Summary {
	s := Summary{Area: area, Tracts: len(ts)}

	var incomes []float64
	var nwWeighted, blackWeighted, weight float64
	for _, t := range ts {
		if !math.IsNaN(t.Income) && t.Income > 0 {
			incomes = append(incomes, t.Income)
		}
		if math.IsNaN(t.Population) {
			continue
		}
		s.Population += t.Population
		if !math.IsNaN(t.Poverty) {
			s.Poverty += t.Poverty
		}
		if math.IsNaN(t.PctNotWhite) || math.IsNaN(t.PctBlack) {
			continue
		}
		nwWeighted += t.PctNotWhite * t.Population
		blackWeighted += t.PctBlack * t.Population
		weight += t.Population
	}

	if len(incomes) > 0 {
		s.AvgIncome = stats.Mean(incomes)
	}
	if weight > 0 {
		s.PctNotWhite = 100 * nwWeighted / weight
		s.PctBlack = 100 * blackWeighted / weight
	}
	return s
}

// ValidateSummaries compares derived summaries with [Reference]. Every field
// outside the relative tolerance is reported in one SUMMARY_MISMATCH error
// whose cause is a *errors.MismatchError. Areas without a reference are ignored.
func ValidateSummaries(derived []Summary, tolerance float64) error {
	var mismatches []tserrors.FieldMismatch
	for _, got := range derived {
		want, ok := Reference[got.Area]
		if !ok {
			continue
		}
		check := func(field string, g, w float64) {
			if math.IsNaN(g) || math.Abs(g-w) > tolerance*math.Abs(w) {
				mismatches = append(mismatches, tserrors.FieldMismatch{Area: got.Area, Field: field, Got: g, Want: w})
			}
		}
		check("avg_income", got.AvgIncome, want.AvgIncome)
		check("population", got.Population, want.Population)
		check("pct_not_white", got.PctNotWhite, want.PctNotWhite)
		check("pct_black", got.PctBlack, want.PctBlack)
		check("poverty", got.Poverty, want.Poverty)
	}
	if len(mismatches) == 0 {
		return nil
	}
	cause := &tserrors.MismatchError{Fields: mismatches}
	return tserrors.Wrap(tserrors.ErrCodeSummaryMismatch, cause, "area summaries disagree with reference figures")
}
