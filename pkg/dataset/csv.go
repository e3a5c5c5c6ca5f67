package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

// Tract table columns.
const (
	colTract       = "TRACT"
	colArea        = "COUNTY_NAME"
	colPopulation  = "ACS_N_TOTAL_POP"
	colIncome      = "ACS_MED_INCOME"
	colBlack       = "N_BLACK"
	colPctBlack    = "PCT_BLACK"
	colNotWhite    = "N_NOT_WHITE"
	colPctNotWhite = "PCT_NOT_WHITE"
	colPoverty     = "N_POVERTY_STAT"
	colPctPoverty  = "PCT_POVERTY_STAT"
	colBucket      = "bucket_idx"
	colMidpoint    = "midpoint"
	colCoords      = "coords"
)

// Population trend columns.
const (
	colYear      = "YEAR"
	colCityPop   = "ST_LOUIS_CITY"
	colCountyPop = "ST_LOUIS_COUNTY"
)

var requiredTractColumns = []string{
	colTract, colArea, colPopulation, colIncome,
	colBlack, colPctBlack, colNotWhite, colPctNotWhite,
	colPoverty, colPctPoverty,
}

// ParseReport counts the cells that were coerced while parsing. Coercions
// never fail the parse: an empty numeric cell becomes 0 and an unparseable one
// becomes NaN.
type ParseReport struct {
	Rows           int `json:"rows"`
	EmptyCells     int `json:"empty_cells"`
	InvalidCells   int `json:"invalid_cells"`
	DerivedBuckets int `json:"derived_buckets"`
	SkippedRows    int `json:"skipped_rows"`
}

// Clean reports whether no cell needed coercion.
func (r ParseReport) Clean() bool {
	return r.EmptyCells == 0 && r.InvalidCells == 0 && r.SkippedRows == 0
}

// header maps column names to their index in a row.
type header map[string]int

func readHeader(cr *csv.Reader) (header, error) {
	names, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, tserrors.New(tserrors.ErrCodeInvalidDataset, "empty table")
	}
	if err != nil {
		return nil, tserrors.Wrap(tserrors.ErrCodeInvalidDataset, err, "read header")
	}
	h := make(header, len(names))
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		if _, dup := h[n]; !dup {
			h[n] = i
		}
	}
	return h, nil
}

func (h header) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return tserrors.New(tserrors.ErrCodeInvalidDataset, "missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h header) cell(row []string, col string) (string, bool) {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[i]), true
}

// number parses a numeric cell the way a browser coerces strings to numbers.
func (h header) number(row []string, col string, rep *ParseReport) float64 {
	s, _ := h.cell(row, col)
	if s == "" {
		rep.EmptyCells++
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		rep.InvalidCells++
		return math.NaN()
	}
	return v
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// ParseTracts reads the tract table. Rows without a tract identifier are
// skipped; a repeated identifier is an error. When the bucket columns are
// absent or zero the histogram bin is derived from the median income.
func ParseTracts(r io.Reader) ([]Tract, ParseReport, error) {
	var rep ParseReport
	cr := newReader(r)

	h, err := readHeader(cr)
	if err != nil {
		return nil, rep, err
	}
	if err := h.require(requiredTractColumns...); err != nil {
		return nil, rep, err
	}

	var tracts []Tract
	seen := make(map[string]struct{})
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, rep, tserrors.Wrap(tserrors.ErrCodeInvalidDataset, err, "read tract row near line %d", line)
		}
		rep.Rows++

		id, _ := h.cell(row, colTract)
		if id == "" {
			rep.SkippedRows++
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, rep, tserrors.New(tserrors.ErrCodeInvalidDataset, "duplicate tract %q", id)
		}
		seen[id] = struct{}{}

		area, _ := h.cell(row, colArea)
		coords, _ := h.cell(row, colCoords)
		t := Tract{
			ID:          id,
			Area:        area,
			Population:  h.number(row, colPopulation, &rep),
			Income:      h.number(row, colIncome, &rep),
			Black:       h.number(row, colBlack, &rep),
			PctBlack:    h.number(row, colPctBlack, &rep),
			NotWhite:    h.number(row, colNotWhite, &rep),
			PctNotWhite: h.number(row, colPctNotWhite, &rep),
			Poverty:     h.number(row, colPoverty, &rep),
			PctPoverty:  h.number(row, colPctPoverty, &rep),
			Coords:      coords,
		}

		if _, ok := h[colBucket]; ok {
			b := h.number(row, colBucket, &rep)
			if !math.IsNaN(b) {
				t.Bucket = int(b)
			}
		}
		if _, ok := h[colMidpoint]; ok {
			t.Midpoint = h.number(row, colMidpoint, &rep)
		}
		if t.Bucket == 0 || t.Midpoint == 0 || math.IsNaN(t.Midpoint) {
			t.Bucket, t.Midpoint = BucketFor(t.Income)
			rep.DerivedBuckets++
		}

		tracts = append(tracts, t)
	}

	if len(tracts) == 0 {
		return nil, rep, tserrors.New(tserrors.ErrCodeInvalidDataset, "no tracts")
	}
	return tracts, rep, nil
}

// ParseYears reads the population trend table and returns rows ordered by year.
func ParseYears(r io.Reader) ([]Year, error) {
	var rep ParseReport
	cr := newReader(r)

	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require(colYear, colCityPop, colCountyPop); err != nil {
		return nil, err
	}

	var years []Year
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, tserrors.Wrap(tserrors.ErrCodeInvalidDataset, err, "read population row")
		}
		y := h.number(row, colYear, &rep)
		if math.IsNaN(y) || y == 0 {
			continue
		}
		years = append(years, Year{
			Year:   int(y),
			City:   h.number(row, colCityPop, &rep),
			County: h.number(row, colCountyPop, &rep),
		})
	}

	slices.SortStableFunc(years, func(a, b Year) int { return a.Year - b.Year })
	return years, nil
}
