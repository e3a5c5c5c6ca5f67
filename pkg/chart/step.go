package chart

import (
	"strconv"
	"strings"

	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

// Step identifies one narrative section and the chart state it shows.
type Step int

// The eight chart states, in narrative order.
const (
	Trend Step = iota
	TotalPop
	Histogram
	NWPop
	BlackPop
	Scatter
	Poverty
	Poverty2
)

// NumSteps is the number of chart states.
const NumSteps = 8

// Initial is the pre-Trend state before any step has been rendered.
const Initial Step = -1

var stepNames = [NumSteps]string{
	Trend:     "trend",
	TotalPop:  "total-pop",
	Histogram: "histogram",
	NWPop:     "nw-pop",
	BlackPop:  "black-pop",
	Scatter:   "scatter",
	Poverty:   "poverty",
	Poverty2:  "poverty-area",
}

var stepTitles = [NumSteps]string{
	Trend:     "Population trend, 1950 to today",
	TotalPop:  "Total population by area",
	Histogram: "Median income histogram",
	NWPop:     "People of color by area",
	BlackPop:  "Black residents by area",
	Scatter:   "Median income vs. share of Black residents",
	Poverty:   "Poverty rate, colored by Black share",
	Poverty2:  "Poverty rate, colored by area",
}

// String returns the step's short name.
func (s Step) String() string {
	if !s.Valid() {
		if s == Initial {
			return "initial"
		}
		return "step(" + strconv.Itoa(int(s)) + ")"
	}
	return stepNames[s]
}

// Title returns a human-readable description of the chart state.
func (s Step) Title() string {
	if !s.Valid() {
		return s.String()
	}
	return stepTitles[s]
}

// Valid reports whether s is one of the eight chart states.
func (s Step) Valid() bool {
	return s >= 0 && s < NumSteps
}

// Steps returns all chart states in narrative order.
func Steps() []Step {
	out := make([]Step, NumSteps)
	for i := range out {
		out[i] = Step(i)
	}
	return out
}

// ParseStep accepts a step name or its index.
func ParseStep(v string) (Step, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	if i, err := strconv.Atoi(v); err == nil {
		if s := Step(i); s.Valid() {
			return s, nil
		}
		return Initial, tserrors.New(tserrors.ErrCodeInvalidStep, "step index %d out of range [0,%d]", i, NumSteps-1)
	}
	for i, name := range stepNames {
		if name == v {
			return Step(i), nil
		}
	}
	return Initial, tserrors.New(tserrors.ErrCodeInvalidStep, "unknown step %q (valid: %s)", v, strings.Join(stepNames[:], ", "))
}

// StepSet is a set of steps, used to tag chart furniture with the states it
// belongs to.
type StepSet uint16

// Tags returns the set of the given steps.
func Tags(steps ...Step) StepSet {
	var ss StepSet
	for _, s := range steps {
		if s.Valid() {
			ss |= 1 << s
		}
	}
	return ss
}

// Has reports whether s is in the set.
func (ss StepSet) Has(s Step) bool {
	return s.Valid() && ss&(1<<s) != 0
}

// Steps lists the members in narrative order.
func (ss StepSet) Steps() []Step {
	var out []Step
	for _, s := range Steps() {
		if ss.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Step) UnmarshalText(b []byte) error {
	if string(b) == "initial" {
		*s = Initial
		return nil
	}
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
