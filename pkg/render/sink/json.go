package sink

import (
	"encoding/json"

	"github.com/matzehuels/tractstory/pkg/chart"
)

// JSONOption configures JSON rendering via [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	tooltips []chart.Tooltip
	dataset  string
	seed     uint64
	hidden   bool
}

// WithJSONTooltips includes one tooltip per mark.
func WithJSONTooltips(tips []chart.Tooltip) JSONOption {
	return func(r *jsonRenderer) { r.tooltips = tips }
}

// WithJSONDataset records the hash of the dataset the frame was drawn from.
func WithJSONDataset(hash string) JSONOption { return func(r *jsonRenderer) { r.dataset = hash } }

// WithJSONSeed records the layout seed, so the frame can be reproduced.
func WithJSONSeed(seed uint64) JSONOption { return func(r *jsonRenderer) { r.seed = seed } }

// WithJSONHidden keeps furniture that is invisible in this state.
func WithJSONHidden() JSONOption { return func(r *jsonRenderer) { r.hidden = true } }

type jsonOutput struct {
	Step     chart.Step      `json:"step"`
	Title    string          `json:"title"`
	Width    float64         `json:"width"`
	Height   float64         `json:"height"`
	Dataset  string          `json:"dataset,omitempty"`
	Seed     uint64          `json:"seed,omitempty"`
	Marks    []chart.Mark    `json:"marks"`
	Elements []chart.Element `json:"elements"`
	Tooltips []chart.Tooltip `json:"tooltips,omitempty"`
}

// RenderJSON exports a snapshot as a pretty-printed JSON document. It does
// not modify snap and is safe to call concurrently.
func RenderJSON(snap chart.Snapshot, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}

	out := jsonOutput{
		Step:     snap.Step,
		Title:    snap.Step.Title(),
		Width:    snap.ViewW,
		Height:   snap.ViewH,
		Dataset:  r.dataset,
		Seed:     r.seed,
		Marks:    snap.Marks,
		Elements: make([]chart.Element, 0, len(snap.Elements)),
		Tooltips: r.tooltips,
	}
	if out.Marks == nil {
		out.Marks = []chart.Mark{}
	}
	for _, e := range snap.Elements {
		if e.Visible() || r.hidden {
			out.Elements = append(out.Elements, e)
		}
	}
	return json.MarshalIndent(out, "", "  ")
}
