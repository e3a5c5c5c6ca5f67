package chart

import (
	"html"
	"strings"

	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/scale"
)

// TooltipLine is one labelled value of a tooltip.
type TooltipLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Tooltip is the hover card of a mark.
type Tooltip struct {
	Lines []TooltipLine `json:"lines"`
}

// NewTooltip describes a tract.
func NewTooltip(t dataset.Tract) Tooltip {
	return Tooltip{Lines: []TooltipLine{
		{"Tract", t.ID},
		{"Area", t.Area},
		{"Population", scale.Sig2(t.Population)},
		{"People of Color", scale.Percent(t.PctNotWhite)},
		{"Black", scale.Percent(t.PctBlack)},
		{"Median Income", scale.Dollars(t.Income)},
		{"Poverty Rate", scale.Percent(t.PctPoverty)},
	}}
}

// Text renders the tooltip as "Label: value" lines.
func (tt Tooltip) Text() string {
	var b strings.Builder
	for i, l := range tt.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Label + ": " + l.Value)
	}
	return b.String()
}

// HTML renders the tooltip as escaped markup with bold labels.
func (tt Tooltip) HTML() string {
	parts := make([]string, len(tt.Lines))
	for i, l := range tt.Lines {
		parts[i] = "<strong>" + html.EscapeString(l.Label) + ":</strong> " + html.EscapeString(l.Value)
	}
	return strings.Join(parts, "<br>")
}
