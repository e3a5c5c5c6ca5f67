package sink

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/scale"
)

func testScene(t *testing.T) *chart.Scene {
	t.Helper()
	tracts := []dataset.Tract{
		{ID: "1011", Area: dataset.AreaCity, Population: 100, Income: 25000, PctBlack: 0.10, PctNotWhite: 0.20, PctPoverty: 0.30, Bucket: 3, Midpoint: 21500},
		{ID: "2101", Area: dataset.AreaCounty, Population: 200, Income: 60000, PctBlack: 0.60, PctNotWhite: 0.70, PctPoverty: 0.10, Bucket: 8, Midpoint: 56500},
	}
	ds := &dataset.Dataset{
		Tracts:    tracts,
		Years:     []dataset.Year{{Year: 1950, City: 856796, County: 406349}, {Year: 2010, City: 319294, County: 998954}},
		Summaries: dataset.Summarize(tracts),
	}
	sc, err := chart.NewScene(ds, scale.Build(ds, scale.DefaultFrame()), chart.WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

// wellFormed decodes the whole document.
func wellFormed(t *testing.T, doc []byte) {
	t.Helper()
	d := xml.NewDecoder(bytes.NewReader(doc))
	for {
		_, err := d.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.Fatalf("malformed SVG: %v\n%s", err, doc)
		}
	}
}

func TestRenderSVG(t *testing.T) {
	sc := testScene(t)
	if err := sc.Render(chart.TotalPop); err != nil {
		t.Fatal(err)
	}
	svg := RenderSVG(sc.Snapshot(), WithTitle("Total population & more"))
	wellFormed(t, svg)
	s := string(svg)

	for _, want := range []string{
		`viewBox="0 0 1200 1000"`,
		`data-step="total-pop"`,
		`<title>Total population &amp; more</title>`,
		`id="legend-area"`,
		`id="lab-text-0"`,
		`data-hover="St. Louis City"`,
		`>Population: 100</text>`,
		`fill="` + scale.ColorCounty + `"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("SVG missing %s", want)
		}
	}
	for _, hidden := range []string{`id="population-x"`, `id="scatter-x"`, `id="legend-black"`} {
		if strings.Contains(s, hidden) {
			t.Errorf("SVG should not draw hidden %s", hidden)
		}
	}
	if n := strings.Count(s, `class="mark"`); n != 2 {
		t.Errorf("marks = %d, want 2", n)
	}
	if strings.Contains(s, `class="tooltip"`) {
		t.Error("tooltips drawn without WithTooltips")
	}
}

func TestRenderSVGHidden(t *testing.T) {
	sc := testScene(t)
	svg := string(RenderSVG(sc.Snapshot(), WithHidden()))
	for _, want := range []string{`id="population-x"`, `id="scatter-y"`, `id="legend-black"`, `id="poverty-axis"`} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %s", want)
		}
	}
}

func TestRenderSVGAxes(t *testing.T) {
	sc := testScene(t)
	svg := string(RenderSVG(sc.Snapshot()))
	wellFormed(t, []byte(svg))
	if !strings.Contains(svg, `>1950</text>`) {
		t.Error("trend x axis should label years without grouping")
	}
	if !strings.Contains(svg, `stroke-dasharray="2.5"`) {
		t.Error("population gridlines should be dashed")
	}
	if !strings.Contains(svg, `>St. Louis County</text>`) {
		t.Error("missing trend line label")
	}
}

func TestRenderSVGTooltips(t *testing.T) {
	sc := testScene(t)
	if err := sc.Render(chart.Scatter); err != nil {
		t.Fatal(err)
	}
	var tips []chart.Tooltip
	for i := range sc.Marks() {
		tt, _ := sc.Tooltip(i)
		tips = append(tips, tt)
	}
	svg := RenderSVG(sc.Snapshot(), WithTooltips(tips))
	wellFormed(t, svg)
	s := string(svg)
	if n := strings.Count(s, `class="tooltip"`); n != 2 {
		t.Errorf("tooltips = %d, want 2", n)
	}
	if !strings.Contains(s, `data-for="mark-1"`) || !strings.Contains(s, `Median Income:</tspan> $60,000`) {
		t.Errorf("tooltip content missing:\n%s", s)
	}
}

func TestRenderJSON(t *testing.T) {
	sc := testScene(t)
	if err := sc.Render(chart.Histogram); err != nil {
		t.Fatal(err)
	}
	data, err := RenderJSON(sc.Snapshot(), WithJSONDataset("abc123"), WithJSONSeed(42))
	if err != nil {
		t.Fatalf("RenderJSON() error: %v", err)
	}

	var out jsonOutput
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	if out.Step != chart.Histogram {
		t.Errorf("Step = %s, want histogram", out.Step)
	}
	if out.Title != chart.Histogram.Title() {
		t.Errorf("Title = %q", out.Title)
	}
	if out.Width != 1200 || out.Height != 1000 {
		t.Errorf("size = %vx%v", out.Width, out.Height)
	}
	if out.Dataset != "abc123" || out.Seed != 42 {
		t.Errorf("Dataset, Seed = %q, %d", out.Dataset, out.Seed)
	}
	if len(out.Marks) != 2 {
		t.Errorf("Marks count = %d, want 2", len(out.Marks))
	}
	for _, e := range out.Elements {
		if !e.Visible() {
			t.Errorf("hidden element %s exported", e.ID)
		}
		if !e.Tags.Has(chart.Histogram) {
			t.Errorf("element %s not tagged histogram", e.ID)
		}
	}
	if len(out.Elements) != 2 {
		t.Errorf("Elements = %d, want hist-axis and legend-area", len(out.Elements))
	}
}

func TestRenderJSONEmpty(t *testing.T) {
	data, err := RenderJSON(chart.Snapshot{Step: chart.Initial})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"marks": []`)) || !bytes.Contains(data, []byte(`"step": "initial"`)) {
		t.Errorf("unexpected document:\n%s", data)
	}
}
