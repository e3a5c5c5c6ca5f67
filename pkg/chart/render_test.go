package chart

import (
	"context"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/tractstory/pkg/dataset"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/force"
	"github.com/matzehuels/tractstory/pkg/scale"
)

func twoTracts() *dataset.Dataset {
	tracts := []dataset.Tract{
		{ID: "1011", Area: dataset.AreaCity, Population: 100, Income: 25000, PctBlack: 0.10, PctNotWhite: 0.20, PctPoverty: 0.30, Bucket: 3, Midpoint: 21500},
		{ID: "2101", Area: dataset.AreaCounty, Population: 200, Income: 60000, PctBlack: 0.60, PctNotWhite: 0.70, PctPoverty: 0.10, Bucket: 8, Midpoint: 56500},
	}
	return &dataset.Dataset{
		Tracts:    tracts,
		Years:     []dataset.Year{{Year: 1950, City: 856796, County: 406349}, {Year: 2010, City: 319294, County: 998954}},
		Summaries: dataset.Summarize(tracts),
	}
}

func newTestScene(t *testing.T, ds *dataset.Dataset) *Scene {
	t.Helper()
	sc, err := NewScene(ds, scale.Build(ds, scale.DefaultFrame()),
		WithLogger(log.New(io.Discard)),
		WithSimulation(force.New(len(ds.Tracts), force.WithSeed(3))))
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

func TestDispatchTableIsComplete(t *testing.T) {
	for _, s := range Steps() {
		if renderers[s] == nil {
			t.Errorf("no renderer for %s", s)
		}
	}
}

func TestInitialScene(t *testing.T) {
	sc := newTestScene(t, twoTracts())
	if sc.Active() != Initial {
		t.Errorf("Active() = %s, want initial", sc.Active())
	}
	for _, m := range sc.Marks() {
		if m.X != 550 || m.Y != 500 || m.R != 1 || m.Fill != "#919191" {
			t.Errorf("initial mark = %+v", m)
		}
	}
	for _, e := range sc.Elements() {
		if want := e.Tags.Has(Trend); e.Visible() != want {
			t.Errorf("initial %s visible = %v, want %v", e.ID, e.Visible(), want)
		}
	}
}

func TestCleanupIsExhaustive(t *testing.T) {
	sc := newTestScene(t, twoTracts())
	// forward through every step, then back again
	order := append(Steps(), Poverty, Scatter, BlackPop, NWPop, Histogram, TotalPop, Trend)
	for _, step := range order {
		if err := sc.Render(step); err != nil {
			t.Fatalf("Render(%s): %v", step, err)
		}
		for _, e := range sc.Elements() {
			if !e.Tags.Has(step) && e.Opacity != 0 {
				t.Errorf("after %s: %s has opacity %v, want 0", step, e.ID, e.Opacity)
			}
		}
	}
}

func TestEveryStepShowsSomething(t *testing.T) {
	for _, step := range Steps() {
		sc := newTestScene(t, twoTracts())
		if err := sc.Render(step); err != nil {
			t.Fatal(err)
		}
		visible := 0
		for _, e := range sc.Elements() {
			if e.Visible() {
				visible++
			}
		}
		if visible == 0 {
			t.Errorf("%s shows no furniture", step)
		}
	}
}

func TestTotalPopulationVersusBlackPopulation(t *testing.T) {
	total := newTestScene(t, twoTracts())
	if err := total.Render(TotalPop); err != nil {
		t.Fatal(err)
	}
	tm := total.Marks()
	if tm[0].Fill == tm[1].Fill {
		t.Errorf("area colors not distinct: %s", tm[0].Fill)
	}
	if tm[0].Fill != scale.ColorCity || tm[1].Fill != scale.ColorCounty {
		t.Errorf("fills = %s, %s", tm[0].Fill, tm[1].Fill)
	}
	if tm[1].R <= tm[0].R {
		t.Errorf("county radius %v should exceed city radius %v", tm[1].R, tm[0].R)
	}

	black := newTestScene(t, twoTracts())
	if err := black.Render(BlackPop); err != nil {
		t.Fatal(err)
	}
	bm := black.Marks()
	if bm[0].Fill != scale.ColorNeutral {
		t.Errorf("city fill = %s, want neutral tier", bm[0].Fill)
	}
	if bm[1].Fill != scale.ColorTop {
		t.Errorf("county fill = %s, want top tier", bm[1].Fill)
	}
	if bm[0].R != tm[0].R || bm[1].R != tm[1].R {
		t.Errorf("radii changed between charts: %v,%v vs %v,%v", bm[0].R, bm[1].R, tm[0].R, tm[1].R)
	}
}

func TestAreaLabels(t *testing.T) {
	sc := newTestScene(t, twoTracts())
	if e, _ := sc.Element("lab-text-0"); e.Text != "Average: $25,000" {
		t.Errorf("initial label = %q", e.Text)
	}
	tests := []struct {
		step Step
		want string
	}{
		{TotalPop, "Population: 100"},
		{NWPop, "People of Color: 20%"},
		{BlackPop, "Black Residents: 10%"},
	}
	for _, tt := range tests {
		if err := sc.Render(tt.step); err != nil {
			t.Fatal(err)
		}
		e, ok := sc.Element("lab-text-0")
		if !ok {
			t.Fatal("lab-text-0 missing")
		}
		if e.Text != tt.want {
			t.Errorf("%s label = %q, want %q", tt.step, e.Text, tt.want)
		}
		if e.DisplayText(true) != dataset.AreaCity || e.DisplayText(false) != tt.want {
			t.Errorf("%s hover toggle = %q / %q", tt.step, e.DisplayText(true), e.DisplayText(false))
		}
		if e.X != 250 || e.Y != 750 || e.Opacity != 1 {
			t.Errorf("%s label geometry = (%v, %v, %v)", tt.step, e.X, e.Y, e.Opacity)
		}
	}
	if err := sc.Render(Scatter); err != nil {
		t.Fatal(err)
	}
	if e, _ := sc.Element("cat-rect-0"); e.X != 1800 || e.Opacity != 0 {
		t.Errorf("area box not parked after leaving clump charts: %+v", e)
	}
}

func TestStoppedLayouts(t *testing.T) {
	ds := twoTracts()
	sc := newTestScene(t, ds)
	reg := sc.Registry()

	if err := sc.Render(Histogram); err != nil {
		t.Fatal(err)
	}
	if sc.Simulation().Running() {
		t.Error("histogram should stop the simulation")
	}
	m := sc.Marks()
	wantX := reg.HistX.Map(56500) + 15
	if m[1].X != wantX || m[1].Y != reg.HistY.Map(8) || m[1].R != 5 {
		t.Errorf("county histogram mark = %+v, want x %v", m[1], wantX)
	}

	if err := sc.Render(Scatter); err != nil {
		t.Fatal(err)
	}
	m = sc.Marks()
	if m[0].X != reg.PctBlackX.Map(0.10) || m[0].Y != reg.IncomeY.Map(25000) || m[0].R != 4 {
		t.Errorf("scatter mark = %+v", m[0])
	}

	if err := sc.Render(Trend); err != nil {
		t.Fatal(err)
	}
	for _, m := range sc.Marks() {
		if m.X != 1 || m.Y != 1 || m.R != 1 || m.Fill != "#eae7dc" {
			t.Errorf("trend mark = %+v", m)
		}
	}
}

func TestPovertyKeepsCharge(t *testing.T) {
	sc := newTestScene(t, twoTracts())
	for _, s := range []Step{TotalPop, Poverty} {
		if err := sc.Render(s); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"charge", "forceX", "forceY", "collide"}
	if diff := cmp.Diff(want, sc.Simulation().ForceNames()); diff != "" {
		t.Errorf("forces (-want +got):\n%s", diff)
	}
	if !sc.Simulation().Running() {
		t.Error("poverty chart should run the simulation")
	}
	if a := sc.Simulation().Alpha(); a != 0.8 {
		t.Errorf("alpha = %v, want 0.8", a)
	}

	if err := sc.Render(Poverty2); err != nil {
		t.Fatal(err)
	}
	m := sc.Marks()
	if m[0].Fill != scale.ColorCity {
		t.Errorf("poverty-by-area fill = %s", m[0].Fill)
	}
	if want := sc.Registry().Pop.Map(100) * 0.02; m[0].R != want {
		t.Errorf("poverty radius = %v, want %v", m[0].R, want)
	}
}

func TestClumpSettlesNearAnchors(t *testing.T) {
	sc := newTestScene(t, twoTracts())
	if err := sc.Render(TotalPop); err != nil {
		t.Fatal(err)
	}
	st, err := sc.Settle(context.Background(), 2000)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Converged {
		t.Fatalf("layout did not converge: %+v", st)
	}
	m := sc.Marks()
	if math.Abs(m[0].X-250) > math.Abs(m[0].X-700) {
		t.Errorf("city mark x = %v, want nearer 250 than 700", m[0].X)
	}
	if math.Abs(m[1].X-700) > math.Abs(m[1].X-250) {
		t.Errorf("county mark x = %v, want nearer 700 than 250", m[1].X)
	}
}

func TestRendererPanicDegradesToNeutral(t *testing.T) {
	sc := newTestScene(t, twoTracts())
	if err := sc.Render(TotalPop); err != nil {
		t.Fatal(err)
	}

	saved := renderers[Scatter]
	renderers[Scatter] = func(*Scene) { panic("boom") }
	t.Cleanup(func() { renderers[Scatter] = saved })

	err := sc.Render(Scatter)
	if !tserrors.Is(err, tserrors.ErrCodeRenderFailed) {
		t.Fatalf("err = %v, want RENDER_FAILED", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want panic value", err)
	}
	if sc.Active() != Initial {
		t.Errorf("Active() = %s, want initial", sc.Active())
	}
	if sc.Simulation().Running() {
		t.Error("simulation still running after failure")
	}
	for _, e := range sc.Elements() {
		if e.Visible() {
			t.Errorf("%s visible after failure", e.ID)
		}
	}
	for _, m := range sc.Marks() {
		if m.Fill != "#919191" || m.R != 1 {
			t.Errorf("mark not neutral: %+v", m)
		}
	}
}

func TestRenderRejectsInvalidStep(t *testing.T) {
	sc := newTestScene(t, twoTracts())
	for _, s := range []Step{Initial, NumSteps, 42} {
		if err := sc.Render(s); !tserrors.Is(err, tserrors.ErrCodeInvalidStep) {
			t.Errorf("Render(%d) err = %v, want INVALID_STEP", s, err)
		}
	}
}

func TestNewSceneValidation(t *testing.T) {
	ds := twoTracts()
	reg := scale.Build(ds, scale.DefaultFrame())
	if _, err := NewScene(&dataset.Dataset{}, reg); !tserrors.Is(err, tserrors.ErrCodeInvalidDataset) {
		t.Errorf("empty dataset err = %v", err)
	}
	if _, err := NewScene(ds, reg, WithSimulation(force.New(5))); !tserrors.Is(err, tserrors.ErrCodeInvalidInput) {
		t.Errorf("node count mismatch err = %v", err)
	}
}

func TestBestFit(t *testing.T) {
	y0, y1 := bestFit(twoTracts())
	// two points define the line exactly
	if math.Abs(y0-18000) > 1e-3 || math.Abs(y1-88000) > 1e-3 {
		t.Errorf("fit = (%v, %v), want (18000, 88000)", y0, y1)
	}

	flat := &dataset.Dataset{Tracts: []dataset.Tract{{PctBlack: 0.5, Income: 1}}}
	if y0, y1 := bestFit(flat); y0 != 43238 || y1 != 17543 {
		t.Errorf("fallback fit = (%v, %v)", y0, y1)
	}
}

func TestTooltip(t *testing.T) {
	tt := NewTooltip(twoTracts().Tracts[1])
	want := "Tract: 2101\nArea: St. Louis County\nPopulation: 200\nPeople of Color: 70%\nBlack: 60%\nMedian Income: $60,000\nPoverty Rate: 10%"
	if got := tt.Text(); got != want {
		t.Errorf("Text() =\n%s\nwant\n%s", got, want)
	}
	if !strings.Contains(tt.HTML(), "<strong>Tract:</strong> 2101") {
		t.Errorf("HTML() = %s", tt.HTML())
	}
}

func TestInterpolate(t *testing.T) {
	sc := newTestScene(t, twoTracts())
	a := sc.Snapshot()
	if err := sc.Render(Scatter); err != nil {
		t.Fatal(err)
	}
	b := sc.Snapshot()

	if diff := cmp.Diff(b, Interpolate(a, b, 1)); diff != "" {
		t.Errorf("t=1 should equal the target (-want +got):\n%s", diff)
	}
	start := Interpolate(a, b, 0)
	if start.Marks[0].X != a.Marks[0].X || start.Marks[0].Fill != a.Marks[0].Fill {
		t.Errorf("t=0 mark = %+v, want %+v", start.Marks[0], a.Marks[0])
	}
	mid := Interpolate(a, b, 0.5)
	if want := (a.Marks[0].X + b.Marks[0].X) / 2; math.Abs(mid.Marks[0].X-want) > 1e-9 {
		t.Errorf("mid x = %v, want %v", mid.Marks[0].X, want)
	}
	if f := mid.Marks[0].Fill; f == a.Marks[0].Fill || f == b.Marks[0].Fill {
		t.Errorf("mid fill %s should be a blend", f)
	}
	if got := Interpolate(a, Snapshot{Step: Trend}, 0.5); got.Step != Trend || len(got.Marks) != 0 {
		t.Error("mismatched snapshots should yield the target")
	}
}

func TestMissingValuesHideMarks(t *testing.T) {
	ds := twoTracts()
	ds.Tracts = append(ds.Tracts, dataset.Tract{
		ID: "2102", Area: dataset.AreaCounty, Population: 150, Income: math.NaN(),
		PctBlack: 0.3, PctNotWhite: 0.4, PctPoverty: math.NaN(), Midpoint: math.NaN(),
	})
	ds.Summaries = dataset.Summarize(ds.Tracts)
	sc := newTestScene(t, ds)

	if err := sc.Render(Scatter); err != nil {
		t.Fatal(err)
	}
	m := sc.Marks()
	if m[2].Opacity != 0 {
		t.Errorf("tract without income should be hidden in scatter, got %+v", m[2])
	}
	if m[0].Opacity != 1 || m[1].Opacity != 1 {
		t.Error("tracts with values should stay visible")
	}

	if err := sc.Render(Poverty); err != nil {
		t.Fatal(err)
	}
	if _, err := sc.Settle(context.Background(), 500); err != nil {
		t.Fatal(err)
	}
	for _, m := range sc.Marks() {
		if math.IsNaN(m.X) || math.IsNaN(m.Y) {
			t.Fatalf("NaN position leaked into the layout: %+v", m)
		}
	}
}
