package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/tractstory/pkg/cache"
	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/dataset"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

var fixtures = dataset.Source{
	Tracts: "../dataset/testdata/tracts.csv",
	Years:  "../dataset/testdata/years.csv",
}

func quiet() *log.Logger { return log.New(io.Discard) }

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"pdf", false},
		{"json", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestValidateSteps(t *testing.T) {
	if err := ValidateSteps(chart.Steps()); err != nil {
		t.Errorf("all steps should pass: %v", err)
	}
	if err := ValidateSteps([]chart.Step{chart.Trend, 8}); !tserrors.Is(err, tserrors.ErrCodeInvalidStep) {
		t.Errorf("err = %v, want INVALID_STEP", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Source: fixtures}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("Valid options should pass: %v", err)
	}

	if diff := cmp.Diff(chart.Steps(), opts.Steps); diff != "" {
		t.Errorf("Steps (-want +got):\n%s", diff)
	}
	if opts.SettleTicks != DefaultSettleTicks {
		t.Errorf("SettleTicks should be %d, got %d", DefaultSettleTicks, opts.SettleTicks)
	}
	if opts.Seed != DefaultSeed {
		t.Errorf("Seed should be %d, got %d", DefaultSeed, opts.Seed)
	}
	if diff := cmp.Diff([]string{FormatSVG}, opts.Formats); diff != "" {
		t.Errorf("Formats (-want +got):\n%s", diff)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discarding logger")
	}
}

func TestOptionsRejects(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"empty source", Options{}},
		{"bad scheme", Options{Source: dataset.Source{Tracts: "ftp://x/t.csv", Years: "y.csv"}}},
		{"bad format", Options{Source: fixtures, Formats: []string{"gif"}}},
		{"bad step", Options{Source: fixtures, Steps: []chart.Step{-1}}},
		{"negative ticks", Options{Source: fixtures, SettleTicks: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOptionsValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{Source: fixtures, Steps: []chart.Step{chart.Scatter}}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("First validation failed: %v", err)
	}
	before := opts.Steps
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("Second validation failed: %v", err)
	}
	if !cmp.Equal(before, opts.Steps) {
		t.Error("Steps changed on second call")
	}
}

func TestSortedSteps(t *testing.T) {
	opts := Options{Steps: []chart.Step{chart.Poverty, chart.Trend, chart.Poverty, chart.Histogram}}
	want := []chart.Step{chart.Trend, chart.Histogram, chart.Poverty}
	if diff := cmp.Diff(want, opts.SortedSteps()); diff != "" {
		t.Errorf("SortedSteps (-want +got):\n%s", diff)
	}
}

func TestFrameKeyOpts(t *testing.T) {
	opts := Options{Seed: 7, SettleTicks: 100, Scale: 3}
	if k := opts.FrameKeyOpts(chart.Scatter, FormatSVG); k.Scale != 0 || k.Step != "scatter" {
		t.Errorf("svg key = %+v", k)
	}
	if k := opts.FrameKeyOpts(chart.Scatter, FormatPNG); k.Scale != 3 {
		t.Errorf("png key should carry the scale: %+v", k)
	}
}

func TestExecute(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, quiet())
	opts := Options{
		Source:      fixtures,
		Steps:       []chart.Step{chart.Scatter, chart.TotalPop},
		Formats:     []string{FormatSVG, FormatJSON},
		SettleTicks: 200,
	}

	result, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result.CacheInfo.RenderHit {
		t.Error("first run should not hit the cache")
	}
	if result.Stats.Tracts != 4 {
		t.Errorf("Tracts = %d, want 4", result.Stats.Tracts)
	}
	if len(result.Frames) != 2 || result.Frames[0].Step != chart.TotalPop || result.Frames[1].Step != chart.Scatter {
		t.Fatalf("frames = %+v", result.Frames)
	}
	for _, f := range result.Frames {
		svg := f.Artifacts[FormatSVG]
		if !bytes.Contains(svg, []byte(`data-step="`+f.Step.String()+`"`)) {
			t.Errorf("%s svg has wrong step", f.Step)
		}
		var doc struct {
			Step    chart.Step `json:"step"`
			Dataset string     `json:"dataset"`
		}
		if err := json.Unmarshal(f.Artifacts[FormatJSON], &doc); err != nil {
			t.Fatalf("%s json: %v", f.Step, err)
		}
		if doc.Step != f.Step || doc.Dataset != result.Dataset.Hash {
			t.Errorf("%s json = %+v", f.Step, doc)
		}
	}

	again, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !again.CacheInfo.RenderHit {
		t.Error("second run should come from the cache")
	}
	for i := range again.Frames {
		if diff := cmp.Diff(result.Frames[i].Artifacts, again.Frames[i].Artifacts); diff != "" {
			t.Errorf("cached %s differs (-want +got):\n%s", again.Frames[i].Step, diff)
		}
	}
}

func TestRenderStepsIsDeterministic(t *testing.T) {
	runner := NewRunner(nil, nil, quiet())
	ds, err := runner.Load(context.Background(), Options{Source: fixtures})
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Steps: []chart.Step{chart.BlackPop}, Formats: []string{FormatJSON}, SettleTicks: 150, Seed: 9}
	a, err := runner.RenderSteps(context.Background(), ds, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := runner.RenderSteps(context.Background(), ds, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Frames[0].Artifacts[FormatJSON], b.Frames[0].Artifacts[FormatJSON]) {
		t.Error("same seed should reproduce the same frame")
	}
}

func TestStory(t *testing.T) {
	runner := NewRunner(nil, nil, quiet())
	ds, err := runner.Load(context.Background(), Options{Source: fixtures})
	if err != nil {
		t.Fatal(err)
	}
	story, err := runner.NewStory(ds, Options{Tooltips: true, SettleTicks: 100})
	if err != nil {
		t.Fatal(err)
	}
	if story.Step() != chart.Initial {
		t.Errorf("Step() = %s", story.Step())
	}

	path, err := story.Scroll(context.Background(), 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 4 {
		t.Errorf("path = %v", path)
	}
	if _, err := story.Goto(context.Background(), chart.Histogram); err != nil {
		t.Fatal(err)
	}
	if story.Step() != chart.Histogram {
		t.Errorf("Step() = %s", story.Step())
	}

	svg, err := story.Render(context.Background(), FormatSVG)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(svg, []byte(`class="tooltip"`)) {
		t.Error("story with tooltips should draw them")
	}
	if _, err := story.Render(context.Background(), "gif"); !tserrors.Is(err, tserrors.ErrCodeInvalidFormat) {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
}

func TestStoryTween(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(nil, nil, quiet())
	ds, err := runner.Load(ctx, Options{Source: fixtures})
	if err != nil {
		t.Fatal(err)
	}
	story, err := runner.NewStory(ds, Options{SettleTicks: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := story.Goto(ctx, chart.TotalPop); err != nil {
		t.Fatal(err)
	}
	before := story.Snapshot()

	if frames, err := story.Tween(ctx, before, 3); err != nil || frames != nil {
		t.Fatalf("tween without a step change = %d frames, %v", len(frames), err)
	}

	if _, err := story.Goto(ctx, chart.Histogram); err != nil {
		t.Fatal(err)
	}
	frames, err := story.Tween(ctx, before, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if !bytes.Contains(f, []byte(`data-step="histogram"`)) {
			t.Errorf("frame %d is not tagged with the target step", i)
		}
	}
	if bytes.Equal(frames[0], frames[2]) {
		t.Error("first and last blended frames should differ")
	}
	settled, err := story.Render(ctx, FormatSVG)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(frames[2], settled) {
		t.Error("blended frames should stop short of the settled frame")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := story.Tween(cancelled, before, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
