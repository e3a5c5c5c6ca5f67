// Package pipeline provides the load → layout → render pipeline for tractstory.
//
// The CLI and serve mode share this package so the narrative is replayed the
// same way everywhere: a Story owns one scene, its layout simulation and the
// transition controller, and Runner adds dataset loading and frame caching.
//
// # Usage
//
// Render every step to SVG:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{Source: dataset.DefaultSource(), Formats: []string{"svg"}}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Frames[0].Artifacts["svg"]
//
// Drive a story step by step:
//
//	story, err := pipeline.NewStory(ds, opts)
//	story.Goto(ctx, chart.Scatter)
//	frame, err := story.Render(ctx, "json")
package pipeline

import (
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tractstory/pkg/cache"
	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/dataset"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/force"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultSettleTicks bounds the layout ticks run after each step.
	DefaultSettleTicks = 600

	// DefaultSeed seeds the layout jiggle.
	DefaultSeed = uint64(1)

	// DefaultScale is the PNG scale factor.
	DefaultScale = 2.0
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the visualization pipeline.
type Options struct {
	// Load options
	Source  dataset.Source `json:"source"`
	Refresh bool           `json:"refresh,omitempty"`

	// Layout options
	Steps       []chart.Step `json:"steps,omitempty"`
	SettleTicks int          `json:"settle_ticks,omitempty"`
	Seed        uint64       `json:"seed,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Tooltips bool     `json:"tooltips,omitempty"`
	Scale    float64  `json:"scale,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Dataset is the loaded dataset.
	Dataset *dataset.Dataset

	// Frames holds one entry per requested step, in narrative order.
	Frames []Frame

	// Stats contains timing information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Frame is the rendered output of one step.
type Frame struct {
	Step      chart.Step
	Artifacts map[string][]byte
	Layout    force.Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Tracts     int
	LoadTime   time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return tserrors.New(tserrors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: svg, png, pdf, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSteps checks that every step names a chart state.
func ValidateSteps(steps []chart.Step) error {
	for _, s := range steps {
		if !s.Valid() {
			return tserrors.New(tserrors.ErrCodeInvalidStep, "invalid step %d (must be 0 to %d)", int(s), chart.NumSteps-1)
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks every field and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.Source.Validate(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// SetLayoutDefaults sets default values for the layout replay.
func (o *Options) SetLayoutDefaults() {
	if len(o.Steps) == 0 {
		o.Steps = chart.Steps()
	}
	if o.SettleTicks == 0 {
		o.SettleTicks = DefaultSettleTicks
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForRender validates and sets defaults for layout and rendering.
func (o *Options) ValidateForRender() error {
	o.SetLayoutDefaults()
	o.SetRenderDefaults()
	if err := ValidateSteps(o.Steps); err != nil {
		return err
	}
	if o.SettleTicks < 0 {
		return tserrors.New(tserrors.ErrCodeInvalidInput, "settle ticks must not be negative")
	}
	if o.Scale < 0 {
		return tserrors.New(tserrors.ErrCodeInvalidInput, "scale must be positive")
	}
	return ValidateFormats(o.Formats)
}

// SortedSteps returns the requested steps deduplicated in narrative order.
func (o *Options) SortedSteps() []chart.Step {
	steps := slices.Clone(o.Steps)
	slices.Sort(steps)
	return slices.Compact(steps)
}

// FrameKeyOpts returns cache key options for one rendered frame.
func (o *Options) FrameKeyOpts(step chart.Step, format string) cache.FrameKeyOpts {
	k := cache.FrameKeyOpts{
		Step:        step.String(),
		Format:      format,
		SettleTicks: o.SettleTicks,
		Seed:        o.Seed,
		Tooltips:    o.Tooltips,
	}
	if format == FormatPNG {
		k.Scale = o.Scale
	}
	return k
}
