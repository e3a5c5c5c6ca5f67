package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tractstory/pkg/cache"
	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both the CLI and serve mode use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache, loader and logger - it
// doesn't store pipeline results. Multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	Loader *dataset.Loader
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	loader := dataset.NewLoader(c, logger)
	loader.Keyer = keyer
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		Loader: loader,
	}
}

// Execute loads the dataset and renders every requested step.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	loadStart := time.Now()
	ds, err := r.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	loadTime := time.Since(loadStart)

	result, err := r.RenderSteps(ctx, ds, opts)
	if err != nil {
		return nil, err
	}
	result.Stats.LoadTime = loadTime
	return result, nil
}

// Load fetches and parses the dataset. Refresh bypasses the raw-body cache.
func (r *Runner) Load(ctx context.Context, opts Options) (*dataset.Dataset, error) {
	if err := opts.Source.Validate(); err != nil {
		return nil, err
	}
	if !opts.Refresh {
		return r.Loader.Load(ctx, opts.Source)
	}
	l := r.freshLoader()
	return l.Load(ctx, opts.Source)
}

func (r *Runner) freshLoader() *dataset.Loader {
	l := dataset.NewLoader(cache.NewNullCache(), r.Logger)
	l.Keyer = r.Keyer
	l.Client = r.Loader.Client
	l.S3 = r.Loader.S3
	l.S3Config = r.Loader.S3Config
	l.Timeout = r.Loader.Timeout
	l.Strict = r.Loader.Strict
	l.Tolerance = r.Loader.Tolerance
	l.Backoff = r.Loader.Backoff
	return l
}

// NewStory builds a story with the runner's logger.
func (r *Runner) NewStory(ds *dataset.Dataset, opts Options) (*Story, error) {
	r.applyLogger(&opts)
	return NewStory(ds, opts)
}

// RenderSteps replays the narrative from the first step through the last
// requested one, letting the layout settle after each, and renders every
// requested step. Frames are cached per dataset, step and format; when every
// frame is cached the replay is skipped.
func (r *Runner) RenderSteps(ctx context.Context, ds *dataset.Dataset, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}

	steps := opts.SortedSteps()
	result := &Result{Dataset: ds, Stats: Stats{Tracts: len(ds.Tracts)}}

	if !opts.Refresh {
		if frames, ok := r.cachedFrames(ctx, ds.Hash, steps, opts); ok {
			result.Frames = frames
			result.CacheInfo.RenderHit = true
			r.Logger.Debug("frames from cache", "steps", len(steps))
			return result, nil
		}
	}

	story, err := NewStory(ds, opts)
	if err != nil {
		return nil, err
	}
	want := make(map[chart.Step]bool, len(steps))
	for _, s := range steps {
		want[s] = true
	}

	for s := chart.Trend; s <= steps[len(steps)-1]; s++ {
		layoutStart := time.Now()
		st, err := story.Goto(ctx, s)
		result.Stats.LayoutTime += time.Since(layoutStart)
		if err != nil {
			return nil, fmt.Errorf("layout %s: %w", s, err)
		}
		if !want[s] {
			continue
		}

		renderStart := time.Now()
		artifacts, err := RenderFormats(ctx, story.Scene.Snapshot(), story.frameInfo(), opts)
		result.Stats.RenderTime += time.Since(renderStart)
		if err != nil {
			return nil, err
		}
		for format, data := range artifacts {
			key := r.Keyer.FrameKey(ds.Hash, opts.FrameKeyOpts(s, format))
			if err := r.Cache.Set(ctx, key, data, cache.TTLFrame); err == nil {
				observability.Cache().OnCacheSet(ctx, "frame", len(data))
			}
		}
		result.Frames = append(result.Frames, Frame{Step: s, Artifacts: artifacts, Layout: st})

		r.Logger.Info("rendered step",
			"step", s,
			"ticks", st.Ticks,
			"converged", st.Converged,
			"formats", opts.Formats)
	}
	return result, nil
}

// cachedFrames returns every requested frame if all of them are cached.
func (r *Runner) cachedFrames(ctx context.Context, hash string, steps []chart.Step, opts Options) ([]Frame, bool) {
	if hash == "" {
		return nil, false
	}
	frames := make([]Frame, 0, len(steps))
	for _, s := range steps {
		f := Frame{Step: s, Artifacts: make(map[string][]byte, len(opts.Formats))}
		for _, format := range opts.Formats {
			data, hit, err := r.Cache.Get(ctx, r.Keyer.FrameKey(hash, opts.FrameKeyOpts(s, format)))
			if err != nil || !hit {
				observability.Cache().OnCacheMiss(ctx, "frame")
				return nil, false
			}
			f.Artifacts[format] = data
		}
		frames = append(frames, f)
	}
	observability.Cache().OnCacheHit(ctx, "frame")
	return frames, true
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
