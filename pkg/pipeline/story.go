package pipeline

import (
	"context"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/force"
	"github.com/matzehuels/tractstory/pkg/scale"
	"github.com/matzehuels/tractstory/pkg/transition"
)

// Story is one reader's view of a dataset: a scene, its layout simulation
// and the controller that replays steps as the reader scrolls. A Story is
// safe for concurrent use.
type Story struct {
	Dataset    *dataset.Dataset
	Scene      *chart.Scene
	Controller *transition.Controller

	opts Options
}

// NewStory builds the pre-Trend scene for ds.
func NewStory(ds *dataset.Dataset, opts Options) (*Story, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}
	sim := force.New(len(ds.Tracts), force.WithSeed(opts.Seed))
	scene, err := chart.NewScene(ds, scale.Build(ds, scale.DefaultFrame()),
		chart.WithLogger(opts.Logger),
		chart.WithSimulation(sim))
	if err != nil {
		return nil, err
	}
	return &Story{
		Dataset:    ds,
		Scene:      scene,
		Controller: transition.New(scene, scene, transition.WithLogger(opts.Logger)),
		opts:       opts,
	}, nil
}

// Scroll applies a scroll position without waiting for the layout.
func (s *Story) Scroll(ctx context.Context, index int, progress float64) ([]chart.Step, error) {
	return s.Controller.Scroll(ctx, index, progress)
}

// Goto scrolls to step and lets the layout settle. Render failures along
// the path are returned after settling; the scene is still at step.
func (s *Story) Goto(ctx context.Context, step chart.Step) (force.Stats, error) {
	_, renderErr := s.Controller.Scroll(ctx, int(step), 0)
	st, err := s.Settle(ctx)
	if err != nil {
		return st, err
	}
	return st, renderErr
}

// Settle runs the layout for at most the configured number of ticks.
func (s *Story) Settle(ctx context.Context) (force.Stats, error) {
	return s.Controller.Settle(ctx, s.opts.SettleTicks)
}

// Step returns the current step, or chart.Initial.
func (s *Story) Step() chart.Step {
	return s.Controller.Current()
}

// Tooltips returns one tooltip per mark.
func (s *Story) Tooltips() []chart.Tooltip {
	tips := make([]chart.Tooltip, len(s.Dataset.Tracts))
	for i, t := range s.Dataset.Tracts {
		tips[i] = chart.NewTooltip(t)
	}
	return tips
}

// Snapshot freezes the current scene.
func (s *Story) Snapshot() chart.Snapshot {
	return s.Scene.Snapshot()
}

// Tween renders frames SVG frames blended from the snapshot from toward the
// current scene, excluding both ends. It returns nothing when the scene has
// not changed step since from was taken.
func (s *Story) Tween(ctx context.Context, from chart.Snapshot, frames int) ([][]byte, error) {
	to := s.Scene.Snapshot()
	if frames <= 0 || from.Step == to.Step {
		return nil, nil
	}
	info := s.frameInfo()
	out := make([][]byte, 0, frames)
	for i := 1; i <= frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap := chart.Interpolate(from, to, float64(i)/float64(frames+1))
		svg, err := RenderSnapshot(ctx, snap, info, FormatSVG, s.opts)
		if err != nil {
			return nil, err
		}
		out = append(out, svg)
	}
	return out, nil
}

// Render draws the current scene in one format.
func (s *Story) Render(ctx context.Context, format string) ([]byte, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	return RenderSnapshot(ctx, s.Scene.Snapshot(), s.frameInfo(), format, s.opts)
}

func (s *Story) frameInfo() FrameInfo {
	info := FrameInfo{Dataset: s.Dataset.Hash, Seed: s.opts.Seed}
	if s.opts.Tooltips {
		info.Tooltips = s.Tooltips()
	}
	return info
}
