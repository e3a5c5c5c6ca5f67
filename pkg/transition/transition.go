// Package transition drives the chart through its narrative steps in
// response to scroll position.
//
// A scroll that jumps several steps replays every intermediate step in the
// direction of travel, so each chart state's cleanup runs against the state
// it was written to follow:
//
//	c := transition.New(scene, scene, transition.WithLogger(logger))
//	c.Scroll(ctx, 5, 0)   // renders trend, total-pop, ..., scatter
//	c.Scroll(ctx, 2, 0.3) // renders black-pop, nw-pop, histogram
//	c.Settle(ctx, 0)      // waits for the layout to come to rest
package transition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/force"
	"github.com/matzehuels/tractstory/pkg/observability"
)

// Dispatcher renders one chart state.
type Dispatcher interface {
	Render(step chart.Step) error
}

// Settler runs the layout until it comes to rest.
type Settler interface {
	Settle(ctx context.Context, maxTicks int) (force.Stats, error)
}

// ProgressFunc observes scroll progress within a step.
type ProgressFunc func(step chart.Step, progress float64)

// Progress hook trigger: the histogram step scrolled past this fraction.
const (
	progressStep      = chart.Histogram
	progressThreshold = 0.7
)

// Controller tracks the active step and replays chart states as the scroll
// position changes. It is safe for concurrent use; calls are serialized.
type Controller struct {
	mu       sync.Mutex
	prev     chart.Step
	stale    bool // the render of prev failed
	d        Dispatcher
	s        Settler
	logger   *log.Logger
	progress ProgressFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithProgress installs the hook fired while the histogram step is scrolled
// past 70%. The default does nothing.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Controller) { c.progress = fn }
}

// New returns a controller in the pre-Trend state. The settler may be nil
// when the caller never waits for the layout.
func New(d Dispatcher, s Settler, opts ...Option) *Controller {
	c := &Controller{
		prev:     chart.Initial,
		d:        d,
		s:        s,
		logger:   log.Default(),
		progress: func(chart.Step, float64) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the steps to render when moving from one step to another,
// in order of travel: from is excluded and to is included. Moving to the
// current step renders nothing.
func Path(from, to chart.Step) []chart.Step {
	if from == to {
		return nil
	}
	sign := chart.Step(1)
	if to < from {
		sign = -1
	}
	out := make([]chart.Step, 0, (to-from)*sign)
	for s := from + sign; s != to+sign; s += sign {
		out = append(out, s)
	}
	return out
}

// Clamp maps an arbitrary scroll index onto a chart step.
func Clamp(index int) (chart.Step, bool) {
	switch {
	case index < 0:
		return chart.Trend, false
	case index >= chart.NumSteps:
		return chart.NumSteps - 1, false
	default:
		return chart.Step(index), true
	}
}

// Current returns the last step scrolled to, or chart.Initial.
func (c *Controller) Current() chart.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prev
}

// Scroll applies a scroll position. Out-of-range indices are clamped to the
// first or last step. Every step between the current one and the target is
// rendered in order; a failing step does not stop the replay, and the
// returned error joins every failure. The target becomes current either way.
// If the target itself failed, the next scroll to it renders it again.
func (c *Controller) Scroll(ctx context.Context, index int, progress float64) ([]chart.Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	to, ok := Clamp(index)
	if !ok {
		c.logger.Warn("scroll index out of range, clamping", "index", index, "step", to)
	}
	if to == progressStep && progress > progressThreshold {
		c.progress(to, progress)
	}

	path := Path(c.prev, to)
	if len(path) == 0 {
		if !c.stale {
			return nil, nil
		}
		path = []chart.Step{to}
	}

	start := time.Now()
	var errs []error
	c.stale = false
	for _, step := range path {
		if err := c.d.Render(step); err != nil {
			c.logger.Warn("step failed", "step", step, "err", err)
			errs = append(errs, err)
			c.stale = step == to
		}
	}
	from := c.prev
	c.prev = to
	observability.Transition().OnTransition(ctx, int(from), int(to), len(path), time.Since(start))
	c.logger.Debug("scrolled", "from", from, "to", to, "rendered", len(path))
	return path, errors.Join(errs...)
}

// Settle waits for the layout started by the last step to come to rest.
// A maxTicks of zero uses force.DefaultMaxTicks. Scrolls issued meanwhile
// are not blocked; they reconfigure the layout at the next tick.
func (c *Controller) Settle(ctx context.Context, maxTicks int) (force.Stats, error) {
	if c.s == nil {
		return force.Stats{}, nil
	}
	if maxTicks <= 0 {
		maxTicks = force.DefaultMaxTicks
	}
	return c.s.Settle(ctx, maxTicks)
}
