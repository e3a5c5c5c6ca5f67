package chart

import (
	"context"
	"fmt"

	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/observability"
)

// Renderer applies one chart state to a scene. It runs with the scene locked
// after cleanup has hidden every element the step does not use.
type Renderer func(*Scene)

// renderers is the dispatch table from step to chart state.
var renderers = [NumSteps]Renderer{
	Trend:     renderTrend,
	TotalPop:  renderTotalPop,
	Histogram: renderHistogram,
	NWPop:     renderNWPop,
	BlackPop:  renderBlackPop,
	Scatter:   renderScatter,
	Poverty:   renderPoverty,
	Poverty2:  renderPovertyByArea,
}

// Render makes step the authoritative chart state. Elements not tagged with
// step are hidden first. A renderer that panics leaves the scene in the
// neutral state and yields a RENDER_FAILED error.
func (s *Scene) Render(step Step) (err error) {
	if !step.Valid() {
		return tserrors.New(tserrors.ErrCodeInvalidStep, "no renderer for %s", step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.neutralLocked()
			err = tserrors.New(tserrors.ErrCodeRenderFailed, "render %s: %v", step, r)
			observability.Transition().OnRenderFailed(context.Background(), step.String(), err)
			s.logger.Error("renderer failed", "step", step, "err", fmt.Sprint(r))
		}
	}()

	s.cleanupLocked(step)
	renderers[step](s)
	s.active = step
	s.logger.Debug("rendered step", "step", step)
	return nil
}

// cleanupLocked hides every element not tagged with step. Area labels are
// also parked off-canvas, matching where they fly in from.
func (s *Scene) cleanupLocked(step Step) {
	for _, e := range s.elements {
		if e.Tags.Has(step) {
			continue
		}
		e.Opacity = 0
		if e.Class == "cat-rect" || e.Class == "lab-text" {
			e.X = 1800
		}
	}
}

// neutralLocked stops the layout, hides all furniture and greys every mark.
func (s *Scene) neutralLocked() {
	s.sim.Stop()
	for _, e := range s.elements {
		e.Opacity = 0
	}
	for i := range s.marks {
		s.marks[i].R = 1
		s.marks[i].Fill = initialFill
		s.marks[i].Opacity = 1
	}
	s.active = Initial
}
