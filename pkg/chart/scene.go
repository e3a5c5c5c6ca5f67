package chart

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tractstory/pkg/dataset"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/force"
	"github.com/matzehuels/tractstory/pkg/observability"
	"github.com/matzehuels/tractstory/pkg/scale"
)

// Mark is the visual state of one tract.
type Mark struct {
	Index   int     `json:"index"`
	ID      string  `json:"id"`
	Area    string  `json:"area"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	R       float64 `json:"r"`
	Fill    string  `json:"fill"`
	Opacity float64 `json:"opacity"`
}

// Scene is the state of one visualization: the dataset, its scales, the
// layout simulation, one mark per tract and the chart furniture. Renderers
// own mark styling; the simulation owns mark positions.
type Scene struct {
	mu sync.Mutex

	ds     *dataset.Dataset
	reg    *scale.Registry
	sim    *force.Simulation
	logger *log.Logger

	marks    []Mark
	elements []*Element
	active   Step
}

// SceneOption configures a Scene.
type SceneOption func(*Scene)

// WithLogger sets the scene's logger.
func WithLogger(l *log.Logger) SceneOption {
	return func(s *Scene) { s.logger = l }
}

// WithSimulation supplies the layout simulation. It must have one node per tract.
func WithSimulation(sim *force.Simulation) SceneOption {
	return func(s *Scene) { s.sim = sim }
}

// NewScene builds the pre-Trend scene: every mark collapsed at the canvas
// center with radius 1 and the trend chart drawn.
func NewScene(ds *dataset.Dataset, reg *scale.Registry, opts ...SceneOption) (*Scene, error) {
	if ds == nil || len(ds.Tracts) == 0 {
		return nil, tserrors.New(tserrors.ErrCodeInvalidDataset, "scene needs at least one tract")
	}
	s := &Scene{ds: ds, reg: reg, logger: log.Default(), active: Initial}
	for _, opt := range opts {
		opt(s)
	}
	if s.sim == nil {
		s.sim = force.New(len(ds.Tracts))
	}
	if n := s.sim.Len(); n != len(ds.Tracts) {
		return nil, tserrors.New(tserrors.ErrCodeInvalidInput, "simulation has %d nodes for %d tracts", n, len(ds.Tracts))
	}

	s.marks = make([]Mark, len(ds.Tracts))
	for i, t := range ds.Tracts {
		s.marks[i] = Mark{Index: i, ID: t.ID, Area: t.Area, R: 1, Fill: initialFill, Opacity: 1}
	}
	s.sim.Place(func(int) (float64, float64) { return initialX, initialY })
	s.elements = buildFurniture(ds, reg)
	return s, nil
}

// Dataset returns the scene's dataset.
func (s *Scene) Dataset() *dataset.Dataset { return s.ds }

// Registry returns the scene's scales.
func (s *Scene) Registry() *scale.Registry { return s.reg }

// Simulation returns the layout simulation.
func (s *Scene) Simulation() *force.Simulation { return s.sim }

// Active returns the last rendered step, or Initial.
func (s *Scene) Active() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Marks returns a copy of every mark with its current layout position.
func (s *Scene) Marks() []Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marksLocked()
}

func (s *Scene) marksLocked() []Mark {
	pos := s.sim.Positions()
	out := make([]Mark, len(s.marks))
	for i, m := range s.marks {
		m.X, m.Y = pos[i].X, pos[i].Y
		out[i] = m
	}
	return out
}

// Elements returns a copy of the chart furniture.
func (s *Scene) Elements() []Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elementsLocked()
}

func (s *Scene) elementsLocked() []Element {
	out := make([]Element, len(s.elements))
	for i, e := range s.elements {
		out[i] = e.clone()
	}
	return out
}

// Element returns a copy of the element with the given id.
func (s *Scene) Element(id string) (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.elements {
		if e.ID == id {
			return e.clone(), true
		}
	}
	return Element{}, false
}

// Settle runs the layout simulation until it comes to rest or maxTicks
// elapse. Steps that stop the simulation return immediately.
func (s *Scene) Settle(ctx context.Context, maxTicks int) (force.Stats, error) {
	step := s.Active().String()
	start := time.Now()
	observability.Pipeline().OnLayoutStart(ctx, step, len(s.marks))
	st, err := s.sim.Settle(ctx, maxTicks)
	observability.Pipeline().OnLayoutComplete(ctx, step, st.Ticks, time.Since(start))
	if errors.Is(err, context.DeadlineExceeded) {
		return st, tserrors.Wrap(tserrors.ErrCodeTimeout, err, "settle %s", step)
	}
	if err != nil {
		return st, err
	}
	s.logger.Debug("layout settled", "step", step, "ticks", st.Ticks, "alpha", st.Alpha, "converged", st.Converged)
	return st, nil
}

// Tooltip returns the hover card of mark i.
func (s *Scene) Tooltip(i int) (Tooltip, bool) {
	if i < 0 || i >= len(s.ds.Tracts) {
		return Tooltip{}, false
	}
	return NewTooltip(s.ds.Tracts[i]), true
}

// Snapshot captures the current marks and furniture.
func (s *Scene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Step:     s.active,
		ViewW:    s.reg.Frame.ViewW,
		ViewH:    s.reg.Frame.ViewH,
		Marks:    s.marksLocked(),
		Elements: s.elementsLocked(),
	}
}

// each applies fn to every element of the given class.
func (s *Scene) each(class string, fn func(*Element)) {
	for _, e := range s.elements {
		if e.Class == class {
			fn(e)
		}
	}
}

// show sets the opacity of every element of class.
func (s *Scene) show(class string, opacity float64) {
	s.each(class, func(e *Element) { e.Opacity = opacity })
}

func (s *Scene) showID(id string, opacity float64) {
	for _, e := range s.elements {
		if e.ID == id {
			e.Opacity = opacity
		}
	}
}

// style sets radius and fill of every mark from its tract. Marks without a
// radius are hidden.
func (s *Scene) style(radius func(dataset.Tract) float64, fill func(dataset.Tract) string) {
	for i := range s.marks {
		t := s.ds.Tracts[i]
		r := radius(t)
		s.marks[i].R = r
		s.marks[i].Fill = fill(t)
		s.marks[i].Opacity = 1
		if math.IsNaN(r) {
			s.marks[i].R = 0
			s.marks[i].Opacity = 0
		}
	}
}
