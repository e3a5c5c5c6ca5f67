// Package force is a velocity-Verlet particle simulation for laying out marks.
//
// A [Simulation] holds one [Node] per mark and a named set of forces. Each
// tick decays the energy (alpha) toward zero, lets every force adjust node
// velocities, then moves nodes by their damped velocity. The simulation runs
// until alpha drops below the minimum or it is stopped.
//
// Nothing in this package starts goroutines or timers: callers drive ticks
// with [Simulation.Tick] or await equilibrium with [Simulation.Settle], which
// makes layouts deterministic for a given seed.
package force

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
)

// Defaults match the conventional force-layout tuning.
const (
	DefaultAlphaMin      = 0.001
	DefaultVelocityDecay = 0.4
	DefaultMaxTicks      = 1000
)

// DefaultAlphaDecay reaches DefaultAlphaMin from 1 in 300 ticks.
var DefaultAlphaDecay = 1 - math.Pow(DefaultAlphaMin, 1.0/300)

// Node is the simulation state of one mark.
type Node struct {
	X, Y   float64
	VX, VY float64
}

// Point is a position on the canvas.
type Point struct {
	X, Y float64
}

// Force adjusts node velocities once per tick.
type Force interface {
	Apply(nodes []Node, alpha float64, jiggle func() float64)
}

// Stats summarizes one Settle call.
type Stats struct {
	Ticks     int     `json:"ticks"`
	Alpha     float64 `json:"alpha"`
	MaxDelta  float64 `json:"max_delta"` // largest node displacement in the last tick
	Converged bool    `json:"converged"`
}

// Simulation is safe for concurrent use; every method takes the lock.
type Simulation struct {
	mu sync.Mutex

	nodes  []Node
	forces map[string]Force
	order  []string

	alpha         float64
	alphaMin      float64
	alphaDecay    float64
	alphaTarget   float64
	velocityDecay float64
	running       bool

	rnd *rand.Rand
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithSeed seeds the jiggle source used to separate coincident nodes.
func WithSeed(seed uint64) Option {
	return func(s *Simulation) { s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithVelocityDecay sets the fraction of velocity lost per tick.
func WithVelocityDecay(d float64) Option {
	return func(s *Simulation) { s.velocityDecay = d }
}

// WithAlphaMin sets the energy below which the simulation stops itself.
func WithAlphaMin(m float64) Option {
	return func(s *Simulation) { s.alphaMin = m }
}

// New returns a stopped simulation of n nodes at the origin.
func New(n int, opts ...Option) *Simulation {
	s := &Simulation{
		nodes:         make([]Node, n),
		forces:        make(map[string]Force),
		alpha:         1,
		alphaMin:      DefaultAlphaMin,
		alphaDecay:    DefaultAlphaDecay,
		velocityDecay: DefaultVelocityDecay,
	}
	WithSeed(1)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of nodes.
func (s *Simulation) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// SetForce installs f under name. Replacing a force keeps its position in
// the application order.
func (s *Simulation) SetForce(name string, f Force) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forces[name]; !ok {
		s.order = append(s.order, name)
	}
	s.forces[name] = f
}

// RemoveForce uninstalls the named force.
func (s *Simulation) RemoveForce(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forces[name]; !ok {
		return
	}
	delete(s.forces, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// ClearForces uninstalls every force.
func (s *Simulation) ClearForces() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forces = make(map[string]Force)
	s.order = nil
}

// Force returns the named force.
func (s *Simulation) Force(name string) (Force, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forces[name]
	return f, ok
}

// ForceNames returns installed force names in application order.
func (s *Simulation) ForceNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Restart sets the energy to alpha and resumes ticking.
func (s *Simulation) Restart(alpha float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alpha = alpha
	s.running = true
}

// SetAlphaDecay sets how quickly energy decays per tick.
func (s *Simulation) SetAlphaDecay(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alphaDecay = d
}

// Alpha returns the current energy.
func (s *Simulation) Alpha() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alpha
}

// Stop freezes every node. Ticks are ignored until the next Restart.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Running reports whether ticks currently move nodes.
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick advances one step and reports whether the simulation is still running.
func (s *Simulation) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.tick()
	return running
}

func (s *Simulation) tick() (maxDelta float64, running bool) {
	if !s.running {
		return 0, false
	}
	s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay
	for _, name := range s.order {
		s.forces[name].Apply(s.nodes, s.alpha, s.jiggle)
	}
	keep := 1 - s.velocityDecay
	for i := range s.nodes {
		n := &s.nodes[i]
		n.VX *= keep
		n.VY *= keep
		n.X += n.VX
		n.Y += n.VY
		maxDelta = math.Max(maxDelta, math.Hypot(n.VX, n.VY))
	}
	if s.alpha < s.alphaMin {
		s.running = false
	}
	return maxDelta, s.running
}

// Settle ticks until the energy decays below the minimum, the simulation is
// stopped, maxTicks is reached, or ctx is done. A stopped simulation returns
// immediately with zero ticks.
func (s *Simulation) Settle(ctx context.Context, maxTicks int) (Stats, error) {
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}
	var st Stats
	for st.Ticks < maxTicks {
		if err := ctx.Err(); err != nil {
			st.Alpha = s.Alpha()
			return st, err
		}
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			break
		}
		delta, running := s.tick()
		s.mu.Unlock()
		st.Ticks++
		st.MaxDelta = delta
		if !running {
			break
		}
	}
	s.mu.Lock()
	st.Alpha = s.alpha
	st.Converged = s.alpha < s.alphaMin
	s.mu.Unlock()
	return st, nil
}

// Place moves every node to the position returned by pos and zeroes its
// velocity. A position with a NaN coordinate leaves the node where it is.
func (s *Simulation) Place(pos func(i int) (x, y float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.nodes {
		x, y := pos(i)
		if math.IsNaN(x) || math.IsNaN(y) {
			x, y = s.nodes[i].X, s.nodes[i].Y
		}
		s.nodes[i] = Node{X: x, Y: y}
	}
}

// Positions returns a copy of every node position.
func (s *Simulation) Positions() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Point, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = Point{n.X, n.Y}
	}
	return out
}

// Node returns the state of node i.
func (s *Simulation) Node(i int) Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[i]
}

func (s *Simulation) jiggle() float64 {
	return (s.rnd.Float64() - 0.5) * 1e-6
}
