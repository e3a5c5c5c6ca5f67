package transition

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/force"
	"github.com/matzehuels/tractstory/pkg/observability"
)

type recorder struct {
	mu    sync.Mutex
	calls []chart.Step
	fail  map[chart.Step]bool
}

func (r *recorder) Render(s chart.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	if r.fail[s] {
		return errors.New("render failed")
	}
	return nil
}

func (r *recorder) take() []chart.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	return out
}

type settler struct{ maxTicks int }

func (s *settler) Settle(_ context.Context, maxTicks int) (force.Stats, error) {
	s.maxTicks = maxTicks
	return force.Stats{Ticks: 7, Converged: true}, nil
}

func quiet() Option { return WithLogger(log.New(io.Discard)) }

// expected builds range(a+sign, b+sign, sign).
func expected(a, b int) []chart.Step {
	sign := 1
	if b < a {
		sign = -1
	}
	var out []chart.Step
	for i := a + sign; i != b+sign; i += sign {
		out = append(out, chart.Step(i))
	}
	return out
}

func TestPath(t *testing.T) {
	tests := []struct {
		name     string
		from, to chart.Step
		want     []chart.Step
	}{
		{"forward skip", chart.TotalPop, chart.Scatter, []chart.Step{chart.Histogram, chart.NWPop, chart.BlackPop, chart.Scatter}},
		{"backward skip", chart.Scatter, chart.TotalPop, []chart.Step{chart.BlackPop, chart.NWPop, chart.Histogram, chart.TotalPop}},
		{"single", chart.Trend, chart.TotalPop, []chart.Step{chart.TotalPop}},
		{"from initial", chart.Initial, chart.Histogram, []chart.Step{chart.Trend, chart.TotalPop, chart.Histogram}},
		{"same", chart.Poverty, chart.Poverty, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Path(tt.from, tt.to)); diff != "" {
				t.Errorf("Path(%s, %s) (-want +got):\n%s", tt.from, tt.to, diff)
			}
		})
	}
}

func TestScrollReplaysEveryPair(t *testing.T) {
	for a := 0; a < chart.NumSteps; a++ {
		for b := 0; b < chart.NumSteps; b++ {
			if a == b {
				continue
			}
			rec := &recorder{}
			c := New(rec, nil, quiet())
			if _, err := c.Scroll(context.Background(), a, 0); err != nil {
				t.Fatal(err)
			}
			rec.take()

			got, err := c.Scroll(context.Background(), b, 0)
			if err != nil {
				t.Fatal(err)
			}
			want := expected(a, b)
			if diff := cmp.Diff(want, rec.take()); diff != "" {
				t.Errorf("%d -> %d renders (-want +got):\n%s", a, b, diff)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%d -> %d returned path (-want +got):\n%s", a, b, diff)
			}

			// the way back is not the reverse of the way there
			c.Scroll(context.Background(), a, 0)
			back := rec.take()
			if len(back) != len(want) || back[len(back)-1] != chart.Step(a) {
				t.Errorf("%d -> %d -> %d replayed %v", a, b, a, back)
			}
			if len(want) > 1 && cmp.Equal(back, reverse(want)) {
				t.Errorf("%d -> %d: return path %v should not mirror %v", a, b, back, want)
			}
		}
	}
}

func reverse(s []chart.Step) []chart.Step {
	out := make([]chart.Step, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

func TestScrollSameIndexIsNoop(t *testing.T) {
	rec := &recorder{}
	c := New(rec, nil, quiet())
	c.Scroll(context.Background(), 3, 0)
	rec.take()
	got, err := c.Scroll(context.Background(), 3, 0.9)
	if err != nil || got != nil {
		t.Errorf("Scroll = %v, %v", got, err)
	}
	if calls := rec.take(); len(calls) != 0 {
		t.Errorf("renders = %v, want none", calls)
	}
}

func TestFirstScrollStartsFromTrend(t *testing.T) {
	rec := &recorder{}
	c := New(rec, nil, quiet())
	if c.Current() != chart.Initial {
		t.Fatalf("Current() = %s", c.Current())
	}
	c.Scroll(context.Background(), 0, 0)
	if diff := cmp.Diff([]chart.Step{chart.Trend}, rec.take()); diff != "" {
		t.Errorf("first scroll (-want +got):\n%s", diff)
	}
}

func TestScrollClamps(t *testing.T) {
	tests := []struct {
		index int
		want  chart.Step
	}{
		{-5, chart.Trend},
		{8, chart.Poverty2},
		{100, chart.Poverty2},
	}
	for _, tt := range tests {
		rec := &recorder{}
		c := New(rec, nil, quiet())
		c.Scroll(context.Background(), 4, 0)
		rec.take()
		if _, err := c.Scroll(context.Background(), tt.index, 0); err != nil {
			t.Fatal(err)
		}
		if c.Current() != tt.want {
			t.Errorf("Scroll(%d): Current() = %s, want %s", tt.index, c.Current(), tt.want)
		}
		calls := rec.take()
		if len(calls) == 0 || calls[len(calls)-1] != tt.want {
			t.Errorf("Scroll(%d) rendered %v", tt.index, calls)
		}
	}
}

func TestScrollContinuesPastFailures(t *testing.T) {
	rec := &recorder{fail: map[chart.Step]bool{chart.Histogram: true}}
	c := New(rec, nil, quiet())
	path, err := c.Scroll(context.Background(), 4, 0)
	if err == nil {
		t.Fatal("expected error from failing step")
	}
	if len(path) != 5 || len(rec.take()) != 5 {
		t.Errorf("path = %v, want every step rendered", path)
	}
	if c.Current() != chart.BlackPop {
		t.Errorf("Current() = %s", c.Current())
	}
}

func TestScrollRetriesFailedTarget(t *testing.T) {
	rec := &recorder{fail: map[chart.Step]bool{chart.Histogram: true}}
	c := New(rec, nil, quiet())
	ctx := context.Background()

	if _, err := c.Scroll(ctx, 2, 0); err == nil {
		t.Fatal("expected error from failing target")
	}
	rec.take()

	rec.mu.Lock()
	delete(rec.fail, chart.Histogram)
	rec.mu.Unlock()

	path, err := c.Scroll(ctx, 2, 0)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if diff := cmp.Diff([]chart.Step{chart.Histogram}, path); diff != "" {
		t.Errorf("retry path mismatch (-want +got):\n%s", diff)
	}
	if calls := rec.take(); len(calls) != 1 {
		t.Errorf("retry rendered %v", calls)
	}

	// Once the target rendered, scrolling to it again is a no-op.
	if path, _ := c.Scroll(ctx, 2, 0); path != nil || len(rec.take()) != 0 {
		t.Errorf("scroll after recovery rendered %v", path)
	}
}

func TestScrollDoesNotRetryPassedFailures(t *testing.T) {
	rec := &recorder{fail: map[chart.Step]bool{chart.Histogram: true}}
	c := New(rec, nil, quiet())
	ctx := context.Background()

	if _, err := c.Scroll(ctx, 4, 0); err == nil {
		t.Fatal("expected error from failing step")
	}
	rec.take()
	if path, err := c.Scroll(ctx, 4, 0); path != nil || err != nil {
		t.Errorf("second scroll = %v, %v; want no-op", path, err)
	}
}

func TestProgressHook(t *testing.T) {
	type hit struct {
		step     chart.Step
		progress float64
	}
	var hits []hit
	c := New(&recorder{}, nil, quiet(), WithProgress(func(s chart.Step, p float64) {
		hits = append(hits, hit{s, p})
	}))
	ctx := context.Background()
	c.Scroll(ctx, 2, 0.5)
	c.Scroll(ctx, 2, 0.71)
	c.Scroll(ctx, 3, 0.9)
	c.Scroll(ctx, 2, 0.8)
	want := []hit{{chart.Histogram, 0.71}, {chart.Histogram, 0.8}}
	if diff := cmp.Diff(want, hits, cmp.AllowUnexported(hit{})); diff != "" {
		t.Errorf("progress hook (-want +got):\n%s", diff)
	}
}

type transitionHooks struct {
	observability.NoopTransitionHooks
	mu    sync.Mutex
	moves [][3]int
}

func (h *transitionHooks) OnTransition(_ context.Context, from, to, dispatched int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.moves = append(h.moves, [3]int{from, to, dispatched})
}

func TestScrollReportsTransitions(t *testing.T) {
	hooks := &transitionHooks{}
	observability.SetTransitionHooks(hooks)
	t.Cleanup(observability.Reset)

	c := New(&recorder{}, nil, quiet())
	c.Scroll(context.Background(), 3, 0)
	c.Scroll(context.Background(), 3, 0)
	c.Scroll(context.Background(), 1, 0)
	want := [][3]int{{-1, 3, 4}, {3, 1, 2}}
	if diff := cmp.Diff(want, hooks.moves); diff != "" {
		t.Errorf("transitions (-want +got):\n%s", diff)
	}
}

func TestSettle(t *testing.T) {
	s := &settler{}
	c := New(&recorder{}, s, quiet())
	st, err := c.Settle(context.Background(), 0)
	if err != nil || !st.Converged {
		t.Fatalf("Settle = %+v, %v", st, err)
	}
	if s.maxTicks != force.DefaultMaxTicks {
		t.Errorf("maxTicks = %d, want default", s.maxTicks)
	}
	if _, err := New(&recorder{}, nil).Settle(context.Background(), 10); err != nil {
		t.Errorf("nil settler: %v", err)
	}
}

func TestConcurrentScrolls(t *testing.T) {
	rec := &recorder{}
	c := New(rec, nil, quiet())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Scroll(context.Background(), i%chart.NumSteps, 0)
		}(i)
	}
	wg.Wait()
	// replay always walks one step at a time
	calls := rec.take()
	for i := 1; i < len(calls); i++ {
		if d := calls[i] - calls[i-1]; d != 1 && d != -1 && d != 0 {
			t.Fatalf("non-adjacent renders %s then %s", calls[i-1], calls[i])
		}
	}
}
