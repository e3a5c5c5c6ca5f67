package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/tractstory/pkg/observability"
)

const metricsNamespace = "tractstory"

// Metrics exports pipeline, transition and cache events as Prometheus
// metrics. It implements the observability hook interfaces; Install
// registers it globally.
type Metrics struct {
	registry *prometheus.Registry

	transitions       *prometheus.CounterVec
	dispatched        prometheus.Counter
	transitionSeconds prometheus.Histogram
	renderFailures    *prometheus.CounterVec

	layoutTicks   *prometheus.HistogramVec
	layoutSeconds *prometheus.HistogramVec

	loads       *prometheus.CounterVec
	loadSeconds prometheus.Histogram

	renders       *prometheus.CounterVec
	renderSeconds prometheus.Histogram

	cacheOps *prometheus.CounterVec

	fetches      *prometheus.CounterVec
	fetchSeconds *prometheus.HistogramVec

	viewers   prometheus.Gauge
	scrolls   prometheus.Counter
	coalesced prometheus.Counter
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transitions_total",
			Help:      "Scroll activations by direction.",
		}, []string{"direction"}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "renderers_dispatched_total",
			Help:      "Chart state renderers run along transition paths.",
		}),
		transitionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transition_duration_seconds",
			Help:      "Time to replay a transition path.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		renderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "render_failures_total",
			Help:      "Chart state renderers that failed or panicked.",
		}, []string{"step"}),
		layoutTicks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "layout_ticks",
			Help:      "Simulation ticks run before the layout settled.",
			Buckets:   []float64{10, 50, 100, 200, 300, 400, 600, 1000},
		}, []string{"step"}),
		layoutSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "layout_duration_seconds",
			Help:      "Time spent settling the layout.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset loads by status.",
		}, []string{"status"}),
		loadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time to fetch and parse the dataset.",
			Buckets:   prometheus.DefBuckets,
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frame_renders_total",
			Help:      "Frame renders by status.",
		}, []string{"status"}),
		renderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "frame_render_duration_seconds",
			Help:      "Time to render a frame in every requested format.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_operations_total",
			Help:      "Cache operations by key type and result.",
		}, []string{"type", "op"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_fetches_total",
			Help:      "HTTP table fetches by host and status.",
		}, []string{"host", "status"}),
		fetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_fetch_duration_seconds",
			Help:      "Time to fetch one table over HTTP.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "viewers",
			Help:      "Connected scroll channels.",
		}),
		scrolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scroll_messages_total",
			Help:      "Scroll messages received from viewers.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scroll_messages_coalesced_total",
			Help:      "Scroll messages superseded before they were applied.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions, m.dispatched, m.transitionSeconds, m.renderFailures,
		m.layoutTicks, m.layoutSeconds,
		m.loads, m.loadSeconds,
		m.renders, m.renderSeconds,
		m.cacheOps,
		m.fetches, m.fetchSeconds,
		m.viewers, m.scrolls, m.coalesced,
	)
	return m
}

// Install registers m as every global observability hook.
func (m *Metrics) Install() {
	observability.SetPipelineHooks(m)
	observability.SetTransitionHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) OnTransition(_ context.Context, from, to, dispatched int, duration time.Duration) {
	dir := "forward"
	if to < from {
		dir = "backward"
	}
	m.transitions.WithLabelValues(dir).Inc()
	m.dispatched.Add(float64(dispatched))
	m.transitionSeconds.Observe(duration.Seconds())
}

func (m *Metrics) OnRenderFailed(_ context.Context, step string, _ error) {
	m.renderFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) OnLoadStart(context.Context, string) {}

func (m *Metrics) OnLoadComplete(_ context.Context, _ string, _ int, duration time.Duration, err error) {
	m.loads.WithLabelValues(status(err)).Inc()
	m.loadSeconds.Observe(duration.Seconds())
}

func (m *Metrics) OnLayoutStart(context.Context, string, int) {}

func (m *Metrics) OnLayoutComplete(_ context.Context, step string, ticks int, duration time.Duration) {
	m.layoutTicks.WithLabelValues(step).Observe(float64(ticks))
	m.layoutSeconds.WithLabelValues(step).Observe(duration.Seconds())
}

func (m *Metrics) OnRenderStart(context.Context, []string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, _ []string, duration time.Duration, err error) {
	m.renders.WithLabelValues(status(err)).Inc()
	m.renderSeconds.Observe(duration.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, _ int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, statusCode int, duration time.Duration) {
	m.fetches.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	m.fetchSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.fetches.WithLabelValues(host, "error").Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

var (
	_ observability.PipelineHooks   = (*Metrics)(nil)
	_ observability.TransitionHooks = (*Metrics)(nil)
	_ observability.CacheHooks      = (*Metrics)(nil)
	_ observability.HTTPHooks       = (*Metrics)(nil)
)
