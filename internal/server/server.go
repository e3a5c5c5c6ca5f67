// Package server implements serve mode: the scroll page, per-viewer scroll
// channels over websockets, cached frame downloads, and Prometheus metrics.
//
// Routes:
//
//	GET /                      scroll page
//	GET /frames/{step}.{fmt}   one settled frame (svg, json, png, pdf)
//	GET /ws                    scroll channel
//	GET /healthz               liveness and dataset identity
//	GET /metrics               Prometheus exposition
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/dataset"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/pipeline"
	"github.com/matzehuels/tractstory/pkg/session"
)

// DefaultCoalesce is how long a viewer's scroll burst is collected before
// the latest position is applied.
const DefaultCoalesce = 50 * time.Millisecond

// DefaultTween is how many blended frames are sent ahead of each settled
// frame.
const DefaultTween = 4

const (
	writeWait       = 10 * time.Second
	maxMessageSize  = 4 << 10
	cleanupInterval = 10 * time.Minute
)

// Server serves one dataset to any number of viewers.
type Server struct {
	runner   *pipeline.Runner
	sessions session.Store
	metrics  *Metrics
	logger   *log.Logger
	opts     pipeline.Options
	coalesce time.Duration
	tween    int
	ttl      time.Duration
	upgrader websocket.Upgrader

	ds atomic.Pointer[dataset.Dataset]
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCoalesce sets the scroll coalescing window. Zero applies every
// message as soon as the previous one is done.
func WithCoalesce(d time.Duration) Option {
	return func(s *Server) { s.coalesce = d }
}

// WithTween sets how many blended frames lead into each settled frame.
// Zero sends settled frames only.
func WithTween(n int) Option {
	return func(s *Server) { s.tween = n }
}

// WithSessionTTL sets how long an idle viewer session is kept.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.ttl = d }
}

// WithPipelineOptions sets the layout and render options used for every
// story and frame.
func WithPipelineOptions(o pipeline.Options) Option {
	return func(s *Server) { s.opts = o }
}

// New creates a server for ds. A nil store keeps sessions in memory.
func New(runner *pipeline.Runner, ds *dataset.Dataset, store session.Store, opts ...Option) (*Server, error) {
	if runner == nil || ds == nil {
		return nil, tserrors.New(tserrors.ErrCodeInvalidInput, "server needs a runner and a dataset")
	}
	if store == nil {
		store = session.NewMemoryStore()
	}
	s := &Server{
		runner:   runner,
		sessions: store,
		logger:   runner.Logger,
		coalesce: DefaultCoalesce,
		tween:    DefaultTween,
		ttl:      session.DefaultTTL,
		opts:     pipeline.Options{Tooltips: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.coalesce < 0 {
		return nil, tserrors.New(tserrors.ErrCodeInvalidInput, "coalesce window must not be negative")
	}
	if s.tween < 0 {
		return nil, tserrors.New(tserrors.ErrCodeInvalidInput, "tween frame count must not be negative")
	}
	if s.ttl <= 0 {
		s.ttl = session.DefaultTTL
	}
	if s.opts.Logger == nil {
		s.opts.Logger = s.logger
	}
	if err := s.opts.ValidateForRender(); err != nil {
		return nil, err
	}
	s.upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 64 << 10}
	s.ds.Store(ds)
	return s, nil
}

// Dataset returns the dataset new viewers see.
func (s *Server) Dataset() *dataset.Dataset {
	return s.ds.Load()
}

// SetDataset swaps the dataset. Connected viewers keep the story they
// started with; new connections and frame requests use ds.
func (s *Server) SetDataset(ds *dataset.Dataset) {
	if ds == nil {
		return
	}
	s.ds.Store(ds)
	s.logger.Info("dataset updated", "tracts", len(ds.Tracts), "hash", short(ds.Hash))
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/frames/{step}.{format}", s.handleFrame)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Expired sessions are swept periodically while serving.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweepSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

func (s *Server) sweepSessions(ctx context.Context) {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.sessions.Cleanup(ctx); err != nil {
				s.logger.Warn("session cleanup failed", "error", err)
			}
		}
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if err := pipeline.ValidateFormat(format); err != nil {
		writeError(w, err)
		return
	}
	step, err := chart.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		writeError(w, err)
		return
	}

	opts := s.opts
	opts.Steps = []chart.Step{step}
	opts.Formats = []string{format}
	res, err := s.runner.RenderSteps(r.Context(), s.Dataset(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	cacheStatus := "miss"
	if res.CacheInfo.RenderHit {
		cacheStatus = "hit"
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Cache", cacheStatus)
	_, _ = w.Write(res.Frames[0].Artifacts[format])
}

var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatJSON: "application/json",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ds := s.Dataset()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"dataset": ds.Hash,
		"tracts":  len(ds.Tracts),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := tserrors.GetCode(err)
	if code == "" {
		code = tserrors.ErrCodeInternal
	}
	writeJSON(w, httpStatus(code), map[string]string{
		"error": tserrors.UserMessage(err),
		"code":  string(code),
	})
}

func httpStatus(code tserrors.Code) int {
	switch code {
	case tserrors.ErrCodeInvalidInput, tserrors.ErrCodeInvalidFormat, tserrors.ErrCodeInvalidStep:
		return http.StatusBadRequest
	case tserrors.ErrCodeNotFound, tserrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case tserrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case tserrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case tserrors.ErrCodeDatasetUnavailable, tserrors.ErrCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
