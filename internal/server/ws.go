package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/dataset"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/pipeline"
	"github.com/matzehuels/tractstory/pkg/session"
)

// scrollMsg is what the page sends whenever the active section changes.
type scrollMsg struct {
	Index    int     `json:"index"`
	Progress float64 `json:"progress"`
}

// Message types sent to the page.
const (
	msgSession = "session"
	msgFrame   = "frame"
	msgTween   = "tween"
	msgError   = "error"
)

type serverMsg struct {
	Type      string       `json:"type"`
	Session   string       `json:"session,omitempty"`
	Step      chart.Step   `json:"step"`
	Path      []chart.Step `json:"path,omitempty"`
	Ticks     int          `json:"ticks,omitempty"`
	Converged bool         `json:"converged,omitempty"`
	SVG       string       `json:"svg,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// latest holds the most recent unapplied scroll message. Older pending
// messages are overwritten.
type latest struct {
	mu      sync.Mutex
	msg     scrollMsg
	has     bool
	dropped int
	ready   chan struct{}
}

func newLatest() *latest {
	return &latest{ready: make(chan struct{}, 1)}
}

func (l *latest) put(m scrollMsg) {
	l.mu.Lock()
	if l.has {
		l.dropped++
	}
	l.msg, l.has = m, true
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// take returns the pending message and how many it superseded.
func (l *latest) take() (scrollMsg, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok, dropped := l.msg, l.has, l.dropped
	l.has, l.dropped = false, 0
	return m, dropped, ok
}

// viewer is one scroll channel: its own story and session.
type viewer struct {
	srv     *Server
	conn    *websocket.Conn
	story   *pipeline.Story
	sess    *session.Session
	pending *latest
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v, err := s.newViewer(ctx, conn, ds, r.URL.Query().Get("session"))
	if err != nil {
		s.logger.Error("viewer setup failed", "error", err)
		_ = writeMsg(conn, serverMsg{Type: msgError, Step: chart.Initial, Error: tserrors.UserMessage(err)})
		return
	}
	if s.metrics != nil {
		s.metrics.viewers.Inc()
		defer s.metrics.viewers.Dec()
	}
	s.logger.Debug("viewer connected", "session", v.sess.ID, "step", v.sess.Step)

	done := make(chan struct{})
	go func() {
		defer close(done)
		v.run(ctx)
	}()
	v.read()
	cancel()
	<-done
	s.logger.Debug("viewer disconnected", "session", v.sess.ID, "scrolls", v.sess.Scrolls)
}

// newViewer resumes the session named by id, or starts a new one, and
// sends the session handshake. A resumed viewer is replayed to its last
// step before any message is read.
func (s *Server) newViewer(ctx context.Context, conn *websocket.Conn, ds *dataset.Dataset, id string) (*viewer, error) {
	var sess *session.Session
	if id != "" && tserrors.ValidateSessionID(id) == nil {
		got, err := s.sessions.Get(ctx, id)
		if err != nil {
			s.logger.Warn("session lookup failed", "session", id, "error", err)
		}
		sess = got
	}
	if sess == nil {
		sess = session.New(ds.Hash, s.ttl)
	}
	sess.Dataset = ds.Hash

	story, err := s.runner.NewStory(ds, s.opts)
	if err != nil {
		return nil, err
	}
	v := &viewer{srv: s, conn: conn, story: story, sess: sess, pending: newLatest()}

	if err := writeMsg(conn, serverMsg{Type: msgSession, Session: sess.ID, Step: chart.Step(sess.Step)}); err != nil {
		return nil, err
	}
	if sess.Step >= 0 {
		v.apply(ctx, scrollMsg{Index: sess.Step, Progress: sess.Progress})
	} else if err := s.sessions.Set(ctx, sess); err != nil {
		s.logger.Warn("session save failed", "session", sess.ID, "error", err)
	}
	return v, nil
}

// read queues scroll messages until the connection closes. Malformed
// messages are ignored.
func (v *viewer) read() {
	for {
		_, data, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.srv.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		var m scrollMsg
		if err := json.Unmarshal(data, &m); err != nil {
			v.srv.logger.Debug("ignoring malformed scroll message", "error", err)
			continue
		}
		if v.srv.metrics != nil {
			v.srv.metrics.scrolls.Inc()
		}
		v.pending.put(m)
	}
}

// run applies the latest pending scroll position once per coalescing
// window until ctx is done.
func (v *viewer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.pending.ready:
		}
		if v.srv.coalesce > 0 {
			t := time.NewTimer(v.srv.coalesce)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		m, dropped, ok := v.pending.take()
		if !ok {
			continue
		}
		if dropped > 0 && v.srv.metrics != nil {
			v.srv.metrics.coalesced.Add(float64(dropped))
		}
		v.apply(ctx, m)
	}
}

// apply scrolls the story, waits for the layout and sends the blended
// frames leading into the settled one, then the settled frame.
func (v *viewer) apply(ctx context.Context, m scrollMsg) {
	logger := v.srv.logger
	before := v.story.Snapshot()
	path, err := v.story.Scroll(ctx, m.Index, m.Progress)
	if err != nil {
		logger.Warn("transition had failures", "session", v.sess.ID, "index", m.Index, "error", err)
	}
	st, err := v.story.Settle(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logger.Warn("layout did not settle", "session", v.sess.ID, "error", err)
	}

	step := v.story.Step()
	svg, err := v.story.Render(ctx, pipeline.FormatSVG)
	if err != nil {
		_ = writeMsg(v.conn, serverMsg{Type: msgError, Step: step, Error: tserrors.UserMessage(err)})
		return
	}

	tweens, err := v.story.Tween(ctx, before, v.srv.tween)
	if err != nil {
		logger.Debug("skipping blended frames", "session", v.sess.ID, "error", err)
	}
	for _, f := range tweens {
		if err := writeMsg(v.conn, serverMsg{Type: msgTween, Step: step, SVG: string(f)}); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}
	}

	v.sess.Touch(int(step), m.Progress, v.srv.ttl)
	if err := v.srv.sessions.Set(ctx, v.sess); err != nil {
		logger.Warn("session save failed", "session", v.sess.ID, "error", err)
	}

	if err := writeMsg(v.conn, serverMsg{
		Type:      msgFrame,
		Step:      step,
		Path:      path,
		Ticks:     st.Ticks,
		Converged: st.Converged,
		SVG:       string(svg),
	}); err != nil {
		logger.Debug("websocket write failed", "error", err)
	}
}

func writeMsg(conn *websocket.Conn, m serverMsg) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(m)
}
