package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/okubo-r/seika/internal/archive"
	"github.com/okubo-r/seika/internal/config"
	"github.com/okubo-r/seika/internal/observability"
	"github.com/okubo-r/seika/internal/protocol"
	"github.com/okubo-r/seika/internal/session"
	"github.com/okubo-r/seika/internal/stt"
)

// Orchestrator runs one connected session to its terminal state.
type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator Orchestrator
	transcriber  stt.Transcriber
	songs        archive.Store
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, orchestrator Orchestrator, transcriber stt.Transcriber, songs archive.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		transcriber:  transcriber,
		songs:        songs,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other websites cannot drive an interview
				// if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/ws", s.handleWS)
	r.Post("/v1/transcribe", s.handleTranscribe)
	r.Get("/v1/songs", s.handleListSongs)
	r.Get("/v1/songs/{id}", s.handleGetSong)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

// handleWS is the connection gateway: one websocket connection is one
// session, created here and discarded when the connection goes away.
// Disconnects cancel the orchestrator run, including in-flight job polls.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess := s.sessions.Create()
	s.countSessionEvent("ws_connected")
	s.setActiveSessions()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 64)
	outbound := make(chan any, 64)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.orchestrator.RunConnection(ctx, sess, inbound, outbound)
	}()

	// The writer exits only when outbound is closed, after the run has
	// finished, so queued terminal events are always flushed; cancellation
	// alone never discards them. Write failures keep draining so the run
	// goroutine can never block on a dead connection.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			if ctx.Err() != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				if s.metrics != nil {
					s.metrics.WSWriteErrors.WithLabelValues("write_json").Inc()
				}
				cancel()
				continue
			}
			if t, ok := messageTypeOf(msg); ok && s.metrics != nil {
				s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.SessionInactivityTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.SessionInactivityTimeout))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.SessionInactivityTimeout))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{Type: protocol.TypeError, Message: err.Error()}
			select {
			case outbound <- errEvent:
			default:
				// Writes stay single-threaded; drop if the queue is full.
			}
			continue
		}

		if t, ok := messageTypeOf(parsed); ok && s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	close(outbound)
	<-writerDone

	_, _ = s.sessions.End(sess.ID)
	s.setActiveSessions()
	s.countSessionEvent("ws_disconnected")
}

func (s *Server) countSessionEvent(event string) {
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}

func (s *Server) setActiveSessions() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.StartCamera:
		return m.Type, true
	case protocol.StartInterview:
		return m.Type, true
	case protocol.Answer:
		return m.Type, true
	case protocol.SetupInstruction:
		return m.Type, true
	case protocol.LipSyncReady:
		return m.Type, true
	case protocol.Question:
		return m.Type, true
	case protocol.StatusUpdate:
		return m.Type, true
	case protocol.MusicComplete:
		return m.Type, true
	case protocol.MusicError:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
