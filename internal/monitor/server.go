// Package monitor serves a read-only HTTP view of a running review
// session: a JSON status snapshot and a live stream of supervisor
// events. It exists for localhost dashboards watching a long run; it
// controls nothing.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Status is the document served by /api/status.
type Status struct {
	State     string         `json:"state"`
	Reviewer  string         `json:"reviewer,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Cycle     int            `json:"cycle,omitempty"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	Heartbeat map[string]any `json:"heartbeat,omitempty"`
	Events    int            `json:"events"`
	Clients   int            `json:"clients"`
}

// Server is the monitor HTTP server. Feed it invocation events through
// Handle; it maintains the current-run snapshot and relays every event
// to connected SSE watchers.
type Server struct {
	log        *logging.Logger
	sse        *SSEHandler
	httpServer *http.Server
	listener   net.Listener

	mu        sync.Mutex
	state     string
	reviewer  string
	runID     string
	cycle     int
	startedAt time.Time
	updatedAt time.Time
	heartbeat map[string]any
	events    int
}

// NewServer creates a monitor server that will bind addr on Start.
func NewServer(addr string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	s := &Server{
		log:   log,
		sse:   NewSSEHandler(),
		state: "idle",
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}).Handler)
	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/events", s.sse.ServeHTTP)

	// No write timeout: /api/events is a long-lived stream.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handle records an invocation event in the status snapshot and relays
// it to connected watchers. It satisfies core.EventHandler and does not
// block.
func (s *Server) Handle(ev core.InvocationEvent) {
	s.mu.Lock()
	s.events++
	s.updatedAt = ev.Timestamp
	switch ev.Type {
	case core.EventStarted:
		s.state = "running"
		s.reviewer = ev.Reviewer
		s.runID = ev.RunID
		s.startedAt = ev.Timestamp
		s.heartbeat = nil
	case core.EventHeartbeat:
		s.heartbeat = ev.Data
	case core.EventProgress:
		// stream advanced, state unchanged
	default:
		s.state = string(ev.Type)
	}
	if ev.Cycle != 0 {
		s.cycle = ev.Cycle
	}
	s.mu.Unlock()

	s.sse.Broadcast(ev)
}

// Start binds the listener and serves in the background. When the
// configured port is 0 the bound address is available from Addr.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("monitor listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = lis
	s.log.Info("monitor listening", slog.String("addr", lis.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("monitor server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr returns the bound address after Start, or the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Shutdown disconnects the event streams and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.sse.Shutdown()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("monitor shutdown: %w", err)
	}
	s.log.Info("monitor stopped")
	return nil
}

// Serve starts the server, blocks until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown(context.Background())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	st := Status{
		State:     s.state,
		Reviewer:  s.reviewer,
		RunID:     s.runID,
		Cycle:     s.cycle,
		Heartbeat: s.heartbeat,
		Events:    s.events,
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	if !s.updatedAt.IsZero() {
		t := s.updatedAt
		st.UpdatedAt = &t
	}
	s.mu.Unlock()
	st.Clients = s.sse.ClientCount()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
