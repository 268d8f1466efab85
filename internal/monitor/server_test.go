package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/logging"
)

// startTestServer binds a monitor server on an ephemeral port and
// arranges for shutdown when the test ends.
func startTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", logging.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, http.StatusOK)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestStatusIdle(t *testing.T) {
	t.Parallel()
	s := startTestServer(t)

	var st Status
	getJSON(t, "http://"+s.Addr()+"/api/status", &st)

	if st.State != "idle" {
		t.Errorf("State = %q, want %q", st.State, "idle")
	}
	if st.Events != 0 {
		t.Errorf("Events = %d, want 0", st.Events)
	}
	if st.StartedAt != nil {
		t.Errorf("StartedAt = %v, want nil", st.StartedAt)
	}
}

func TestStatusTracksEvents(t *testing.T) {
	t.Parallel()
	s := startTestServer(t)

	s.Handle(core.NewInvocationEvent(core.EventStarted, "Claude CLI", "spawned").WithRun("run-1"))
	s.Handle(core.NewInvocationEvent(core.EventHeartbeat, "Claude CLI", "still working").
		WithRun("run-1").
		WithData(map[string]any{"elapsed": "10s"}))
	s.Handle(core.NewInvocationEvent(core.EventCompleted, "Claude CLI", "done").
		WithRun("run-1").
		WithCycle(2))

	var st Status
	getJSON(t, "http://"+s.Addr()+"/api/status", &st)

	if st.State != "completed" {
		t.Errorf("State = %q, want %q", st.State, "completed")
	}
	if st.Reviewer != "Claude CLI" {
		t.Errorf("Reviewer = %q, want %q", st.Reviewer, "Claude CLI")
	}
	if st.RunID != "run-1" {
		t.Errorf("RunID = %q, want %q", st.RunID, "run-1")
	}
	if st.Cycle != 2 {
		t.Errorf("Cycle = %d, want 2", st.Cycle)
	}
	if st.Events != 3 {
		t.Errorf("Events = %d, want 3", st.Events)
	}
	if got := st.Heartbeat["elapsed"]; got != "10s" {
		t.Errorf("Heartbeat[elapsed] = %v, want %q", got, "10s")
	}
	if st.StartedAt == nil {
		t.Error("StartedAt = nil, want set after started event")
	}
}

func TestStatusNewRunResetsHeartbeat(t *testing.T) {
	t.Parallel()
	s := startTestServer(t)

	s.Handle(core.NewInvocationEvent(core.EventStarted, "Claude CLI", "spawned").WithRun("run-1"))
	s.Handle(core.NewInvocationEvent(core.EventHeartbeat, "Claude CLI", "working").
		WithData(map[string]any{"elapsed": "30s"}))
	s.Handle(core.NewInvocationEvent(core.EventStarted, "Codex CLI", "spawned").WithRun("run-2"))

	var st Status
	getJSON(t, "http://"+s.Addr()+"/api/status", &st)

	if st.State != "running" {
		t.Errorf("State = %q, want %q", st.State, "running")
	}
	if st.Reviewer != "Codex CLI" {
		t.Errorf("Reviewer = %q, want %q", st.Reviewer, "Codex CLI")
	}
	if st.RunID != "run-2" {
		t.Errorf("RunID = %q, want %q", st.RunID, "run-2")
	}
	if st.Heartbeat != nil {
		t.Errorf("Heartbeat = %v, want nil after new run", st.Heartbeat)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := startTestServer(t)

	var body map[string]string
	getJSON(t, "http://"+s.Addr()+"/health", &body)
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want %q", body["status"], "healthy")
	}
}

func TestCORSHeaders(t *testing.T) {
	t.Parallel()
	s := startTestServer(t)

	req, err := http.NewRequest(http.MethodGet, "http://"+s.Addr()+"/api/status", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
}

func TestStartBadAddr(t *testing.T) {
	t.Parallel()
	s := NewServer("127.0.0.1:999999", logging.NewNop())
	if err := s.Start(); err == nil {
		_ = s.Shutdown(context.Background())
		t.Fatal("Start with invalid port succeeded, want error")
	}
}
