package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
)

const (
	// sseHeartbeatFreq is how often keep-alive comments are written to
	// idle streams so proxies do not reap the connection.
	sseHeartbeatFreq = 30 * time.Second

	// sseClientBuffer is the per-client event buffer. Clients that fall
	// behind by more than this start dropping events.
	sseClientBuffer = 100
)

// sseMessage is one framed server-sent event.
type sseMessage struct {
	event string
	data  []byte
}

// sseClient is one connected event stream.
type sseClient struct {
	id       string
	reviewer string // when set, only events for this reviewer are delivered
	events   chan sseMessage
	done     chan struct{}
	closed   bool
}

// SSEHandler streams invocation events to connected HTTP clients as
// server-sent events. Events are pushed in with Broadcast; delivery
// never blocks the caller.
type SSEHandler struct {
	mu            sync.RWMutex
	clients       map[*sseClient]struct{}
	heartbeatFreq time.Duration
}

// NewSSEHandler creates a handler with no connected clients.
func NewSSEHandler() *SSEHandler {
	return &SSEHandler{
		clients:       make(map[*sseClient]struct{}),
		heartbeatFreq: sseHeartbeatFreq,
	}
}

// ServeHTTP registers the connection and streams events until the
// client disconnects or the handler shuts down. A `reviewer` query
// parameter narrows the stream to events from that reviewer.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &sseClient{
		id:       strconv.FormatInt(time.Now().UnixNano(), 10),
		reviewer: r.URL.Query().Get("reviewer"),
		events:   make(chan sseMessage, sseClientBuffer),
		done:     make(chan struct{}),
	}
	h.addClient(c)
	defer h.removeClient(c)

	h.sendEvent(w, flusher, "connected", fmt.Sprintf(`{"client_id":%q}`, c.id))

	heartbeat := time.NewTicker(h.heartbeatFreq)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			h.sendComment(w, flusher, "heartbeat")
		case msg := <-c.events:
			h.sendEvent(w, flusher, msg.event, string(msg.data))
		}
	}
}

// Broadcast delivers an event to every connected client. Clients whose
// buffers are full are skipped so a slow watcher cannot stall the run.
func (h *SSEHandler) Broadcast(ev core.InvocationEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	msg := sseMessage{event: string(ev.Type), data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.reviewer != "" && c.reviewer != ev.Reviewer {
			continue
		}
		select {
		case c.events <- msg:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *SSEHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client.
func (h *SSEHandler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.closed {
			c.closed = true
			close(c.done)
		}
	}
	h.clients = make(map[*sseClient]struct{})
}

func (h *SSEHandler) addClient(c *sseClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *SSEHandler) removeClient(c *sseClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

func (h *SSEHandler) sendComment(w http.ResponseWriter, flusher http.Flusher, comment string) {
	fmt.Fprintf(w, ": %s\n\n", comment)
	flusher.Flush()
}
