package core

import "time"

// =============================================================================
// Invocation Events (Real-time visibility into supervised reviewer runs)
// =============================================================================

// EventType defines the type of event emitted while a reviewer runs.
type EventType string

const (
	// EventStarted indicates a reviewer subprocess has been spawned.
	EventStarted EventType = "started"

	// EventProgress indicates the reviewer's output stream advanced
	// (new progress events classified by the activity probe).
	EventProgress EventType = "progress"

	// EventHeartbeat is a periodic liveness summary for a running reviewer.
	EventHeartbeat EventType = "heartbeat"

	// EventStalled indicates no liveness signal inside the stall window;
	// the process is about to be terminated.
	EventStalled EventType = "stalled"

	// EventTimeout indicates the run was killed on a wall or stall limit.
	EventTimeout EventType = "timeout"

	// EventFallback indicates control moved to a fallback reviewer.
	EventFallback EventType = "fallback"

	// EventRateLimited indicates the reviewer's output looked rate limited.
	EventRateLimited EventType = "rate_limited"

	// EventCompleted indicates the run finished and output was extracted.
	EventCompleted EventType = "completed"

	// EventFailed indicates the run ended with a non-recoverable error.
	EventFailed EventType = "failed"
)

// InvocationEvent represents a real-time event from a supervised reviewer
// run. Events surface what the subprocess is doing before the final text
// is extracted; the monitor server relays them to any connected watchers.
type InvocationEvent struct {
	// Type is the kind of event (started, heartbeat, completed, etc.)
	Type EventType `json:"event_kind"`

	// Reviewer is the configured name of the reviewer being run.
	Reviewer string `json:"reviewer"`

	// RunID identifies the individual supervised invocation.
	RunID string `json:"run_id,omitempty"`

	// Cycle is the 1-based review cycle, 0 for creation/one-shot runs.
	Cycle int `json:"cycle,omitempty"`

	// Timestamp when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Message is a human-readable description of the event
	Message string `json:"message"`

	// Data contains optional structured data specific to the event type.
	// For heartbeat: {"elapsed": "1m30s", "idle": "4s", ...}
	// For timeout: {"reason": "stall", "limit": "600s"}
	Data map[string]any `json:"data,omitempty"`
}

// NewInvocationEvent creates a new event with the current timestamp.
func NewInvocationEvent(eventType EventType, reviewer, message string) InvocationEvent {
	return InvocationEvent{
		Type:      eventType,
		Reviewer:  reviewer,
		Timestamp: time.Now(),
		Message:   message,
	}
}

// WithRun tags the event with a run identifier.
func (e InvocationEvent) WithRun(runID string) InvocationEvent {
	e.RunID = runID
	return e
}

// WithCycle tags the event with a review cycle.
func (e InvocationEvent) WithCycle(cycle int) InvocationEvent {
	e.Cycle = cycle
	return e
}

// WithData adds structured data to the event.
func (e InvocationEvent) WithData(data map[string]any) InvocationEvent {
	e.Data = data
	return e
}

// EventHandler is a callback function that receives invocation events.
// Handlers must be fast and must not block; they are called inline from
// the supervisor's poll loop.
type EventHandler func(event InvocationEvent)
