package reviewer

import (
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strings"
)

type probeEventKind int

const (
	probeProgress probeEventKind = iota + 1
	probeFinal
)

// Probe classifies one decoded JSON event from an agent's stdout
// stream as progress (the agent is alive and working) or final (an
// answer or terminal status was produced). The classify method is
// unexported so the probe set is closed: a ProbeKind maps to exactly
// one implementation, chosen once when the tracker is built.
type Probe interface {
	Kind() ProbeKind
	classify(event map[string]any) (kind probeEventKind, label string, ok bool)
}

func probeFor(kind ProbeKind) Probe {
	switch kind {
	case ProbeCodexJSON:
		return codexProbe{}
	case ProbeClaudeStreamJSON:
		return claudeProbe{}
	}
	return nil
}

// codexProbe reads Codex CLI JSONL: thread/turn/item lifecycle events
// with the answer carried by item.completed agent messages.
type codexProbe struct{}

func (codexProbe) Kind() ProbeKind { return ProbeCodexJSON }

func (codexProbe) classify(event map[string]any) (probeEventKind, string, bool) {
	topType := nestedString(event, "type")
	if topType == "" {
		return 0, "", false
	}
	switch topType {
	case "thread.started", "turn.started", "item.started":
		return probeProgress, compactLabel(topType), true
	case "turn.completed", "thread.completed":
		return probeFinal, compactLabel(topType), true
	case "item.completed":
		itemType := nestedString(event, "item", "type")
		if itemType == "" {
			return probeProgress, "item.completed", true
		}
		kind := probeEventKind(probeProgress)
		if itemType == "agent_message" || itemType == "assistant_message" {
			kind = probeFinal
		}
		return kind, "item." + compactLabel(itemType), true
	case "error", "turn.failed":
		return probeFinal, compactLabel(topType), true
	}
	return probeProgress, compactLabel(topType), true
}

// claudeProbe reads Claude CLI stream-json: system and stream_event
// lines while working, assistant/result lines for the answer.
type claudeProbe struct{}

func (claudeProbe) Kind() ProbeKind { return ProbeClaudeStreamJSON }

func (claudeProbe) classify(event map[string]any) (probeEventKind, string, bool) {
	topType := nestedString(event, "type")
	if topType == "" {
		return 0, "", false
	}
	switch topType {
	case "result", "assistant":
		return probeFinal, compactLabel(topType), true
	case "system":
		label := "system"
		if subtype := nestedString(event, "subtype"); subtype != "" {
			label = "system." + subtype
		}
		return probeProgress, compactLabel(label), true
	case "stream_event":
		eventType := nestedString(event, "event", "type")
		if eventType == "" {
			return probeProgress, "stream_event", true
		}
		kind := probeEventKind(probeProgress)
		if eventType == "message_stop" {
			kind = probeFinal
		}
		return kind, compactLabel("stream." + eventType), true
	}
	return probeProgress, compactLabel(topType), true
}

// Snapshot is a point-in-time copy of a tracker's counters, carried
// into heartbeats and liveness decisions.
type Snapshot struct {
	ProgressCount int
	LastProgress  string
	FinalCount    int
	LastFinal     string
}

// Tracker incrementally consumes an agent's stdout log and keeps
// running progress/final counters. It remembers the file offset and
// any trailing partial line between updates, so each poll only parses
// bytes appended since the last one.
type Tracker struct {
	probe  Probe
	offset int64
	tail   string

	progressCount int
	lastProgress  string
	finalCount    int
	lastFinal     string
}

// NewTracker builds a tracker for the given stream format. For
// ProbeNone the tracker is inert: updates never read the file and the
// counters stay zero.
func NewTracker(kind ProbeKind) *Tracker {
	return &Tracker{probe: probeFor(kind)}
}

// Active reports whether updates actually parse the stream.
func (t *Tracker) Active() bool { return t.probe != nil }

// Update reads newly appended stdout content and classifies any
// complete JSON lines in it. Read errors are treated as "nothing new";
// the log may not exist yet right after spawn.
func (t *Tracker) Update(stdoutPath string) Snapshot {
	if t.probe == nil {
		return t.Snapshot()
	}
	chunk := t.readNew(stdoutPath)
	if chunk != "" {
		t.consume(chunk)
	}
	return t.Snapshot()
}

// Snapshot returns the current counters without reading anything.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		ProgressCount: t.progressCount,
		LastProgress:  t.lastProgress,
		FinalCount:    t.finalCount,
		LastFinal:     t.lastFinal,
	}
}

func (t *Tracker) readNew(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return ""
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	t.offset += int64(len(data))
	return string(data)
}

func (t *Tracker) consume(chunk string) {
	text := t.tail + chunk
	for {
		idx := strings.IndexAny(text, "\r\n")
		if idx < 0 {
			t.tail = text
			return
		}
		t.classifyLine(text[:idx])
		text = text[idx+1:]
	}
}

func (t *Tracker) classifyLine(raw string) {
	line := strings.TrimSpace(raw)
	if !strings.HasPrefix(line, "{") {
		return
	}
	var event map[string]any
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return
	}
	kind, label, ok := t.probe.classify(event)
	if !ok {
		return
	}
	switch kind {
	case probeProgress:
		t.progressCount++
		t.lastProgress = label
	case probeFinal:
		t.finalCount++
		t.lastFinal = label
	}
}

func nestedString(data map[string]any, path ...string) string {
	s, _ := lookupString(data, path...)
	return s
}

var labelSpaces = regexp.MustCompile(`\s+`)

const maxLabelLen = 80

// compactLabel squeezes whitespace runs and truncates so event labels
// stay one short token in heartbeat lines.
func compactLabel(label string) string {
	text := labelSpaces.ReplaceAllString(strings.TrimSpace(label), " ")
	if runes := []rune(text); len(runes) > maxLabelLen {
		text = string(runes[:maxLabelLen])
	}
	return text
}
