package reviewer

import (
	"encoding/json"
	"strings"
)

// ExtractText pulls the user-facing review text out of a raw stdout
// capture, stripping the event telemetry probed streams wrap it in.
// When the stream carries no recognizable answer the raw output is
// returned as-is, so a misbehaving agent still yields something to
// save.
func ExtractText(kind ProbeKind, raw string) string {
	switch kind {
	case ProbeCodexJSON:
		return extractCodexText(raw)
	case ProbeClaudeStreamJSON:
		return extractClaudeText(raw)
	}
	return raw
}

// extractCodexText returns the text of the last completed agent
// message in a Codex JSONL stream.
func extractCodexText(raw string) string {
	final := ""
	found := false
	for _, event := range decodeJSONLines(raw) {
		if nestedString(event, "type") != "item.completed" {
			continue
		}
		itemType := nestedString(event, "item", "type")
		if itemType != "agent_message" && itemType != "assistant_message" {
			continue
		}
		if text, ok := lookupString(event, "item", "text"); ok {
			final = text
			found = true
		}
	}
	if !found {
		return raw
	}
	return final
}

// extractClaudeText returns the final result of a Claude stream-json
// run, preferring the terminal result event over assistant messages.
func extractClaudeText(raw string) string {
	var (
		resultText    string
		haveResult    bool
		assistantText string
		haveAssistant bool
	)
	for _, event := range decodeJSONLines(raw) {
		switch nestedString(event, "type") {
		case "result":
			if text, ok := lookupString(event, "result"); ok {
				resultText = text
				haveResult = true
			}
		case "assistant":
			if text, ok := claudeMessageText(event["message"]); ok {
				assistantText = text
				haveAssistant = true
			}
		}
	}
	if haveResult {
		return resultText
	}
	if haveAssistant {
		return assistantText
	}
	return raw
}

// claudeMessageText concatenates the text blocks of an assistant
// message. Messages with no text blocks (tool use only) report false.
func claudeMessageText(message any) (string, bool) {
	m, ok := message.(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := m["content"].([]any)
	if !ok {
		return "", false
	}
	var parts []string
	for _, block := range content {
		b, ok := block.(map[string]any)
		if !ok || b["type"] != "text" {
			continue
		}
		if text, ok := b["text"].(string); ok {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ""), true
}

// decodeJSONLines parses newline-delimited JSON objects, skipping
// blank, non-JSON, and malformed lines.
func decodeJSONLines(raw string) []map[string]any {
	var events []map[string]any
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events
}

// lookupString walks nested objects and reports whether the leaf is a
// string, distinguishing "present but empty" from "absent".
func lookupString(data map[string]any, path ...string) (string, bool) {
	var cur any = data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[key]; !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}
