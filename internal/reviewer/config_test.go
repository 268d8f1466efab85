package reviewer

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
)

func TestParseProbeKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    ProbeKind
		wantErr bool
	}{
		{"", ProbeNone, false},
		{"none", ProbeNone, false},
		{"codex_json", ProbeCodexJSON, false},
		{"claude_stream_json", ProbeClaudeStreamJSON, false},
		{"jsonl", "", true},
		{"CODEX_JSON", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProbeKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseProbeKind(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseProbeKind(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProbeKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Claude CLI", "claude_cli"},
		{"Codex CLI", "codex_cli"},
		{"Cursor / GPT 5.2 Codex XHigh", "cursor_gpt_5_2_codex_xhigh"},
		{"--weird--", "weird"},
		{"", ""},
		{"already_ok", "already_ok"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{Key: "x", Name: "X", Command: "x --run", Probe: ProbeNone}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing key", func(c *Config) { c.Key = " " }},
		{"missing name", func(c *Config) { c.Name = "" }},
		{"missing command", func(c *Config) { c.Command = "" }},
		{"bad probe", func(c *Config) { c.Probe = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegistryBuiltins(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	wantKeys := []string{"claude", "codex", "cursor-opus", "cursor-gpt"}
	if got := reg.Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Errorf("Keys() = %v, want %v", got, wantKeys)
	}

	claude, err := reg.Lookup("claude")
	if err != nil {
		t.Fatalf("Lookup(claude): %v", err)
	}
	if claude.Name != "Claude CLI" {
		t.Errorf("claude name = %q", claude.Name)
	}
	if claude.Probe != ProbeClaudeStreamJSON {
		t.Errorf("claude probe = %q", claude.Probe)
	}
	if claude.Fallback != "codex" || claude.RateLimitFallback != "codex" {
		t.Errorf("claude fallbacks = %q/%q", claude.Fallback, claude.RateLimitFallback)
	}

	codex, _ := reg.Lookup("codex")
	if codex.Probe != ProbeCodexJSON {
		t.Errorf("codex probe = %q", codex.Probe)
	}
	if codex.Fallback != "cursor-gpt" {
		t.Errorf("codex fallback = %q", codex.Fallback)
	}

	// The cursor pair point at each other for rate limits and have no
	// generic fallback.
	opus, _ := reg.Lookup("cursor-opus")
	if opus.Fallback != "" || opus.RateLimitFallback != "cursor-gpt" {
		t.Errorf("cursor-opus fallbacks = %q/%q", opus.Fallback, opus.RateLimitFallback)
	}
	gpt, _ := reg.Lookup("cursor-gpt")
	if gpt.RateLimitFallback != "cursor-opus" {
		t.Errorf("cursor-gpt rate limit fallback = %q", gpt.RateLimitFallback)
	}
}

func TestRegistryOverrideReplaces(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(Config{
		Key:     "codex",
		Name:    "Codex Nightly",
		Command: "codex-nightly exec --json",
		Probe:   ProbeCodexJSON,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if got := reg.Keys(); !reflect.DeepEqual(got, []string{"claude", "codex", "cursor-opus", "cursor-gpt"}) {
		t.Errorf("override changed key order: %v", got)
	}
	codex, _ := reg.Lookup("codex")
	if codex.Name != "Codex Nightly" {
		t.Errorf("override not applied, name = %q", codex.Name)
	}
}

func TestRegistryOverrideAppends(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(Config{
		Key:     "my-agent",
		Name:    "My Agent",
		Command: "my-agent --headless",
		Probe:   ProbeNone,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	keys := reg.Keys()
	if keys[len(keys)-1] != "my-agent" {
		t.Errorf("new key not appended last: %v", keys)
	}
}

func TestRegistryRejectsUnknownFallback(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(Config{
		Key:      "broken",
		Name:     "Broken",
		Command:  "broken --run",
		Probe:    ProbeNone,
		Fallback: "does-not-exist",
	})
	if err == nil {
		t.Fatal("expected error for dangling fallback reference")
	}
	if !strings.Contains(err.Error(), "does-not-exist") {
		t.Errorf("error does not name the bad reference: %v", err)
	}
}

func TestRegistryRejectsInvalidOverride(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(Config{Key: "nocmd", Name: "No Command", Probe: ProbeNone})
	if err == nil {
		t.Fatal("expected error for override without command")
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	t.Parallel()

	reg, _ := NewRegistry()
	_, err := reg.Lookup("gemini")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if core.GetCode(err) != core.CodeReviewerUnknown {
		t.Errorf("code = %q, want %q", core.GetCode(err), core.CodeReviewerUnknown)
	}
}

func TestRegistryLookupSuggests(t *testing.T) {
	t.Parallel()

	reg, _ := NewRegistry()
	_, err := reg.Lookup("claud")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "claude") {
		t.Errorf("expected a suggestion mentioning claude, got: %v", err)
	}
}

func TestLoadPresets(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reviewers.yaml")
	content := `reviewers:
  - key: my-agent
    name: "My Agent"
    command: "my-agent --headless"
    probe: none
  - key: codex
    name: "Codex Pinned"
    command: "codex@1.2 exec --json"
    probe: codex_json
    fallback: claude
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	configs, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("len = %d, want 2", len(configs))
	}
	if configs[0].Key != "my-agent" || configs[0].Probe != ProbeNone {
		t.Errorf("first entry = %+v", configs[0])
	}
	if configs[1].Fallback != "claude" {
		t.Errorf("second entry fallback = %q", configs[1].Fallback)
	}

	reg, err := NewRegistry(configs...)
	if err != nil {
		t.Fatalf("NewRegistry with presets: %v", err)
	}
	codex, _ := reg.Lookup("codex")
	if codex.Name != "Codex Pinned" {
		t.Errorf("preset override not applied: %q", codex.Name)
	}
}

func TestLoadPresetsErrors(t *testing.T) {
	t.Parallel()

	if _, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("reviewers: [not: valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPresets(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
