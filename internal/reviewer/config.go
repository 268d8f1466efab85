package reviewer

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
)

// ProbeKind selects the stream parser used to read liveness and final
// answers out of an agent's stdout log. Reviewers whose CLIs emit plain
// text use ProbeNone and are watched by output growth and CPU alone.
type ProbeKind string

const (
	ProbeNone             ProbeKind = "none"
	ProbeCodexJSON        ProbeKind = "codex_json"
	ProbeClaudeStreamJSON ProbeKind = "claude_stream_json"
)

// Valid reports whether the kind is one of the supported parsers.
func (k ProbeKind) Valid() bool {
	switch k {
	case ProbeNone, ProbeCodexJSON, ProbeClaudeStreamJSON:
		return true
	}
	return false
}

// ParseProbeKind maps a config string to a ProbeKind. The empty string
// means no probe.
func ParseProbeKind(s string) (ProbeKind, error) {
	if s == "" {
		return ProbeNone, nil
	}
	kind := ProbeKind(s)
	if !kind.Valid() {
		return "", core.ErrValidation(core.CodeInvalidProbe,
			fmt.Sprintf("unknown probe kind %q (valid: %s, %s, %s)",
				s, ProbeNone, ProbeCodexJSON, ProbeClaudeStreamJSON))
	}
	return kind, nil
}

// Config describes one reviewer agent: how to launch it, how to read
// its output stream, and which registry keys to fall back to when a
// run times out, fails, or reports rate limiting. A Config is built
// once and never mutated afterwards.
type Config struct {
	Key               string    `yaml:"key" json:"key"`
	Name              string    `yaml:"name" json:"name"`
	Command           string    `yaml:"command" json:"command"`
	Probe             ProbeKind `yaml:"probe" json:"probe"`
	Fallback          string    `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	RateLimitFallback string    `yaml:"rate_limit_fallback,omitempty" json:"rate_limit_fallback,omitempty"`
}

// Validate checks the fields that do not depend on other reviewers.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return core.ErrValidation(core.CodeInvalidConfig, "reviewer key is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("reviewer %q has no name", c.Key))
	}
	if strings.TrimSpace(c.Command) == "" {
		return core.ErrValidation(core.CodeEmptyCommand,
			fmt.Sprintf("reviewer %q has no command", c.Key))
	}
	if !c.Probe.Valid() {
		return core.ErrValidation(core.CodeInvalidProbe,
			fmt.Sprintf("reviewer %q: unknown probe kind %q", c.Key, string(c.Probe)))
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases a reviewer name and squeezes everything that is not
// a letter or digit into single underscores, for use in file and
// directory names ("Claude CLI" -> "claude_cli").
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

// builtinPresets returns the stock reviewer definitions. Fallbacks
// reference other preset keys and are resolved through the registry at
// failure time.
func builtinPresets() []Config {
	return []Config{
		{
			Key:               "claude",
			Name:              "Claude CLI",
			Command:           "claude --dangerously-skip-permissions -p --output-format stream-json --include-partial-messages --verbose",
			Probe:             ProbeClaudeStreamJSON,
			Fallback:          "codex",
			RateLimitFallback: "codex",
		},
		{
			Key:               "codex",
			Name:              "Codex CLI",
			Command:           "codex --dangerously-bypass-approvals-and-sandbox exec --json",
			Probe:             ProbeCodexJSON,
			Fallback:          "cursor-gpt",
			RateLimitFallback: "cursor-gpt",
		},
		{
			Key:               "cursor-opus",
			Name:              "Cursor / Opus 4.6 Thinking",
			Command:           "cursor agent -p -f --model opus-4.6-thinking",
			Probe:             ProbeNone,
			RateLimitFallback: "cursor-gpt",
		},
		{
			Key:               "cursor-gpt",
			Name:              "Cursor / GPT 5.2 Codex XHigh",
			Command:           "cursor agent -p -f --model gpt-5.2-codex-xhigh",
			Probe:             ProbeNone,
			RateLimitFallback: "cursor-opus",
		},
	}
}

// Registry holds the full set of known reviewers, keyed by preset key.
// It is assembled once at startup from the built-in presets plus any
// overrides, validated as a whole, and read-only afterwards.
type Registry struct {
	order []string
	byKey map[string]Config
}

// NewRegistry builds a registry from the built-in presets with the
// given overrides merged in. An override whose key matches a preset
// replaces it in place; new keys are appended in the order given.
func NewRegistry(overrides ...Config) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Config)}
	for _, cfg := range builtinPresets() {
		r.order = append(r.order, cfg.Key)
		r.byKey[cfg.Key] = cfg
	}
	for _, cfg := range overrides {
		if cfg.Probe == "" {
			cfg.Probe = ProbeNone
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byKey[cfg.Key]; !exists {
			r.order = append(r.order, cfg.Key)
		}
		r.byKey[cfg.Key] = cfg
	}

	// Fallback keys must resolve inside the finished registry so a
	// broken chain surfaces at startup, not mid-run.
	for _, key := range r.order {
		cfg := r.byKey[key]
		for _, ref := range []string{cfg.Fallback, cfg.RateLimitFallback} {
			if ref == "" {
				continue
			}
			if _, ok := r.byKey[ref]; !ok {
				return nil, core.ErrValidation(core.CodeInvalidConfig,
					fmt.Sprintf("reviewer %q references unknown fallback %q", key, ref))
			}
		}
	}
	return r, nil
}

// LoadPresets reads reviewer overrides from a YAML file shaped as
//
//	reviewers:
//	  - key: my-agent
//	    name: "My Agent"
//	    command: "my-agent --headless"
//	    probe: none
//
// and returns them in file order for NewRegistry.
func LoadPresets(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("cannot read reviewers file %s", path)).WithCause(err)
	}
	var file struct {
		Reviewers []Config `yaml:"reviewers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("cannot parse reviewers file %s", path)).WithCause(err)
	}
	return file.Reviewers, nil
}

// Keys returns the registry keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

// All returns every reviewer config in registration order.
func (r *Registry) All() []Config {
	configs := make([]Config, 0, len(r.order))
	for _, key := range r.order {
		configs = append(configs, r.byKey[key])
	}
	return configs
}

// Lookup resolves a preset key. Unknown keys get a fuzzy "did you
// mean" suggestion when one is close enough.
func (r *Registry) Lookup(key string) (Config, error) {
	if cfg, ok := r.byKey[key]; ok {
		return cfg, nil
	}
	msg := fmt.Sprintf("unknown reviewer %q (choose from: %s)", key, strings.Join(r.Keys(), ", "))
	if suggestion := r.suggest(key); suggestion != "" {
		msg = fmt.Sprintf("unknown reviewer %q, did you mean %q?", key, suggestion)
	}
	return Config{}, core.ErrValidation(core.CodeReviewerUnknown, msg)
}

func (r *Registry) suggest(key string) string {
	keys := r.Keys()
	sort.Strings(keys)
	matches := fuzzy.Find(key, keys)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
