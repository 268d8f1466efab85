package reviewer

import (
	"context"
	"strings"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/logging"
)

// rateLimitPatterns are provider throttling indicators, matched
// case-insensitively against combined stdout+stderr.
var rateLimitPatterns = []string{
	"rate_limit",
	"rate limit",
	"usage_limit",
	"usage limit",
	"429 too many",
	"http 429",
	"too many requests",
}

// hitRateLimit reports whether the captured output looks rate
// limited. Checked even on exit 0: some CLIs report the limit in
// their stream and exit cleanly.
func hitRateLimit(stdout, stderr string) bool {
	combined := strings.ToLower(stdout + "\n" + stderr)
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(combined, pattern) {
			return true
		}
	}
	return false
}

// Outcome is what a review run ultimately yields: the extracted text
// and which reviewer produced it after any fallbacks.
type Outcome struct {
	// Text is the extracted review. On a propagated timeout it holds
	// the raw partial stdout instead, so callers can still save it.
	Text     string
	Reviewer string
	Key      string
	Result   *Result
}

// Runner executes a reviewer and applies the fallback policy: a
// timeout or non-zero exit hands the prompt to the configured
// fallback, a rate limit prefers the rate-limit fallback. Fallback
// references are registry keys resolved at failure time, and a shared
// visited set halts any chain that would revisit a reviewer.
type Runner struct {
	registry      *Registry
	supervisor    *Supervisor
	log           *logging.Logger
	events        core.EventHandler
	allowFallback bool
}

// NewRunner wires a runner. allowFallback false pins every run to its
// primary reviewer regardless of configured fallbacks.
func NewRunner(registry *Registry, supervisor *Supervisor, log *logging.Logger, events core.EventHandler, allowFallback bool) *Runner {
	if log == nil {
		log = logging.NewNop()
	}
	return &Runner{
		registry:      registry,
		supervisor:    supervisor,
		log:           log,
		events:        events,
		allowFallback: allowFallback,
	}
}

// Run invokes the reviewer and follows its fallback chain as needed.
// A timeout with no usable fallback returns the partial output in the
// Outcome together with the timeout error, so the caller decides
// whether to keep it.
func (r *Runner) Run(ctx context.Context, cfg Config, prompt string) (*Outcome, error) {
	visited := make(map[string]bool)
	out, err := r.run(ctx, cfg, prompt, visited)
	if err != nil {
		r.emit(core.NewInvocationEvent(core.EventFailed, cfg.Name, err.Error()))
	}
	return out, err
}

func (r *Runner) run(ctx context.Context, cfg Config, prompt string, visited map[string]bool) (*Outcome, error) {
	visited[identity(cfg)] = true

	res, err := r.supervisor.Execute(ctx, cfg, prompt)
	if err != nil {
		if !core.IsCategory(err, core.ErrCatTimeout) {
			return nil, err
		}
		if next, ok := r.nextFallback(cfg.Fallback, visited); ok {
			r.log.Warn("falling back",
				"from", cfg.Name,
				"to", next.Name,
				"reason", "timeout",
			)
			r.emit(core.NewInvocationEvent(core.EventFallback, cfg.Name,
				"timed out, falling back to "+next.Name).
				WithData(map[string]any{"from": cfg.Key, "to": next.Key, "reason": "timeout"}))
			return r.run(ctx, next, prompt, visited)
		}
		out := &Outcome{Reviewer: cfg.Name, Key: cfg.Key, Result: res}
		if res != nil {
			out.Text = res.Stdout
		}
		return out, err
	}

	// Rate limiting outranks the generic exit-code check; it can show
	// up with exit 0.
	if hitRateLimit(res.Stdout, res.Stderr) {
		key := cfg.RateLimitFallback
		if key == "" {
			key = cfg.Fallback
		}
		if next, ok := r.nextFallback(key, visited); ok {
			r.log.Warn("rate limited, falling back",
				"from", cfg.Name,
				"to", next.Name,
			)
			r.emit(core.NewInvocationEvent(core.EventRateLimited, cfg.Name,
				"rate limited, falling back to "+next.Name).
				WithData(map[string]any{"from": cfg.Key, "to": next.Key}))
			return r.run(ctx, next, prompt, visited)
		}
		r.log.Warn("rate limited, no fallback available", "name", cfg.Name)
		r.emit(core.NewInvocationEvent(core.EventRateLimited, cfg.Name,
			"rate limited, no fallback available"))
	}

	if res.ExitCode != 0 {
		r.log.Warn("reviewer exited non-zero",
			"name", cfg.Name,
			"exit_code", res.ExitCode,
		)
		if next, ok := r.nextFallback(cfg.Fallback, visited); ok {
			r.log.Warn("falling back",
				"from", cfg.Name,
				"to", next.Name,
				"reason", "exit_code",
			)
			r.emit(core.NewInvocationEvent(core.EventFallback, cfg.Name,
				"failed, falling back to "+next.Name).
				WithData(map[string]any{"from": cfg.Key, "to": next.Key, "reason": "exit_code"}))
			return r.run(ctx, next, prompt, visited)
		}
	}

	text := ExtractText(cfg.Probe, res.Stdout)
	r.emit(core.NewInvocationEvent(core.EventCompleted, cfg.Name, "review complete").
		WithRun(res.RunID).
		WithData(map[string]any{"exit_code": res.ExitCode, "bytes": len(text)}))
	return &Outcome{Text: text, Reviewer: cfg.Name, Key: cfg.Key, Result: res}, nil
}

// nextFallback resolves a fallback key against the registry, refusing
// keys that are unknown, disabled, or already visited in this chain.
func (r *Runner) nextFallback(key string, visited map[string]bool) (Config, bool) {
	if !r.allowFallback || key == "" || r.registry == nil {
		return Config{}, false
	}
	next, err := r.registry.Lookup(key)
	if err != nil {
		r.log.Warn("fallback not in registry", "key", key)
		return Config{}, false
	}
	if visited[identity(next)] {
		r.log.Warn("fallback chain loops, stopping", "key", key)
		return Config{}, false
	}
	return next, true
}

func identity(cfg Config) string {
	if cfg.Key != "" {
		return cfg.Key
	}
	return Slug(cfg.Name)
}

func (r *Runner) emit(event core.InvocationEvent) {
	if r.events != nil {
		r.events(event)
	}
}
