package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/logging"
	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
)

// Engine drives the review workflows: it runs reviewers through the
// fallback runner, persists their comments between cycles, and
// optionally commits the document under review after each pass.
type Engine struct {
	registry *reviewer.Registry
	runner   *reviewer.Runner
	tagger   *cycleTagger
	prompts  *promptRenderer
	git      *Committer
	log      *logging.Logger
	out      io.Writer
	errOut   io.Writer
	fallback bool
}

// EngineOptions wires an Engine.
type EngineOptions struct {
	Registry   *reviewer.Registry
	Supervisor *reviewer.Supervisor
	// Git enables per-cycle commits; nil skips them.
	Git *Committer
	Log *logging.Logger
	// Events receives cycle-tagged lifecycle events from every
	// invocation the engine runs.
	Events        core.EventHandler
	AllowFallback bool
	Out           io.Writer
	ErrOut        io.Writer
}

// NewEngine builds the workflow engine and its fallback runner.
func NewEngine(opts EngineOptions) (*Engine, error) {
	prompts, err := newPromptRenderer()
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logging.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	errOut := opts.ErrOut
	if errOut == nil {
		errOut = io.Discard
	}
	tagger := &cycleTagger{next: opts.Events}
	runner := reviewer.NewRunner(opts.Registry, opts.Supervisor, log, tagger.handle, opts.AllowFallback)
	return &Engine{
		registry: opts.Registry,
		runner:   runner,
		tagger:   tagger,
		prompts:  prompts,
		git:      opts.Git,
		log:      log,
		out:      out,
		errOut:   errOut,
		fallback: opts.AllowFallback,
	}, nil
}

// RunOnce executes a single reviewer invocation outside any review
// loop and returns the outcome.
func (e *Engine) RunOnce(ctx context.Context, cfg reviewer.Config, prompt string) (*reviewer.Outcome, error) {
	return e.runner.Run(ctx, cfg, prompt)
}

// cycleTagger stamps the current cycle number onto runner events so
// downstream consumers can attribute them.
type cycleTagger struct {
	next  core.EventHandler
	cycle atomic.Int32
}

func (t *cycleTagger) handle(event core.InvocationEvent) {
	if t.next == nil {
		return
	}
	if c := int(t.cycle.Load()); c > 0 {
		event = event.WithCycle(c)
	}
	t.next(event)
}

// loopConfig is the shared shape of one review loop.
type loopConfig struct {
	reviewers []reviewer.Config
	cycles    int
	docPath   string
	cdir      string
	label     string
	build     func(prevPath, prevName string) string
}

// runLoop executes cycles × reviewers, threading each reviewer's
// comments file into the next prompt. Timeouts are not fatal: the
// partial output is saved and the loop moves on.
func (e *Engine) runLoop(ctx context.Context, lc loopConfig) error {
	defer e.tagger.cycle.Store(0)

	var prevPath, prevName string
	for cycle := 1; cycle <= lc.cycles; cycle++ {
		for _, cfg := range lc.reviewers {
			if err := ctx.Err(); err != nil {
				return core.ErrExecution(core.CodeInterrupted, "review loop interrupted").WithCause(err)
			}
			e.tagger.cycle.Store(int32(cycle))
			prompt := lc.build(prevPath, prevName)

			e.banner(fmt.Sprintf("Cycle %d/%d — %s %s", cycle, lc.cycles, cfg.Name, lc.label))

			text, err := e.invoke(ctx, cfg, fmt.Sprintf("cycle %d", cycle), prompt)
			if err != nil {
				return err
			}

			path, err := SaveComments(lc.cdir, cycle, cfg.Name, text, "")
			if err != nil {
				return err
			}
			prevPath, prevName = path, cfg.Name
			fmt.Fprintf(e.out, "\n[Saved comments to %s]\n", path)

			msg := fmt.Sprintf("update %s by %s (cycle %d)", lc.docPath, cfg.Name, cycle)
			e.commitDoc(ctx, lc.docPath, msg, msg)
		}
	}
	return nil
}

// creation describes the cycle-0 generation of a missing plan file.
type creation struct {
	creator     reviewer.Config
	planDoc     string
	sourceDoc   string
	cdir        string
	banner      string
	prompt      string
	mkdirParent bool
}

// createPlanIfMissing runs the creation phase with the first reviewer.
// The creator's output is saved as cycle 0; the plan file itself is
// written by the agent, so its absence afterwards is the caller's
// problem to surface.
func (e *Engine) createPlanIfMissing(ctx context.Context, c creation) error {
	if _, err := os.Stat(c.planDoc); err == nil {
		fmt.Fprintf(e.out, "\n[Plan already exists at %s, skipping creation]\n", c.planDoc)
		return nil
	}
	if c.mkdirParent {
		if err := os.MkdirAll(filepath.Dir(c.planDoc), 0o755); err != nil {
			return fmt.Errorf("creating task directory: %w", err)
		}
	}

	e.banner(c.banner)

	text, err := e.invoke(ctx, c.creator, "plan creation", c.prompt)
	if err != nil {
		return err
	}
	path, err := SaveComments(c.cdir, 0, c.creator.Name, text, "creation")
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "\n[Saved creation output to %s]\n", path)

	if _, err := os.Stat(c.planDoc); err == nil {
		msg := fmt.Sprintf("create %s from %s by %s", c.planDoc, c.sourceDoc, c.creator.Name)
		e.commitDoc(ctx, c.planDoc, msg, "create "+c.planDoc)
	}
	return nil
}

// invoke runs one invocation through the fallback runner and returns
// the text to persist. A timeout is downgraded to a warning so the
// partial output still gets saved and the workflow moves on.
func (e *Engine) invoke(ctx context.Context, cfg reviewer.Config, phase, prompt string) (string, error) {
	out, err := e.runner.Run(ctx, cfg, prompt)
	if err == nil {
		return out.Text, nil
	}
	if core.IsCategory(err, core.ErrCatTimeout) {
		e.log.Warn("reviewer timed out, continuing with partial output",
			"reviewer", cfg.Name,
			"phase", phase,
			"error", err,
		)
		fmt.Fprintf(e.errOut, "\n[TIMEOUT] %s during %s. Partial output (if any) was kept.\n",
			errMessage(err), phase)
		if out != nil {
			return out.Text, nil
		}
		return "", nil
	}
	return "", err
}

// commitDoc commits docPath when commits are enabled. Failures are
// reported but never abort the run.
func (e *Engine) commitDoc(ctx context.Context, docPath, message, confirm string) {
	if e.git == nil {
		return
	}
	if err := e.git.CommitDoc(ctx, docPath, message); err != nil {
		e.log.Warn("git commit failed", "doc", docPath, "error", err)
		fmt.Fprintf(e.errOut, "\n[Git commit failed: %s]\n", errMessage(err))
		return
	}
	fmt.Fprintf(e.out, "\n[Committed: %s]\n", confirm)
}

func (e *Engine) banner(title string) {
	sep := strings.Repeat("=", 60)
	fmt.Fprintf(e.out, "\n%s\n  %s\n%s\n\n", sep, title, sep)
}

type headerField struct {
	label string
	value string
}

// printHeader prints the run header: document paths plus the resolved
// reviewer lineup with fallback annotations.
func (e *Engine) printHeader(fields []headerField, reviewers []reviewer.Config) {
	fmt.Fprintln(e.out)
	for _, f := range fields {
		fmt.Fprintf(e.out, "  %-12s%s\n", f.label+":", f.value)
	}
	for i, cfg := range reviewers {
		line := fmt.Sprintf("  Reviewer %d: %s", i+1, cfg.Name)
		if e.fallback {
			if name := e.presetName(cfg.Fallback); name != "" {
				line += fmt.Sprintf(" (fallback: %s)", name)
			}
			if name := e.presetName(cfg.RateLimitFallback); name != "" {
				line += fmt.Sprintf(" (rate-limit: %s)", name)
			}
		}
		fmt.Fprintln(e.out, line)
	}
	fmt.Fprintln(e.out)
}

// presetName resolves a fallback key to its display name. Unknown keys
// are shown as-is; the runner reports them properly at run time.
func (e *Engine) presetName(key string) string {
	if key == "" || e.registry == nil {
		return ""
	}
	cfg, err := e.registry.Lookup(key)
	if err != nil {
		return key
	}
	return cfg.Name
}

// errMessage prefers the bare domain message over the fully wrapped
// error string for user-facing lines.
func errMessage(err error) string {
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		return domErr.Message
	}
	return err.Error()
}
