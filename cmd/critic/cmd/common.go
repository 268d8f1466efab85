package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/critic/internal/config"
	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/logging"
	"github.com/hugo-lorenzo-mato/critic/internal/monitor"
	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
	"github.com/hugo-lorenzo-mato/critic/internal/workflow"
)

// loopFlags are the flags shared by the review, plan, todo and run
// commands. Commands register the subsets they take.
type loopFlags struct {
	cycles        int
	reviewers     []string
	reviewerCmds  []string
	reviewerNames []string
	contexts      []string
	contextFiles  []string
	timeoutSecs   int
	stallSecs     int
	heartbeatSecs int
	noCommit      bool
	noFallback    bool
	commentsDir   string
	monitorAddr   string
}

// addLoopFlags registers the full review-loop flag set.
func addLoopFlags(cmd *cobra.Command, f *loopFlags) {
	cmd.Flags().IntVar(&f.cycles, "cycles", 3, "Number of review cycles")
	cmd.Flags().BoolVar(&f.noCommit, "no-commit", false, "Skip git commits after each cycle")
	cmd.Flags().StringVar(&f.commentsDir, "comments-dir", "",
		"Directory for reviewer comments (default: derived from the document)")
	addReviewerFlags(cmd, f)
	addLimitFlags(cmd, f)
}

// addReviewerFlags registers reviewer selection, context and monitor
// flags. These apply to every command that runs reviewers.
func addReviewerFlags(cmd *cobra.Command, f *loopFlags) {
	cmd.Flags().StringArrayVar(&f.reviewers, "reviewer", nil,
		"Reviewer preset key (repeatable)")
	cmd.Flags().StringArrayVar(&f.reviewerCmds, "reviewer-cmd", nil,
		"Custom reviewer command line (repeatable, pairs with --reviewer-name)")
	cmd.Flags().StringArrayVar(&f.reviewerNames, "reviewer-name", nil,
		"Custom reviewer display name (repeatable, pairs with --reviewer-cmd)")
	cmd.Flags().BoolVar(&f.noFallback, "no-fallback", false,
		"Disable timeout and rate-limit fallback reviewers")
	cmd.Flags().StringArrayVar(&f.contexts, "context", nil,
		"Additional prompt context (repeatable)")
	cmd.Flags().StringArrayVar(&f.contextFiles, "context-file", nil,
		"File with additional prompt context (repeatable)")
	cmd.Flags().StringVar(&f.monitorAddr, "monitor", "",
		"Serve live status and events on this address while running (e.g. 127.0.0.1:8765)")
}

// addLimitFlags registers the supervision limit flags, in seconds the
// way the CLI has always taken them. Config durations apply when a
// flag is not given.
func addLimitFlags(cmd *cobra.Command, f *loopFlags) {
	cmd.Flags().IntVar(&f.timeoutSecs, "timeout", 1800,
		"Wall-clock limit per reviewer invocation, in seconds")
	cmd.Flags().IntVar(&f.stallSecs, "stall-timeout", 0,
		"Kill a reviewer with no activity for this many seconds (0 disables)")
	cmd.Flags().IntVar(&f.heartbeatSecs, "heartbeat-secs", 30,
		"Seconds between heartbeat log lines")
}

// loadConfig loads and validates configuration through the global
// viper instance so persistent flag bindings apply.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// newRegistry builds the reviewer registry, merging preset overrides
// from the configured presets file when one is set.
func newRegistry(cfg *config.Config) (*reviewer.Registry, error) {
	var overrides []reviewer.Config
	if cfg.Reviewers.File != "" {
		presets, err := reviewer.LoadPresets(cfg.Reviewers.File)
		if err != nil {
			return nil, fmt.Errorf("loading reviewer presets: %w", err)
		}
		overrides = presets
	}
	return reviewer.NewRegistry(overrides...)
}

// resolveLimits turns config durations into supervisor limits, with
// explicitly set flags taking precedence.
func resolveLimits(cmd *cobra.Command, cfg *config.Config, f *loopFlags) (reviewer.Limits, error) {
	wall, stall, heartbeat, poll, err := cfg.Run.Limits()
	if err != nil {
		return reviewer.Limits{}, err
	}
	if cmd.Flags().Changed("timeout") {
		wall = time.Duration(f.timeoutSecs) * time.Second
	}
	if cmd.Flags().Changed("stall-timeout") {
		stall = time.Duration(f.stallSecs) * time.Second
	}
	if cmd.Flags().Changed("heartbeat-secs") {
		heartbeat = time.Duration(f.heartbeatSecs) * time.Second
	}
	return reviewer.Limits{
		Timeout:      wall,
		StallTimeout: stall,
		Heartbeat:    heartbeat,
		PollInterval: poll,
	}, nil
}

// resolveCycles prefers an explicit --cycles over the config value.
func resolveCycles(cmd *cobra.Command, cfg *config.Config, f *loopFlags) int {
	if cmd.Flags().Changed("cycles") {
		return f.cycles
	}
	if cfg.Review.Cycles > 0 {
		return cfg.Review.Cycles
	}
	return f.cycles
}

// explicitReviewers resolves reviewers named on the command line or,
// failing that, the config default list. An empty result with nil
// error means nothing was named and the caller should ask.
func explicitReviewers(cfg *config.Config, reg *reviewer.Registry, f *loopFlags) ([]reviewer.Config, error) {
	if len(f.reviewerCmds) != len(f.reviewerNames) {
		return nil, core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf(
			"--reviewer-cmd and --reviewer-name must be specified the same number of times (got %d commands and %d names)",
			len(f.reviewerCmds), len(f.reviewerNames)))
	}

	var selected []reviewer.Config
	for _, key := range f.reviewers {
		rc, err := reg.Lookup(key)
		if err != nil {
			return nil, err
		}
		selected = append(selected, rc)
	}
	for i, command := range f.reviewerCmds {
		name := f.reviewerNames[i]
		rc := reviewer.Config{
			Key:     reviewer.Slug(name),
			Name:    name,
			Command: command,
			Probe:   reviewer.ProbeNone,
		}
		if err := rc.Validate(); err != nil {
			return nil, err
		}
		selected = append(selected, rc)
	}
	if len(selected) > 0 {
		return selected, nil
	}

	for _, key := range cfg.Reviewers.Default {
		rc, err := reg.Lookup(key)
		if err != nil {
			return nil, err
		}
		selected = append(selected, rc)
	}
	return selected, nil
}

// resolveReviewers returns the reviewer lineup for a loop command,
// asking interactively when nothing was named.
func resolveReviewers(cmd *cobra.Command, cfg *config.Config, reg *reviewer.Registry, f *loopFlags) ([]reviewer.Config, error) {
	selected, err := explicitReviewers(cfg, reg, f)
	if err != nil {
		return nil, err
	}
	if len(selected) > 0 {
		return selected, nil
	}
	return pickReviewers(cmd.InOrStdin(), cmd.OutOrStdout(), reg)
}

// resolveOneReviewer returns the single reviewer for a one-shot run.
func resolveOneReviewer(cmd *cobra.Command, cfg *config.Config, reg *reviewer.Registry, f *loopFlags) (reviewer.Config, error) {
	selected, err := explicitReviewers(cfg, reg, f)
	if err != nil {
		return reviewer.Config{}, err
	}
	switch len(selected) {
	case 0:
		scanner := bufio.NewScanner(cmd.InOrStdin())
		return pickOne(scanner, cmd.OutOrStdout(), reg, "Reviewer")
	case 1:
		return selected[0], nil
	default:
		return reviewer.Config{}, core.ErrValidation(core.CodeInvalidConfig,
			"run takes exactly one reviewer")
	}
}

// pickReviewers asks how many reviewers to run and which presets fill
// each slot.
func pickReviewers(in io.Reader, out io.Writer, reg *reviewer.Registry) ([]reviewer.Config, error) {
	scanner := bufio.NewScanner(in)

	count := 0
	for count == 0 {
		fmt.Fprint(out, "\nHow many reviewers? [2]: ")
		if !scanner.Scan() {
			return nil, core.ErrState(core.CodeInterrupted,
				"input closed before a reviewer was chosen")
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			count = 2
			break
		}
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 {
			fmt.Fprintln(out, "  Invalid count. Enter a number of at least 1.")
			continue
		}
		count = n
	}

	selected := make([]reviewer.Config, 0, count)
	for i := 1; i <= count; i++ {
		rc, err := pickOne(scanner, out, reg, fmt.Sprintf("Reviewer %d", i))
		if err != nil {
			return nil, err
		}
		selected = append(selected, rc)
	}
	return selected, nil
}

// pickOne shows the numbered preset menu and reads one choice, by
// number or by preset key.
func pickOne(scanner *bufio.Scanner, out io.Writer, reg *reviewer.Registry, role string) (reviewer.Config, error) {
	all := reg.All()

	fmt.Fprintf(out, "\nSelect %s:\n", role)
	for i, rc := range all {
		fmt.Fprintf(out, "  %d) %s  [%s]\n", i+1, rc.Name, rc.Key)
	}

	for {
		fmt.Fprintf(out, "Choice [1-%d]: ", len(all))
		if !scanner.Scan() {
			return reviewer.Config{}, core.ErrState(core.CodeInterrupted,
				"input closed before a reviewer was chosen")
		}
		choice := strings.TrimSpace(scanner.Text())
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(all) {
			return all[n-1], nil
		}
		if rc, err := reg.Lookup(choice); err == nil {
			return rc, nil
		}
		fmt.Fprintf(out, "  Invalid choice. Enter 1-%d or a preset key.\n", len(all))
	}
}

// session bundles everything a reviewer-running command needs.
type session struct {
	cfg      *config.Config
	log      *logging.Logger
	registry *reviewer.Registry
	engine   *workflow.Engine
	monitor  *monitor.Server
}

// newSession loads config and wires logger, registry, supervisor,
// optional monitor and the workflow engine. The monitor, when
// enabled, receives the same events the supervisor and runner feed
// their logs from.
func newSession(cmd *cobra.Command, f *loopFlags, withGit bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}

	limits, err := resolveLimits(cmd, cfg, f)
	if err != nil {
		return nil, err
	}

	var mon *monitor.Server
	var events core.EventHandler
	addr := f.monitorAddr
	if addr == "" && cfg.Monitor.Enabled {
		addr = cfg.Monitor.Addr
	}
	if addr != "" {
		mon = monitor.NewServer(addr, log)
		events = mon.Handle
	}

	supervisor := reviewer.NewSupervisor(log, limits, events)

	var git *workflow.Committer
	if withGit && !f.noCommit && cfg.Review.Commit {
		git = workflow.NewCommitter("")
	}

	engine, err := workflow.NewEngine(workflow.EngineOptions{
		Registry:      reg,
		Supervisor:    supervisor,
		Git:           git,
		Log:           log,
		Events:        events,
		AllowFallback: !f.noFallback && cfg.Review.Fallback,
		Out:           cmd.OutOrStdout(),
		ErrOut:        cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:      cfg,
		log:      log,
		registry: reg,
		engine:   engine,
		monitor:  mon,
	}, nil
}

// commentsDirFor returns the explicit comments dir, flag first.
func commentsDirFor(cfg *config.Config, f *loopFlags) string {
	if f.commentsDir != "" {
		return f.commentsDir
	}
	return cfg.Review.CommentsDir
}

// runWithMonitor runs body with the monitor server alive for the
// duration. The server stops when the body finishes; a server failure
// cancels the body.
func runWithMonitor(ctx context.Context, mon *monitor.Server, body func(context.Context) error) error {
	if mon == nil {
		return body(ctx)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return mon.Serve(gctx)
	})
	g.Go(func() error {
		defer stop()
		return body(gctx)
	})
	return g.Wait()
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context, out io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(out, "\nReceived interrupt, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
