package reviewer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/logging"
)

const (
	defaultPollInterval = 5 * time.Second
	terminationGrace    = 5 * time.Second
	minWakeup           = 100 * time.Millisecond

	// Progress notices are throttled: emit on a burst of new events or
	// after enough quiet time, whichever comes first.
	progressBurst    = 20
	progressInterval = 15 * time.Second
)

// Limits bounds a single supervised invocation. Zero values disable
// the corresponding mechanism.
type Limits struct {
	// Timeout is the wall-clock budget for the whole run.
	Timeout time.Duration
	// StallTimeout kills a run that shows no liveness signal (output
	// growth, CPU movement, probe progress) for this long.
	StallTimeout time.Duration
	// Heartbeat is the interval between periodic status lines.
	Heartbeat time.Duration
	// PollInterval is how often liveness is sampled (default 5s).
	PollInterval time.Duration
}

// Result carries everything an invocation produced. A Result is
// returned even when the run was killed on a limit, so partial output
// is never lost.
type Result struct {
	RunID    string
	WorkDir  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Probe    Snapshot
}

// Supervisor launches reviewer agents and watches them to completion.
// The prompt is fed through stdin from a file (large prompts would
// blow ARG_MAX as an argument, and a pipe write could block before
// polling starts), stdout/stderr stream into log files in a fresh
// work dir so they can be tailed live, and a poll loop OR-s several
// independent liveness signals to tell "still thinking" apart from
// "hung".
type Supervisor struct {
	log    *logging.Logger
	limits Limits
	events core.EventHandler
}

// NewSupervisor builds a supervisor with the given limits. The event
// handler may be nil; when set it receives lifecycle events inline
// from the poll loop.
func NewSupervisor(log *logging.Logger, limits Limits, events core.EventHandler) *Supervisor {
	if log == nil {
		log = logging.NewNop()
	}
	return &Supervisor{log: log, limits: limits, events: events}
}

// Execute runs one agent to completion and returns its captured
// output. On a wall or stall timeout the process tree is terminated
// (SIGTERM, then SIGKILL after a grace period) and the Result with
// whatever output was produced is returned alongside the timeout
// error.
func (s *Supervisor) Execute(ctx context.Context, cfg Config, prompt string) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, core.ErrValidation(core.CodeEmptyPrompt,
			fmt.Sprintf("empty prompt for reviewer %q", cfg.Name))
	}
	argv, err := SplitCommand(cfg.Command)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := s.log.WithReviewer(cfg.Key).WithRun(runID)

	workDir, err := os.MkdirTemp("", "reviewer_"+Slug(cfg.Name)+"_")
	if err != nil {
		return nil, core.ErrExecution(core.CodeSpawnFailed, "cannot create work dir").WithCause(err)
	}
	promptPath := filepath.Join(workDir, "prompt.txt")
	stdoutPath := filepath.Join(workDir, "stdout.log")
	stderrPath := filepath.Join(workDir, "stderr.log")
	if err := os.WriteFile(promptPath, []byte(prompt), 0o644); err != nil {
		return nil, core.ErrExecution(core.CodeSpawnFailed, "cannot write prompt file").WithCause(err)
	}

	promptFile, err := os.Open(promptPath)
	if err != nil {
		return nil, core.ErrExecution(core.CodeSpawnFailed, "cannot open prompt file").WithCause(err)
	}
	defer promptFile.Close()
	stdoutFile, err := os.Create(stdoutPath)
	if err != nil {
		return nil, core.ErrExecution(core.CodeSpawnFailed, "cannot create stdout log").WithCause(err)
	}
	defer stdoutFile.Close()
	stderrFile, err := os.Create(stderrPath)
	if err != nil {
		return nil, core.ErrExecution(core.CodeSpawnFailed, "cannot create stderr log").WithCause(err)
	}
	defer stderrFile.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = promptFile
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	configureProcAttr(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, core.ErrExecution(core.CodeSpawnFailed,
			fmt.Sprintf("cannot start %s", cfg.Name)).
			WithCause(err).
			WithDetail("command", cfg.Command)
	}
	pid := cmd.Process.Pid

	log.Info("reviewer started",
		"name", cfg.Name,
		"pid", pid,
		"probe", string(cfg.Probe),
		"stdout", stdoutPath,
		"stderr", stderrPath,
	)
	s.emit(core.NewInvocationEvent(core.EventStarted, cfg.Name,
		fmt.Sprintf("started pid=%d", pid)).
		WithRun(runID).
		WithData(map[string]any{
			"pid":    pid,
			"probe":  string(cfg.Probe),
			"stdout": stdoutPath,
			"stderr": stderrPath,
		}))

	// A single goroutine owns cmd.Wait; everyone else listens on the
	// channel so the loop wakes the moment the process exits.
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	poll := s.limits.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	var deadline time.Time
	if s.limits.Timeout > 0 {
		deadline = start.Add(s.limits.Timeout)
	}
	var nextHeartbeat time.Time
	if s.limits.Heartbeat > 0 {
		nextHeartbeat = start.Add(s.limits.Heartbeat)
	}

	lastActivity := start
	lastOutput := start
	var lastSize int64
	lastCPU, lastCPUOK := cpuSeconds(pid)
	lastTreeCPU, lastTreeOK := treeCPUSeconds(pid)
	tracker := NewTracker(cfg.Probe)
	lastProgressEmit := start
	lastProgressCount := 0

	var timeoutErr *core.DomainError

poll:
	for {
		now := time.Now()
		sleep := poll
		if !deadline.IsZero() {
			remaining := deadline.Sub(now)
			if remaining <= 0 {
				elapsed := FormatDuration(now.Sub(start))
				log.Warn("wall timeout exceeded, terminating",
					"name", cfg.Name,
					"elapsed", elapsed,
					"limit", FormatDuration(s.limits.Timeout),
				)
				s.emit(core.NewInvocationEvent(core.EventTimeout, cfg.Name,
					fmt.Sprintf("timed out after %s", elapsed)).
					WithRun(runID).
					WithData(map[string]any{
						"reason": "wall",
						"limit":  FormatDuration(s.limits.Timeout),
					}))
				timeoutErr = core.ErrWallTimeout(
					fmt.Sprintf("%s timed out after %s", cfg.Name, FormatDuration(s.limits.Timeout)))
				s.shutdown(cmd, waitCh, log)
				break poll
			}
			if remaining < sleep {
				sleep = remaining
			}
		}
		if !nextHeartbeat.IsZero() {
			untilBeat := nextHeartbeat.Sub(now)
			if untilBeat < minWakeup {
				untilBeat = minWakeup
			}
			if untilBeat < sleep {
				sleep = untilBeat
			}
		}

		select {
		case <-waitCh:
			break poll
		case <-ctx.Done():
			log.Warn("interrupted, terminating", "name", cfg.Name, "reason", ctx.Err())
			s.shutdown(cmd, waitCh, log)
			res := s.collect(cmd, cfg, log, runID, workDir, stdoutPath, stderrPath, start, lastSize, tracker)
			return res, core.ErrExecution(core.CodeInterrupted,
				fmt.Sprintf("%s interrupted", cfg.Name)).WithCause(ctx.Err())
		case <-time.After(sleep):
		}

		// Liveness signals. Each one independently refreshes
		// lastActivity; output growth additionally refreshes
		// lastOutput.
		now = time.Now()
		if size, ok := logSizes(stdoutPath, stderrPath); ok && size > lastSize {
			lastSize = size
			lastActivity = now
			lastOutput = now
		}

		cpuNow, cpuOK := cpuSeconds(pid)
		if cpuOK && lastCPUOK && cpuNow > lastCPU {
			lastActivity = now
		}
		if cpuOK {
			lastCPU = cpuNow
			lastCPUOK = true
		}

		treeNow, treeOK := treeCPUSeconds(pid)
		if treeOK && lastTreeOK && treeNow > lastTreeCPU {
			lastActivity = now
		}
		if treeOK {
			lastTreeCPU = treeNow
			lastTreeOK = true
		}

		snap := tracker.Update(stdoutPath)
		if snap.ProgressCount > lastProgressCount {
			lastActivity = now
			burst := snap.ProgressCount-lastProgressCount >= progressBurst
			due := now.Sub(lastProgressEmit) >= progressInterval
			if burst || due {
				log.Info("reviewer progress",
					"name", cfg.Name,
					"progress_events", snap.ProgressCount,
					"last", orNA(snap.LastProgress),
				)
				s.emit(core.NewInvocationEvent(core.EventProgress, cfg.Name,
					fmt.Sprintf("progress_events=%d last=%s", snap.ProgressCount, orNA(snap.LastProgress))).
					WithRun(runID).
					WithData(map[string]any{
						"progress_events": snap.ProgressCount,
						"last_progress":   orNA(snap.LastProgress),
					}))
				lastProgressEmit = now
			}
			lastProgressCount = snap.ProgressCount
		}

		now = time.Now()
		if !nextHeartbeat.IsZero() && !now.Before(nextHeartbeat) {
			fields := []any{
				"name", cfg.Name,
				"elapsed", FormatDuration(now.Sub(start)),
				"idle", FormatDuration(now.Sub(lastActivity)),
				"output_idle", FormatDuration(now.Sub(lastOutput)),
				"output", FormatBytes(lastSize),
				"cpu_root", cpuLabel(cpuNow, cpuOK),
				"cpu_tree", cpuLabel(treeNow, treeOK),
			}
			data := map[string]any{
				"elapsed":     FormatDuration(now.Sub(start)),
				"idle":        FormatDuration(now.Sub(lastActivity)),
				"output_idle": FormatDuration(now.Sub(lastOutput)),
				"output":      FormatBytes(lastSize),
				"cpu_root":    cpuLabel(cpuNow, cpuOK),
				"cpu_tree":    cpuLabel(treeNow, treeOK),
			}
			if tracker.Active() {
				fields = append(fields,
					"progress_events", snap.ProgressCount,
					"last_progress", orNA(snap.LastProgress),
					"final_events", snap.FinalCount,
					"last_final", orNA(snap.LastFinal),
				)
				data["progress_events"] = snap.ProgressCount
				data["last_progress"] = orNA(snap.LastProgress)
				data["final_events"] = snap.FinalCount
				data["last_final"] = orNA(snap.LastFinal)
			}
			log.Info("heartbeat", fields...)
			s.emit(core.NewInvocationEvent(core.EventHeartbeat, cfg.Name,
				fmt.Sprintf("elapsed=%s idle=%s output=%s",
					FormatDuration(now.Sub(start)),
					FormatDuration(now.Sub(lastActivity)),
					FormatBytes(lastSize))).
				WithRun(runID).
				WithData(data))
			nextHeartbeat = now.Add(s.limits.Heartbeat)
		}

		if s.limits.StallTimeout > 0 {
			stalledFor := now.Sub(lastActivity)
			if stalledFor >= s.limits.StallTimeout {
				log.Warn("no output or CPU activity, terminating",
					"name", cfg.Name,
					"stalled_for", FormatDuration(stalledFor),
					"limit", FormatDuration(s.limits.StallTimeout),
				)
				s.emit(core.NewInvocationEvent(core.EventStalled, cfg.Name,
					fmt.Sprintf("stalled for %s", FormatDuration(stalledFor))).
					WithRun(runID).
					WithData(map[string]any{
						"reason":      "stall",
						"stalled_for": FormatDuration(stalledFor),
						"limit":       FormatDuration(s.limits.StallTimeout),
					}))
				timeoutErr = core.ErrStallTimeout(
					fmt.Sprintf("%s produced no output or CPU activity for %s (limit %s)",
						cfg.Name, FormatDuration(stalledFor), FormatDuration(s.limits.StallTimeout)))
				s.shutdown(cmd, waitCh, log)
				break poll
			}
		}
	}

	res := s.collect(cmd, cfg, log, runID, workDir, stdoutPath, stderrPath, start, lastSize, tracker)
	if timeoutErr != nil {
		return res, timeoutErr
	}
	return res, nil
}

// shutdown terminates the agent's process group: SIGTERM, a grace
// period for cleanup, then SIGKILL. It returns once the waiter
// goroutine has reaped the process.
func (s *Supervisor) shutdown(cmd *exec.Cmd, waitCh <-chan error, log *logging.Logger) {
	if err := terminateTree(cmd.Process); err != nil {
		log.Debug("terminate failed", "error", err)
	}
	select {
	case <-waitCh:
		return
	case <-time.After(terminationGrace):
	}
	if err := killTree(cmd.Process); err != nil {
		log.Debug("kill failed", "error", err)
	}
	<-waitCh
}

// collect reads back the log files and assembles the Result.
func (s *Supervisor) collect(cmd *exec.Cmd, cfg Config, log *logging.Logger, runID, workDir, stdoutPath, stderrPath string, start time.Time, lastSize int64, tracker *Tracker) *Result {
	stdout := readLog(stdoutPath)
	stderr := readLog(stderrPath)
	finalSize, ok := logSizes(stdoutPath, stderrPath)
	if !ok {
		finalSize = lastSize
	}
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	duration := time.Since(start)

	log.Info("reviewer finished",
		"name", cfg.Name,
		"exit_code", exitCode,
		"output", FormatBytes(finalSize),
		"duration", FormatDuration(duration),
	)

	return &Result{
		RunID:    runID,
		WorkDir:  workDir,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Duration: duration,
		Probe:    tracker.Snapshot(),
	}
}

func (s *Supervisor) emit(event core.InvocationEvent) {
	if s.events != nil {
		s.events(event)
	}
}

// logSizes sums the sizes of both log files. ok is false when either
// stat fails, so a transient error never looks like shrinking output.
func logSizes(stdoutPath, stderrPath string) (int64, bool) {
	var total int64
	for _, path := range []string{stdoutPath, stderrPath} {
		info, err := os.Stat(path)
		if err != nil {
			return 0, false
		}
		total += info.Size()
	}
	return total, true
}

func readLog(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func cpuLabel(seconds float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.1fs", seconds)
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
