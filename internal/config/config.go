package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Run       RunConfig       `mapstructure:"run"`
	Review    ReviewConfig    `mapstructure:"review"`
	Reviewers ReviewersConfig `mapstructure:"reviewers"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RunConfig configures supervised reviewer execution. Durations are
// strings ("30m", "90s"); a zero duration disables that signal.
type RunConfig struct {
	Timeout      string `mapstructure:"timeout"`       // wall clock limit per invocation
	StallTimeout string `mapstructure:"stall_timeout"` // max time without any liveness signal
	Heartbeat    string `mapstructure:"heartbeat"`     // heartbeat period
	PollInterval string `mapstructure:"poll_interval"` // supervisor wake-up interval
}

// Limits parses the run durations into concrete values.
func (c RunConfig) Limits() (wall, stall, heartbeat, poll time.Duration, err error) {
	parse := func(field, s string) (time.Duration, error) {
		if s == "" {
			return 0, nil
		}
		d, perr := time.ParseDuration(s)
		if perr != nil {
			return 0, fmt.Errorf("run.%s: %w", field, perr)
		}
		if d < 0 {
			return 0, fmt.Errorf("run.%s: negative duration %s", field, s)
		}
		return d, nil
	}

	if wall, err = parse("timeout", c.Timeout); err != nil {
		return
	}
	if stall, err = parse("stall_timeout", c.StallTimeout); err != nil {
		return
	}
	if heartbeat, err = parse("heartbeat", c.Heartbeat); err != nil {
		return
	}
	poll, err = parse("poll_interval", c.PollInterval)
	return
}

// ReviewConfig configures the review workflows.
type ReviewConfig struct {
	Cycles      int    `mapstructure:"cycles"`
	Doc         string `mapstructure:"doc"`
	PlanDoc     string `mapstructure:"plan_doc"`
	TodoDir     string `mapstructure:"todo_dir"`
	TasksDir    string `mapstructure:"tasks_dir"`
	CommentsDir string `mapstructure:"comments_dir"`
	Commit      bool   `mapstructure:"commit"`
	Fallback    bool   `mapstructure:"fallback"`
}

// ReviewersConfig configures the reviewer registry.
type ReviewersConfig struct {
	// Default names the reviewers used when none are given on the
	// command line. Empty means ask interactively.
	Default []string `mapstructure:"default"`

	// File points at an optional YAML presets file merged over the
	// built-in reviewer presets.
	File string `mapstructure:"file"`
}

// MonitorConfig configures the live monitor server.
type MonitorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}
