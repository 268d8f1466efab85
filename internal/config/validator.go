package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateRun(&cfg.Run)
	v.validateReview(&cfg.Review)
	v.validateMonitor(&cfg.Monitor)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Validate validates the configuration with a fresh validator.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateRun(cfg *RunConfig) {
	_, _, _, poll, err := cfg.Limits()
	if err != nil {
		v.addError("run", err.Error(), "durations must parse and be non-negative")
		return
	}
	if cfg.PollInterval != "" && poll == 0 {
		v.addError("run.poll_interval", cfg.PollInterval, "must be positive")
	}
}

func (v *Validator) validateReview(cfg *ReviewConfig) {
	if cfg.Cycles < 0 {
		v.addError("review.cycles", cfg.Cycles, "must be non-negative")
	}
	if cfg.Doc == "" {
		v.addError("review.doc", cfg.Doc, "document path required")
	}
	if cfg.TodoDir == "" {
		v.addError("review.todo_dir", cfg.TodoDir, "directory required")
	}
	if cfg.TasksDir == "" {
		v.addError("review.tasks_dir", cfg.TasksDir, "directory required")
	}
}

func (v *Validator) validateMonitor(cfg *MonitorConfig) {
	if !cfg.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		v.addError("monitor.addr", cfg.Addr, "must be a host:port address")
	}
}
