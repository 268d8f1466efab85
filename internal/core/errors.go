package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatExecution  ErrorCategory = "execution"  // Subprocess runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Wall clock or stall limit hit
	ErrCatRateLimit  ErrorCategory = "rate_limit" // Agent reported rate limiting
	ErrCatState      ErrorCategory = "state"      // Repository/workdir state problem
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrExecution creates an execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrWallTimeout creates an error for an exceeded wall-clock limit.
func ErrWallTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      CodeWallTimeout,
		Message:   message,
		Retryable: true,
	}
}

// ErrStallTimeout creates an error for a run killed after going idle.
func ErrStallTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      CodeStallTimeout,
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// GetCode extracts the error code, or "" for non-domain errors.
func GetCode(err error) string {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return ""
}

// Predefined error codes
const (
	CodeWallTimeout     = "WALL_TIMEOUT"
	CodeStallTimeout    = "STALL_TIMEOUT"
	CodeReviewerUnknown = "REVIEWER_UNKNOWN"
	CodeFallbackCycle   = "FALLBACK_CYCLE"
	CodeAgentFailed     = "AGENT_FAILED"
	CodeSpawnFailed     = "SPAWN_FAILED"
	CodeInterrupted     = "INTERRUPTED"
	CodeGitFailed       = "GIT_FAILED"
	CodePlanMissing     = "PLAN_MISSING"

	// Validation error codes
	CodeEmptyCommand   = "EMPTY_COMMAND"
	CodeEmptyPrompt    = "EMPTY_PROMPT"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeInvalidProbe   = "INVALID_PROBE"
	CodeMissingContext = "MISSING_CONTEXT_FILE"
	CodeNoReviewers    = "NO_REVIEWERS"
)
