package supervisor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/config"
	"github.com/GeneArguelles/selenium-mcp/pkg/health"
)

// SupervisorError represents an error with additional context for troubleshooting.
type SupervisorError struct {
	// Code identifies the error type
	Code ErrorCode

	// Message is the primary error message
	Message string

	// Context provides additional details
	Context map[string]interface{}

	// Cause is the underlying error (if any)
	Cause error

	// Suggestion provides actionable guidance for resolving the error
	Suggestion string
}

// ErrorCode identifies categories of errors
type ErrorCode string

const (
	// Absorbed into state transitions, logged only
	ErrorCodeFetchFailed  ErrorCode = "FETCH_FAILED"
	ErrorCodeLocateFailed ErrorCode = "LOCATE_FAILED"
	ErrorCodeHealthFailed ErrorCode = "HEALTH_FAILED"

	// Terminal
	ErrorCodeLaunchFailed         ErrorCode = "LAUNCH_FAILED"
	ErrorCodeInstallExhausted     ErrorCode = "INSTALL_EXHAUSTED"
	ErrorCodeFatalExhaustion      ErrorCode = "FATAL_EXHAUSTION"
	ErrorCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrorCodeLogDirUnavailable    ErrorCode = "LOG_DIR_UNAVAILABLE"
)

// Error implements the error interface
func (e *SupervisorError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Cause))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "; ")
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *SupervisorError) Unwrap() error {
	return e.Cause
}

// NewError creates a new SupervisorError with the given code and message
func NewError(code ErrorCode, message string) *SupervisorError {
	return &SupervisorError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *SupervisorError) WithContext(key string, value interface{}) *SupervisorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause to the error
func (e *SupervisorError) WithCause(cause error) *SupervisorError {
	e.Cause = cause
	return e
}

// WithSuggestion adds an actionable suggestion to the error
func (e *SupervisorError) WithSuggestion(suggestion string) *SupervisorError {
	e.Suggestion = suggestion
	return e
}

// ErrFetchFailed creates an error for a single failed fetch attempt
func ErrFetchFailed(spec artifact.Spec, attempt int, cause error) *SupervisorError {
	suggestion := fmt.Sprintf("Verify the archive is reachable:\n  curl -fI %s", spec.URL())
	if errors.Is(cause, artifact.ErrCorruptArchive) {
		suggestion = "The archive failed validation; a partial download or a proxy rewriting the body is the usual cause"
	}

	return NewError(ErrorCodeFetchFailed,
		fmt.Sprintf("Fetching %s failed", spec.Name)).
		WithContext("artifact", string(spec.Name)).
		WithContext("version", spec.Version).
		WithContext("url", spec.URL()).
		WithContext("attempt", attempt).
		WithCause(cause).
		WithSuggestion(suggestion)
}

// ErrLocateFailed creates an error for when no candidate path holds a binary
func ErrLocateFailed(name artifact.Name, candidates []string) *SupervisorError {
	return NewError(ErrorCodeLocateFailed,
		fmt.Sprintf("No executable %s found", name)).
		WithContext("artifact", string(name)).
		WithContext("candidates", strings.Join(candidates, ":")).
		WithSuggestion("Set CHROME_BINARY or CHROMEDRIVER_PATH to an installed binary")
}

// ErrInstallExhausted creates an error for when every install attempt failed
// and no installed fallback was found
func ErrInstallExhausted(name artifact.Name, attempts int, cause error) *SupervisorError {
	return NewError(ErrorCodeInstallExhausted,
		fmt.Sprintf("Could not install %s", name)).
		WithContext("artifact", string(name)).
		WithContext("attempts", attempts).
		WithCause(cause).
		WithSuggestion(
			"Common causes:\n" +
				"  1. CHROME_VERSION has no Chrome for Testing build for this platform\n" +
				"  2. Outbound network blocked during deploy\n" +
				"  3. INSTALL_ROOT not writable")
}

// ErrLaunchFailed creates an error for server spawn failures
func ErrLaunchFailed(command string, cause error) *SupervisorError {
	return NewError(ErrorCodeLaunchFailed,
		"Failed to start server process").
		WithContext("command", command).
		WithCause(cause).
		WithSuggestion(
			"Common causes:\n" +
				"  1. Interpreter or entrypoint not found\n" +
				"  2. Log directory not writable\n" +
				"Check SERVER_COMMAND")
}

// ErrLogDirUnavailable creates an error for when neither the log root nor a
// temporary directory can hold the deployment logs
func ErrLogDirUnavailable(logRoot string, cause error) *SupervisorError {
	return NewError(ErrorCodeLogDirUnavailable,
		"No writable log directory").
		WithContext("log_root", logRoot).
		WithCause(cause).
		WithSuggestion("Check LOG_ROOT and TMPDIR permissions and free space")
}

// ErrHealthFailed creates an error describing an exhausted health loop
func ErrHealthFailed(url string, snap health.Snapshot) *SupervisorError {
	return NewError(ErrorCodeHealthFailed,
		"Server did not report healthy").
		WithContext("health_url", url).
		WithContext("status", string(snap.Status)).
		WithContext("attempts", snap.Attempt).
		WithCause(snap.Err).
		WithSuggestion(fmt.Sprintf("Verify health endpoint is responding:\n  curl %s", url))
}

// ErrFatalExhaustion creates an error for when the recovery ceiling is reached
func ErrFatalExhaustion(cycles, maxRetries int, diagnostics string) *SupervisorError {
	return NewError(ErrorCodeFatalExhaustion,
		"Recovery attempts exhausted").
		WithContext("recovery_cycles", cycles).
		WithContext("max_retries", maxRetries).
		WithContext("diagnostics", diagnostics).
		WithSuggestion(fmt.Sprintf(
			"Inspect the captured logs:\n  cat %s\n"+
				"A chromedriver and Chrome major version mismatch is the most common cause",
			diagnostics))
}

// ErrInvalidConfiguration wraps a configuration validation failure
func ErrInvalidConfiguration(cause error) *SupervisorError {
	err := NewError(ErrorCodeInvalidConfiguration,
		"Invalid configuration").
		WithCause(cause).
		WithSuggestion("Review environment variables and flags; unset values fall back to defaults")

	var invalid *config.InvalidError
	if errors.As(cause, &invalid) {
		err.WithContext("field", invalid.Field).WithContext("value", invalid.Value)
	}
	return err
}

// IsErrorCode checks if an error has the specified error code
func IsErrorCode(err error, code ErrorCode) bool {
	var supErr *SupervisorError
	if errors.As(err, &supErr) {
		return supErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or empty string if not a SupervisorError
func GetErrorCode(err error) ErrorCode {
	var supErr *SupervisorError
	if errors.As(err, &supErr) {
		return supErr.Code
	}
	return ""
}

// GetSuggestion returns the suggestion from an error, or empty string if not available
func GetSuggestion(err error) string {
	var supErr *SupervisorError
	if errors.As(err, &supErr) {
		return supErr.Suggestion
	}
	return ""
}
