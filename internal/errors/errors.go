// Package errors provides centralized error definitions and error handling
// utilities for the opencode codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - AgentError: errors related to agent lifecycle management
//   - SandboxError: errors related to sandboxed command execution
//   - GitError: errors related to git operations (branches, commits, tags)
//   - PlanError: errors related to swarm planning and execution
//   - ProviderError: errors related to the chat completion provider
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewAgentError("failed to spawn agent", errors.ErrAgentExists)
//
//	// Semantic error
//	err := errors.NewNotFoundError("agent", "builder-core")
//
//	// With context wrapping
//	err := errors.NewGitError("checkout failed", baseErr).WithBranch("agent/x")
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrAgentNotFound) { ... }
//
//	// Check for error types
//	var agentErr *errors.AgentError
//	if errors.As(err, &agentErr) { ... }
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//	if errors.IsUserFacing(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Agent-related sentinel errors
var (
	// ErrAgentExists indicates that an agent with the same id is already registered.
	ErrAgentExists = New("agent already exists")
	// ErrAgentNotFound indicates that an agent could not be found.
	ErrAgentNotFound = New("agent not found")
	// ErrAgentNotRunning indicates that an agent exists but has no live task.
	ErrAgentNotRunning = New("agent not running")
	// ErrAgentRunning indicates that an agent still has a live task.
	ErrAgentRunning = New("agent still running")
	// ErrUnknownProfile indicates that the requested profile is not in the table.
	ErrUnknownProfile = New("unknown profile")
)

// Sandbox-related sentinel errors
var (
	// ErrSandboxUnavailable indicates that the sandbox tool cannot be invoked.
	ErrSandboxUnavailable = New("sandbox tool unavailable")
	// ErrSandboxExited indicates that the sandboxed command exited non-zero.
	ErrSandboxExited = New("sandboxed command failed")
)

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrBranchNotFound indicates that a branch could not be found.
	ErrBranchNotFound = New("branch not found")
	// ErrBranchExists indicates that a branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrTagNotFound indicates that a checkpoint tag could not be resolved.
	ErrTagNotFound = New("checkpoint tag not found")
)

// Planner-related sentinel errors
var (
	// ErrManifestNotFound indicates that the workspace manifest does not exist.
	ErrManifestNotFound = New("manifest not found")
	// ErrManifestInvalid indicates that the workspace manifest could not be parsed.
	ErrManifestInvalid = New("manifest is invalid")
)

// Provider-related sentinel errors
var (
	// ErrMissingAPIKey indicates that no API key is configured for the provider.
	ErrMissingAPIKey = New("provider API key not set")
	// ErrEmptyResponse indicates that the provider returned no choices.
	ErrEmptyResponse = New("provider returned empty response")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// CoreError is the base interface for all opencode errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type CoreError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// AgentError represents errors related to agent lifecycle management.
//
// Example:
//
//	err := errors.NewAgentError("spawn failed", errors.ErrAgentExists)
//	err = err.WithAgentID("builder-core")
//	fmt.Println(err) // "agent error [agent=builder-core]: spawn failed: agent already exists"
type AgentError struct {
	baseError
	AgentID string
	Profile string
}

// NewAgentError creates a new AgentError.
func NewAgentError(message string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithAgentID adds an agent id to the error context.
func (e *AgentError) WithAgentID(id string) *AgentError {
	e.AgentID = id
	return e
}

// WithProfile adds a profile name to the error context.
func (e *AgentError) WithProfile(profile string) *AgentError {
	e.Profile = profile
	return e
}

// WithSeverity sets the error severity.
func (e *AgentError) WithSeverity(s Severity) *AgentError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *AgentError) WithRetryable(r bool) *AgentError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	var parts []string
	if e.AgentID != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.AgentID))
	}
	if e.Profile != "" {
		parts = append(parts, fmt.Sprintf("profile=%s", e.Profile))
	}

	prefix := "agent error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("agent error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AgentError) Is(target error) bool {
	if _, ok := target.(*AgentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SandboxError represents errors related to sandboxed command execution.
//
// Example:
//
//	err := errors.NewSandboxError("command failed", errors.ErrSandboxExited)
//	err = err.WithBranch("agent/builder-core").WithExitCode(127)
type SandboxError struct {
	baseError
	Tool     string
	Branch   string
	ExitCode int
}

// NewSandboxError creates a new SandboxError.
func NewSandboxError(message string, cause error) *SandboxError {
	return &SandboxError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		ExitCode: -1, // -1 indicates not set
	}
}

// WithTool adds the sandbox tool name to the error context.
func (e *SandboxError) WithTool(tool string) *SandboxError {
	e.Tool = tool
	return e
}

// WithBranch adds a branch name to the error context.
func (e *SandboxError) WithBranch(branch string) *SandboxError {
	e.Branch = branch
	return e
}

// WithExitCode adds the child process exit code to the error context.
func (e *SandboxError) WithExitCode(code int) *SandboxError {
	e.ExitCode = code
	return e
}

// WithSeverity sets the error severity.
func (e *SandboxError) WithSeverity(s Severity) *SandboxError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *SandboxError) WithRetryable(r bool) *SandboxError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SandboxError) Error() string {
	var parts []string
	if e.Tool != "" {
		parts = append(parts, fmt.Sprintf("tool=%s", e.Tool))
	}
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}

	prefix := "sandbox error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("sandbox error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SandboxError) Is(target error) bool {
	if _, ok := target.(*SandboxError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GitError represents errors related to git operations.
//
// Example:
//
//	err := errors.NewGitError("failed to create tag", errors.ErrBranchNotFound)
//	err = err.WithBranch("agent/builder-core").WithTag("cp/builder-core/1234")
type GitError struct {
	baseError
	Branch     string
	Tag        string
	Repository string
	GitOutput  string // Captured git command output
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithTag adds a tag name to the error context.
func (e *GitError) WithTag(tag string) *GitError {
	e.Tag = tag
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = output
	return e
}

// WithSeverity sets the error severity.
func (e *GitError) WithSeverity(s Severity) *GitError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *GitError) WithRetryable(r bool) *GitError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Tag != "" {
		parts = append(parts, fmt.Sprintf("tag=%s", e.Tag))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PlanError represents errors related to swarm planning and execution.
//
// Example:
//
//	err := errors.NewPlanError("spawn failed for sub-task", cause)
//	err = err.WithTask("crates/core").WithManifest("Cargo.toml")
type PlanError struct {
	baseError
	Task     string
	Manifest string
}

// NewPlanError creates a new PlanError.
func NewPlanError(message string, cause error) *PlanError {
	return &PlanError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithTask adds a sub-task name to the error context.
func (e *PlanError) WithTask(task string) *PlanError {
	e.Task = task
	return e
}

// WithManifest adds a manifest path to the error context.
func (e *PlanError) WithManifest(path string) *PlanError {
	e.Manifest = path
	return e
}

// WithSeverity sets the error severity.
func (e *PlanError) WithSeverity(s Severity) *PlanError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *PlanError) WithRetryable(r bool) *PlanError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *PlanError) Error() string {
	var parts []string
	if e.Task != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.Task))
	}
	if e.Manifest != "" {
		parts = append(parts, fmt.Sprintf("manifest=%s", e.Manifest))
	}

	prefix := "plan error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("plan error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PlanError) Is(target error) bool {
	if _, ok := target.(*PlanError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ProviderError represents errors from the chat completion provider.
//
// Example:
//
//	err := errors.NewProviderError("request failed", cause)
//	err = err.WithProvider("openai").WithStatusCode(429)
type ProviderError struct {
	baseError
	Provider   string
	StatusCode int
}

// NewProviderError creates a new ProviderError.
func NewProviderError(message string, cause error) *ProviderError {
	return &ProviderError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithProvider adds the provider name to the error context.
func (e *ProviderError) WithProvider(name string) *ProviderError {
	e.Provider = name
	return e
}

// WithStatusCode adds the HTTP status code to the error context.
// Rate-limit and server-side statuses mark the error retryable.
func (e *ProviderError) WithStatusCode(code int) *ProviderError {
	e.StatusCode = code
	if code == 429 || code >= 500 {
		e.retryable = true
	}
	return e
}

// WithSeverity sets the error severity.
func (e *ProviderError) WithSeverity(s Severity) *ProviderError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ProviderError) WithRetryable(r bool) *ProviderError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ProviderError) Error() string {
	var parts []string
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}

	prefix := "provider error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("provider error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ProviderError) Is(target error) bool {
	if _, ok := target.(*ProviderError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("agent", "builder-core")
//	fmt.Println(err) // "agent 'builder-core' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("branch", "agent/builder-core")
//	fmt.Println(err) // "branch 'agent/builder-core' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("agent id cannot be empty")
//	err = err.WithField("id").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for sandbox to exit", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for sandbox to exit (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing CoreError with IsRetryable() returning true
//   - TimeoutError instances
//   - Errors wrapping ErrTimeout
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements CoreError
	var coreErr CoreError
	if As(err, &coreErr) {
		return coreErr.IsRetryable()
	}

	// Check for known retryable sentinel errors
	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
// This checks for:
//   - Errors implementing CoreError with IsUserFacing() returning true
//   - Semantic errors (NotFoundError, AlreadyExistsError, ValidationError, TimeoutError)
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    displayToUser(err.Error())
//	} else {
//	    displayToUser("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements CoreError
	var coreErr CoreError
	if As(err, &coreErr) {
		return coreErr.IsUserFacing()
	}

	// Semantic errors are always user-facing
	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement CoreError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    alertOnCall(err)
//	case errors.SeverityError:
//	    log.Error("error occurred", "err", err)
//	case errors.SeverityWarning:
//	    log.Warn("warning", "err", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	// Check if error implements CoreError
	var coreErr CoreError
	if As(err, &coreErr) {
		return coreErr.Severity()
	}

	// Default to Error severity for unknown errors
	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (AgentError, SandboxError, GitError, PlanError, or ProviderError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var agentErr *AgentError
	var sandboxErr *SandboxError
	var gitErr *GitError
	var planErr *PlanError
	var providerErr *ProviderError

	return As(err, &agentErr) || As(err, &sandboxErr) ||
		As(err, &gitErr) || As(err, &planErr) || As(err, &providerErr)
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, AlreadyExistsError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this preserves the CoreError interface.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to process request")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to spawn agent %s", agentID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
