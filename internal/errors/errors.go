// Package errors provides centralized error definitions for the Weft
// workflow engine: sentinel errors for the queue, state machine, and git
// layers, semantic error types for validation and not-found conditions, and
// classification helpers used by the CLI to decide what to show users.
//
// The taxonomy distinguishes four conditions:
//   - validation: malformed input or an illegal state transition
//   - not-found: nothing to do yet (missing prompt, result, or worktree)
//   - partial failure: reported per sub-operation, never collapsed
//   - external failure: git or backend errors translated into domain errors
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers can import only this
// package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Queue-related sentinel errors
var (
	// ErrEmptyPrompt indicates a prompt with no text after trimming.
	ErrEmptyPrompt = New("prompt text cannot be empty")
	// ErrPromptNotFound indicates a prompt file is missing or already processed.
	ErrPromptNotFound = New("prompt not found")
	// ErrResultNotFound indicates no result file is available yet.
	ErrResultNotFound = New("result not found")
	// ErrMalformedTask indicates a queue file whose header cannot be decoded.
	ErrMalformedTask = New("malformed task file")
)

// State-machine sentinel errors
var (
	// ErrInvalidTransition indicates a disallowed feature status change.
	ErrInvalidTransition = New("invalid state transition")
	// ErrStateNotFound indicates a missing feature state record.
	ErrStateNotFound = New("feature state not found")
)

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrWorktreeExists indicates a worktree already exists for the feature.
	ErrWorktreeExists = New("worktree already exists")
	// ErrWorktreeNotFound indicates a worktree could not be found.
	ErrWorktreeNotFound = New("worktree not found")
	// ErrBranchExists indicates a branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrBranchNotFound indicates a branch could not be found.
	ErrBranchNotFound = New("branch not found")
	// ErrMergeConflict indicates a merge produced conflicts.
	ErrMergeConflict = New("merge conflict")
)

// Backend sentinel errors
var (
	// ErrBackendUnavailable indicates the generation backend cannot be reached.
	ErrBackendUnavailable = New("ai backend unavailable")
	// ErrMaxRetriesExceeded indicates all generation attempts failed.
	ErrMaxRetriesExceeded = New("max retries exceeded")
)

// NotFoundError represents a resource that could not be found. It is a
// distinct condition from validation so callers can tell "nothing to do yet"
// apart from "you asked for something malformed".
type NotFoundError struct {
	ResourceType string
	ResourceID   string
	cause        error
}

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

// WithCause attaches an underlying error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

func (e *NotFoundError) Unwrap() error { return e.cause }

// Is matches any *NotFoundError as well as the wrapped cause.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// ValidationError represents invalid input or state. Always surfaced
// synchronously to the caller.
type ValidationError struct {
	Field string
	Value any
	msg   string
	cause error
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{msg: message}
}

// WithField adds the offending field name.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause attaches an underlying error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

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
		return fmt.Sprintf("%s: %s: %v", prefix, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.msg)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// Is matches any *ValidationError as well as the wrapped cause.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// GitError represents a failed git operation, carrying the command output
// for diagnosis.
type GitError struct {
	Branch   string
	Worktree string
	Repo     string
	Output   string
	msg      string
	cause    error
}

// NewGitError creates a GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{msg: message, cause: cause}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithWorktree adds a worktree path to the error context.
func (e *GitError) WithWorktree(path string) *GitError {
	e.Worktree = path
	return e
}

// WithRepo adds a repository path to the error context.
func (e *GitError) WithRepo(path string) *GitError {
	e.Repo = path
	return e
}

// WithOutput adds captured git command output to the error context.
func (e *GitError) WithOutput(output string) *GitError {
	e.Output = strings.TrimSpace(output)
	return e
}

func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Worktree != "" {
		parts = append(parts, fmt.Sprintf("worktree=%s", e.Worktree))
	}
	if e.Repo != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repo))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.msg
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.Output)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *GitError) Unwrap() error { return e.cause }

// Is matches any *GitError as well as the wrapped cause.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// BackendError represents a failure from the text-generation backend,
// carrying the HTTP status when the failure came from the API.
type BackendError struct {
	StatusCode int
	Type       string
	msg        string
	cause      error
}

// NewBackendError creates a BackendError.
func NewBackendError(message string, cause error) *BackendError {
	return &BackendError{msg: message, cause: cause}
}

// WithStatusCode records the HTTP status of the failed request.
func (e *BackendError) WithStatusCode(code int) *BackendError {
	e.StatusCode = code
	return e
}

// WithType records the API error type string.
func (e *BackendError) WithType(t string) *BackendError {
	e.Type = t
	return e
}

func (e *BackendError) Error() string {
	var parts []string
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Type != "" {
		parts = append(parts, fmt.Sprintf("type=%s", e.Type))
	}

	prefix := "backend error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("backend error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.msg)
}

func (e *BackendError) Unwrap() error { return e.cause }

// Retryable reports whether the failed request may succeed on retry:
// rate limits, server errors, and transport failures qualify; other client
// errors do not.
func (e *BackendError) Retryable() bool {
	if e.StatusCode == 0 {
		return true // transport-level failure
	}
	if e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}

// IsNotFound reports whether err is a not-found condition: a NotFoundError
// or one of the not-found sentinels.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *NotFoundError
	if As(err, &nf) {
		return true
	}
	return Is(err, ErrPromptNotFound) ||
		Is(err, ErrResultNotFound) ||
		Is(err, ErrStateNotFound) ||
		Is(err, ErrWorktreeNotFound) ||
		Is(err, ErrBranchNotFound)
}

// IsValidation reports whether err is a validation condition.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var v *ValidationError
	if As(err, &v) {
		return true
	}
	return Is(err, ErrEmptyPrompt) || Is(err, ErrInvalidTransition)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
