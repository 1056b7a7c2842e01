package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeVaultCorrupt = "VAULT_CORRUPT"
	ErrCodeVaultSchema  = "VAULT_SCHEMA"
	ErrCodeExtraction   = "EXTRACTION_ERROR"
	ErrCodeRotation     = "ROTATION_ERROR"
	ErrCodeNotifier     = "NOTIFIER_ERROR"
	ErrCodeStore        = "STORE_ERROR"
	ErrCodeTimeout      = "TIMEOUT_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
)

// PipelineError is the structured error type for all vaultsmith operations.
type PipelineError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Project string         `json:"project,omitempty"`
	Cause   error          `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Project != "" {
		return fmt.Sprintf("[%s] project %s: %s", e.Code, e.Project, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewError creates a new PipelineError.
func NewError(code, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// NewErrorf creates a new PipelineError with a formatted message.
func NewErrorf(code, format string, args ...any) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithProject attaches a project name to the error.
func (e *PipelineError) WithProject(name string) *PipelineError {
	e.Project = name
	return e
}

// WithCause attaches an underlying cause.
func (e *PipelineError) WithCause(err error) *PipelineError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *PipelineError) WithDetails(details map[string]any) *PipelineError {
	e.Details = details
	return e
}
