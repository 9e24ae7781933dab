package domain

import (
	"fmt"
	"time"
)

// PipelineError represents a fatal pipeline failure
type PipelineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Err       error     `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Error codes for different failure scenarios
const (
	ErrMissingInput    = "MISSING_INPUT"
	ErrInputError      = "INPUT_ERROR"
	ErrVocabularyError = "VOCABULARY_ERROR"
	ErrUpstreamError   = "UPSTREAM_ERROR"
	ErrOutputError     = "OUTPUT_ERROR"
	ErrConfigError     = "CONFIG_ERROR"
	ErrAdapterError    = "ADAPTER_ERROR"
)

// ValidationError represents configuration validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewPipelineError creates a new PipelineError with timestamp
func NewPipelineError(code, message, details, runID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Err:       cause,
	}
}

// NewMissingInputError names the resource a run cannot start without
func NewMissingInputError(resource, path, runID string, cause error) *PipelineError {
	return NewPipelineError(ErrMissingInput,
		fmt.Sprintf("required input %q not found", resource),
		path, runID, cause)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
