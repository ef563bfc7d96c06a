package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredField indicates a required environment variable is missing.
	ErrMissingRequiredField = errors.New("missing required configuration value")

	// ErrInvalidValue indicates a configuration value failed validation.
	ErrInvalidValue = errors.New("invalid configuration value")

	// ErrLLMProviderNotFound indicates an LLM provider was not found in the registry.
	ErrLLMProviderNotFound = errors.New("LLM provider not found")
)

// ValidationError wraps configuration validation errors with context.
type ValidationError struct {
	Field string // Environment variable or field name
	Err   error  // Underlying error
}

// Error returns a formatted error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %q: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
