// Package storage provides shared configuration helpers for object backends.
package storage

import "fmt"

// ConfigError reports a backend configuration problem.
type ConfigError struct {
	Backend string
	Field   string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	switch {
	case e.Field == "":
		return fmt.Sprintf("%s: %s", e.Backend, msg)
	case e.Value == "":
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Field, msg)
	default:
		return fmt.Sprintf("%s: %s=%q: %s", e.Backend, e.Field, e.Value, msg)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a ConfigError for a field validation failure.
func NewConfigError(backend, field, message string) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message}
}

// NewConfigErrorWithValue creates a ConfigError that includes the rejected value.
func NewConfigErrorWithValue(backend, field, value, message string) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Value: value, Message: message}
}

// NewConfigErrorWithCause creates a ConfigError wrapping an underlying failure.
func NewConfigErrorWithCause(backend, field, message string, cause error) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message, Cause: cause}
}
