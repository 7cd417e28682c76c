// Package domain provides the core types and error kinds for the gateway.
package domain

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind represents the category of a gateway error.
type ErrorKind string

const (
	// ErrorKindConfiguration indicates a backend could not be constructed
	// (missing credential or model). Never retried.
	ErrorKindConfiguration ErrorKind = "configuration"

	// ErrorKindUnknownProvider indicates the model matched no known family.
	ErrorKindUnknownProvider ErrorKind = "unknown_provider"

	// ErrorKindProvider indicates a generation failure (transport, auth, quota, parse).
	ErrorKindProvider ErrorKind = "provider"

	// ErrorKindDispatch indicates every attempt for a request failed.
	ErrorKindDispatch ErrorKind = "dispatch"

	// ErrorKindValidation indicates a malformed client request.
	ErrorKindValidation ErrorKind = "validation"
)

// ConfigurationError is returned when a provider backend cannot be built.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Component, e.Reason)
}

// Kind returns the error category.
func (e *ConfigurationError) Kind() ErrorKind { return ErrorKindConfiguration }

// HTTPStatusCode returns the HTTP status code for this error.
func (e *ConfigurationError) HTTPStatusCode() int { return http.StatusInternalServerError }

// UnknownProviderError is returned before any attempt when a model id matches no family.
type UnknownProviderError struct {
	Model string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown model provider for model: %s", e.Model)
}

// Kind returns the error category.
func (e *UnknownProviderError) Kind() ErrorKind { return ErrorKindUnknownProvider }

// HTTPStatusCode returns the HTTP status code for this error.
func (e *UnknownProviderError) HTTPStatusCode() int { return http.StatusBadRequest }

// ProviderError is a single failed generation attempt.
type ProviderError struct {
	// Model is the model identifier that was attempted.
	Model string

	// StatusCode is the upstream HTTP status, 0 for transport failures.
	StatusCode int

	// Cause is a human-readable reason, extracted from the upstream error body when possible.
	Cause string

	// Err is the underlying error, if any.
	Err error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Model, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Model, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Kind returns the error category.
func (e *ProviderError) Kind() ErrorKind { return ErrorKindProvider }

// HTTPStatusCode returns the HTTP status code for this error.
func (e *ProviderError) HTTPStatusCode() int { return http.StatusBadGateway }

// NewProviderError builds a ProviderError from an underlying error.
func NewProviderError(model string, err error) *ProviderError {
	cause := "unknown error"
	if err != nil {
		cause = err.Error()
	}
	return &ProviderError{Model: model, Cause: cause, Err: err}
}

// Attempt records the outcome of one model attempt within a dispatch.
type Attempt struct {
	Model string
	Err   error
}

// DispatchError is returned when every attempt for a request failed.
// Attempts are listed in the order they were tried.
type DispatchError struct {
	Family   string
	Attempts []Attempt
}

func (e *DispatchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		cause := "unknown error"
		if a.Err != nil {
			cause = a.Err.Error()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", a.Model, cause))
	}
	return fmt.Sprintf("all %s models failed: [%s]", e.Family, strings.Join(parts, "; "))
}

// Models returns the attempted model identifiers in order.
func (e *DispatchError) Models() []string {
	models := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		models[i] = a.Model
	}
	return models
}

// Kind returns the error category.
func (e *DispatchError) Kind() ErrorKind { return ErrorKindDispatch }

// HTTPStatusCode returns the HTTP status code for this error.
func (e *DispatchError) HTTPStatusCode() int { return http.StatusInternalServerError }

// ValidationError is returned for malformed client input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Kind returns the error category.
func (e *ValidationError) Kind() ErrorKind { return ErrorKindValidation }

// HTTPStatusCode returns the HTTP status code for this error.
func (e *ValidationError) HTTPStatusCode() int { return http.StatusBadRequest }

// ErrMissingField creates a validation error for an absent required field.
func ErrMissingField(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "field required"}
}
