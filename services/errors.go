package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeInvalidSource ErrorType = "invalid_source"
	ErrorTypeBudget        ErrorType = "budget"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeUpstream      ErrorType = "upstream"
	ErrorTypeNormalization ErrorType = "normalization"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinel values for errors.Is comparisons. Never attach details to these;
// use the New* constructors below instead.
var (
	ErrConfiguration   = NewDomainError(ErrorTypeConfiguration, "provider not configured", nil)
	ErrInvalidSource   = NewDomainError(ErrorTypeInvalidSource, "invalid source", nil)
	ErrBudgetExceeded  = NewDomainError(ErrorTypeBudget, "budget exceeded", nil)
	ErrRateLimited     = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)
	ErrUpstream        = NewDomainError(ErrorTypeUpstream, "upstream provider error", nil)
	ErrNormalization   = NewDomainError(ErrorTypeNormalization, "record normalization failed", nil)
	ErrNotFound        = NewDomainError(ErrorTypeNotFound, "business not found", nil)
	ErrInvalidInput    = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrMockUnavailable = NewDomainError(ErrorTypeConfiguration, "mock provider unavailable", nil)
)

// NewConfigurationError reports missing or placeholder credentials
func NewConfigurationError(provider, message string) *DomainError {
	return NewDomainError(ErrorTypeConfiguration, message, nil).
		WithDetail("provider", provider)
}

// NewInvalidSourceError reports an unknown or unconfigured source name
func NewInvalidSourceError(source string, available []string) *DomainError {
	return NewDomainError(ErrorTypeInvalidSource, fmt.Sprintf("source %q is not available", source), nil).
		WithDetail("source", source).
		WithDetail("available_sources", available)
}

// NewBudgetExceededError reports a rejected budget admission
func NewBudgetExceededError(provider, operation, reason string) *DomainError {
	return NewDomainError(ErrorTypeBudget, reason, nil).
		WithDetail("provider", provider).
		WithDetail("operation", operation)
}

// NewUpstreamError wraps a failed provider call
func NewUpstreamError(provider, operation string, err error) *DomainError {
	return NewDomainError(ErrorTypeUpstream, fmt.Sprintf("%s %s failed", provider, operation), err).
		WithDetail("provider", provider).
		WithDetail("operation", operation)
}

// NewNormalizationError reports a single record that could not be mapped
func NewNormalizationError(provider, reason string, err error) *DomainError {
	return NewDomainError(ErrorTypeNormalization, reason, err).
		WithDetail("provider", provider)
}

// NewNotFoundError reports a business id the provider does not know
func NewNotFoundError(provider, id string) *DomainError {
	return NewDomainError(ErrorTypeNotFound, fmt.Sprintf("business %q not found", id), nil).
		WithDetail("provider", provider).
		WithDetail("id", id)
}

// Error type checking helper functions

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool { return isType(err, ErrorTypeConfiguration) }

// IsInvalidSourceError checks if an error is an invalid source error
func IsInvalidSourceError(err error) bool { return isType(err, ErrorTypeInvalidSource) }

// IsBudgetError checks if an error is a budget error
func IsBudgetError(err error) bool { return isType(err, ErrorTypeBudget) }

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool { return isType(err, ErrorTypeRateLimit) }

// IsUpstreamError checks if an error is an upstream provider error
func IsUpstreamError(err error) bool { return isType(err, ErrorTypeUpstream) }

// IsNormalizationError checks if an error is a normalization error
func IsNormalizationError(err error) bool { return isType(err, ErrorTypeNormalization) }

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return isType(err, ErrorTypeInternal) }

// IsFatal reports errors that must reach the caller without a fallback attempt
func IsFatal(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeConfiguration, ErrorTypeInvalidSource, ErrorTypeValidation:
		return true
	}
	return false
}

// IsRecoverable reports errors the aggregator absorbs with a fallback
func IsRecoverable(err error) bool {
	return err != nil && !IsFatal(err)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
