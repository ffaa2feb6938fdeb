package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeUpstream, "provider failed", baseErr)

	assert.Equal(t, ErrorTypeUpstream, domainErr.Type)
	assert.Equal(t, "provider failed", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeUpstream,
				Message: "yelp search failed",
				Err:     errors.New("connection refused"),
			},
			wantMsg: "upstream: yelp search failed (connection refused)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeBudget,
				Message: "daily limit reached",
			},
			wantMsg: "budget: daily limit reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same error type", NewBudgetExceededError("yelp", "search", "cap"), ErrBudgetExceeded, true},
		{"wrapped same type", fmt.Errorf("call: %w", NewUpstreamError("yelp", "search", nil)), ErrUpstream, true},
		{"different error type", NewBudgetExceededError("yelp", "search", "cap"), ErrUpstream, false},
		{"not a domain error", ErrNotFound, errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestConstructors_AttachDetails(t *testing.T) {
	t.Run("invalid source", func(t *testing.T) {
		err := NewInvalidSourceError("bogus", []string{"mock"})
		assert.True(t, IsInvalidSourceError(err))
		assert.Equal(t, "bogus", err.Details["source"])
		assert.Equal(t, []string{"mock"}, err.Details["available_sources"])
	})

	t.Run("not found", func(t *testing.T) {
		err := NewNotFoundError("foursquare", "abc")
		assert.True(t, IsNotFoundError(err))
		assert.Equal(t, "abc", err.Details["id"])
	})

	t.Run("constructors do not share sentinel details", func(t *testing.T) {
		_ = NewBudgetExceededError("yelp", "search", "cap")
		assert.Empty(t, ErrBudgetExceeded.Details)
	})
}

func TestTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"configuration", NewConfigurationError("yelp", "missing key"), IsConfigurationError, true},
		{"invalid source", ErrInvalidSource, IsInvalidSourceError, true},
		{"budget", ErrBudgetExceeded, IsBudgetError, true},
		{"rate limit", ErrRateLimited, IsRateLimitError, true},
		{"upstream wrapped", fmt.Errorf("x: %w", ErrUpstream), IsUpstreamError, true},
		{"normalization", NewNormalizationError("yelp", "missing id", nil), IsNormalizationError, true},
		{"not found", ErrNotFound, IsNotFoundError, true},
		{"validation", ErrInvalidInput, IsValidationError, true},
		{"internal", WrapInternal("x", nil), IsInternalError, true},
		{"budget is not upstream", ErrBudgetExceeded, IsUpstreamError, false},
		{"regular error", errors.New("regular"), IsBudgetError, false},
		{"nil error", nil, IsNotFoundError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestIsFatalAndRecoverable(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		fatal       bool
		recoverable bool
	}{
		{"configuration", ErrConfiguration, true, false},
		{"invalid source", ErrInvalidSource, true, false},
		{"validation", ErrInvalidInput, true, false},
		{"budget", ErrBudgetExceeded, false, true},
		{"rate limit", ErrRateLimited, false, true},
		{"upstream", ErrUpstream, false, true},
		{"normalization", ErrNormalization, false, true},
		{"plain error", errors.New("timeout"), false, true},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeBudget, GetErrorType(ErrBudgetExceeded))
	assert.Equal(t, ErrorTypeUpstream, GetErrorType(fmt.Errorf("w: %w", ErrUpstream)))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("regular")))
}

func TestGetErrorDetails(t *testing.T) {
	err := NewUpstreamError("google_places", "details", errors.New("502"))

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "google_places", details["provider"])
	assert.Equal(t, "details", details["operation"])

	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}

func TestWrapError(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := WrapError(ErrorTypeInternal, "wrapped message", baseErr)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Equal(t, "wrapped message", domainErr.Message)
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}
