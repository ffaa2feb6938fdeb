package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/market-intel/services"
	"github.com/upb/market-intel/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "not found error",
			err:            services.NewNotFoundError("yelp", "abc"),
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "validation error",
			err:            services.ErrInvalidInput,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "invalid source error",
			err:            services.NewInvalidSourceError("bogus", []string{"mock", "auto"}),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "rate limit error",
			err:            services.ErrRateLimited,
			expectedStatus: http.StatusTooManyRequests,
			expectedError:  "rate_limit_exceeded",
		},
		{
			name:           "budget error",
			err:            services.ErrBudgetExceeded,
			expectedStatus: http.StatusTooManyRequests,
			expectedError:  "rate_limit_exceeded",
		},
		{
			name:           "upstream error",
			err:            services.NewUpstreamError("yelp", "search", errors.New("502")),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "bad_gateway",
		},
		{
			name:           "configuration error",
			err:            services.ErrMockUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "service_unavailable",
		},
		{
			name:           "internal error",
			err:            services.WrapInternal("persist failed", errors.New("disk full")),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
		{
			name:           "unknown error",
			err:            errors.New("unknown error"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			err := json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedError, response.Error)
		})
	}
}

func TestHandleServiceError_InvalidSourceDetails(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, services.NewInvalidSourceError("bogus", []string{"yelp", "mock", "auto"}), zap.NewNop())

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "bogus", response.Details["source"])
	assert.Equal(t, []interface{}{"yelp", "mock", "auto"}, response.Details["available_sources"])
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, nil, zap.NewNop())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("structured validation error", func(t *testing.T) {
		w := httptest.NewRecorder()

		HandleValidationError(w, &utils.ValidationError{
			Message: "Validation failed",
			Fields:  map[string]string{"limit": "limit must be an integer"},
		}, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Validation failed", response.Message)
		assert.Equal(t, "limit must be an integer", response.Details["limit"])
	})

	t.Run("generic error", func(t *testing.T) {
		w := httptest.NewRecorder()

		HandleValidationError(w, errors.New("bad query"), logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "bad query", response.Message)
	})
}
