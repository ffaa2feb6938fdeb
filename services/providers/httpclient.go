package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/upb/market-intel/services"
	"go.uber.org/zap"
)

const maxErrorBody = 512

// HTTPClient issues authenticated JSON GETs against one provider API.
// Every failure is an upstream DomainError wrapping a ProviderError.
type HTTPClient struct {
	provider   string
	baseURL    string
	header     http.Header
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a client with a fixed per-request timeout
func NewHTTPClient(provider string, cfg ProviderConfig, header http.Header, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Accept", "application/json")

	return &HTTPClient{
		provider: provider,
		baseURL:  cfg.BaseURL,
		header:   header,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// GetJSON performs GET baseURL+path?query and decodes the body into out
func (c *HTTPClient) GetJSON(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.fail(operation, NewProviderError(c.provider, "REQUEST_ERROR", "failed to create request", 0, false, err))
	}
	for k, v := range c.header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := "HTTP_ERROR"
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			code = "TIMEOUT"
		}
		return c.fail(operation, NewProviderError(c.provider, code, "HTTP request failed", 0, true, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(operation, NewProviderError(c.provider, "READ_ERROR", "failed to read response", resp.StatusCode, true, err))
	}

	c.logger.Debug("provider response",
		zap.String("provider", c.provider),
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return c.fail(operation, statusError(c.provider, resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return c.fail(operation, NewProviderError(c.provider, "UNMARSHAL_ERROR", "failed to decode response", resp.StatusCode, false, err))
	}
	return nil
}

func (c *HTTPClient) fail(operation string, provErr *ProviderError) error {
	return services.NewUpstreamError(c.provider, operation, provErr).
		WithDetail("code", provErr.Code).
		WithDetail("status", provErr.StatusCode)
}

func statusError(provider string, status int, body []byte) *ProviderError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	cause := errors.New(string(body))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(provider, "UNAUTHORIZED", "credentials rejected", status, false, cause)
	case status == http.StatusNotFound:
		return NewProviderError(provider, "NOT_FOUND", "resource not found", status, false, cause)
	case status == http.StatusTooManyRequests:
		return NewProviderError(provider, "RATE_LIMITED", "provider rate limit", status, true, cause)
	case status >= 500:
		return NewProviderError(provider, "SERVER_ERROR", fmt.Sprintf("provider returned %d", status), status, true, cause)
	default:
		return NewProviderError(provider, "BAD_REQUEST", fmt.Sprintf("provider returned %d", status), status, false, cause)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
