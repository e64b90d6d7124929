package base

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"paybridge/internal/provider"

	"github.com/rs/zerolog/log"
)

const maxResponseBytes = 4 << 20

// HTTPClient provides common HTTP functionality for REST based rails
type HTTPClient struct {
	client  *http.Client
	baseURL string
	name    provider.ProviderType
	headers map[string]string
}

// NewHTTPClient creates a new HTTP client with default settings
func NewHTTPClient(p provider.ProviderType, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		name:    p,
		headers: map[string]string{},
	}
}

// SetBaseURL sets the base URL for all requests
func (c *HTTPClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetHeader adds a header sent with every request (auth tokens, API keys).
func (c *HTTPClient) SetHeader(key, value string) {
	c.headers[key] = value
}

// PostJSON makes a POST request with JSON payload
func (c *HTTPClient) PostJSON(ctx context.Context, endpoint string, payload any) (*HTTPResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, provider.NewError(c.name, provider.ErrInvalidRequest, "marshal payload: %v", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, body)
}

// Get makes a GET request
func (c *HTTPClient) Get(ctx context.Context, endpoint string) (*HTTPResponse, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte) (*HTTPResponse, error) {
	url := c.baseURL + endpoint
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, provider.NewError(c.name, provider.ErrInvalidRequest, "build request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("PayBridge/%s", c.name))
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	// never log bodies or auth headers
	log.Debug().
		Str("provider", string(c.name)).
		Str("method", method).
		Str("url", url).
		Msg("making HTTP request")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().
			Str("provider", string(c.name)).
			Str("url", url).
			Err(err).
			Msg("HTTP request failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, provider.FromContext(c.name, ctxErr)
		}
		return nil, provider.Transient(c.name, provider.ErrProviderDown, err)
	}

	return c.handleResponse(resp)
}

// handleResponse reads the body and turns non-2xx statuses into ProviderErrors.
func (c *HTTPClient) handleResponse(resp *http.Response) (*HTTPResponse, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, provider.Transient(c.name, provider.ErrProviderDown, fmt.Errorf("read response body: %w", err))
	}

	httpResp := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	log.Debug().
		Str("provider", string(c.name)).
		Int("status_code", resp.StatusCode).
		Int("body_length", len(body)).
		Msg("received HTTP response")

	if !httpResp.IsSuccess() {
		return httpResp, httpResp.Err(c.name)
	}
	return httpResp, nil
}

// HTTPResponse represents an HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// IsSuccess checks if the response indicates success (2xx status code)
func (r *HTTPResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err classifies a failed response. 429 and 5xx are retryable, other 4xx are not.
func (r *HTTPResponse) Err(p provider.ProviderType) error {
	pe := &provider.ProviderError{
		Provider: p,
		Message:  fmt.Sprintf("unexpected HTTP status %d", r.StatusCode),
		Raw:      r.Body,
	}
	switch {
	case r.StatusCode == http.StatusTooManyRequests:
		pe.Code, pe.Retryable = provider.ErrRateLimited, true
	case r.StatusCode >= 500:
		pe.Code, pe.Retryable = provider.ErrProviderDown, true
	case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
		pe.Code = provider.ErrAuthenticationFailed
	default:
		pe.Code = provider.ErrProviderRejected
	}
	return pe
}

// Decode unmarshals the response body into the provided struct
func (r *HTTPResponse) Decode(p provider.ProviderType, v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &provider.ProviderError{Provider: p, Code: provider.ErrParseFailed, Message: "decode response", Raw: r.Body, Err: err}
	}
	return nil
}
