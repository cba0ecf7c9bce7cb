package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Client is an HTTP client wrapper with logging and retry support
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
	baseURL    string
	headers    map[string]string
	maxRetries int
	backoff    time.Duration
}

// Config holds HTTP client configuration
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     zerolog.Logger
	Headers    map[string]string
	MaxRetries int
	// RetryBackoff is the delay before the first retry, doubled on each attempt.
	RetryBackoff time.Duration
}

// StatusError is returned by the JSON helpers for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// New creates a new HTTP client
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff == 0 {
		backoff = 250 * time.Millisecond
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:     cfg.Logger.With().Str("component", "http-client").Logger(),
		baseURL:    cfg.BaseURL,
		headers:    cfg.Headers,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
	}
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, withQuery(path, query), nil, headers)
}

// Post performs a POST request with JSON body
func (c *Client) Post(ctx context.Context, path string, body interface{}, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, headers)
}

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*Response, error) {
	var payload []byte
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = jsonBody
	}

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		resp, err := c.once(ctx, method, path, payload, headers)
		retryable := err != nil || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt >= c.maxRetries || ctx.Err() != nil {
			return resp, err
		}

		c.logger.Warn().
			Err(err).
			Str("method", method).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("HTTP request retrying")

		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return resp, err
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, headers map[string]string) (*Response, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set default headers
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	// Set client-level headers
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	// Set request-level headers
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	// Log request
	startTime := time.Now()
	c.logger.Debug().
		Str("method", method).
		Str("url", redact(url)).
		Msg("HTTP request started")

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("method", method).
			Str("url", redact(url)).
			Dur("duration", time.Since(startTime)).
			Msg("HTTP request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read response body
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Log response
	c.logger.Debug().
		Str("method", method).
		Str("url", redact(url)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("HTTP request completed")

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}, nil
}

// redact hides API keys passed as query parameters.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// GetJSON performs a GET request and unmarshals the response
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, headers map[string]string, dest interface{}) error {
	resp, err := c.Get(ctx, path, query, headers)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// PostJSON performs a POST request and unmarshals the response
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}, headers map[string]string, dest interface{}) error {
	resp, err := c.Post(ctx, path, body, headers)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	if dest != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, dest); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// SetHeader sets a default header for all requests
func (c *Client) SetHeader(key, value string) {
	if c.headers == nil {
		c.headers = make(map[string]string)
	}
	c.headers[key] = value
}

// IsSuccess checks if the response indicates success
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
