// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/jeranaias/sentinel-tui/internal/logging"
)

const (
	// DefaultRateLimit is the sustained outbound request rate per second.
	DefaultRateLimit = 10

	// DefaultBurst allows one full console refresh plus an action at once.
	DefaultBurst = 8

	// DefaultBreakerFailures is the consecutive-failure count that opens the circuit.
	DefaultBreakerFailures = 5

	// DefaultBreakerCooldown is how long an open circuit rejects calls.
	DefaultBreakerCooldown = 30 * time.Second

	// MaxResponseSize bounds every response body.
	MaxResponseSize = 4 * 1024 * 1024

	// RequestIDHeader carries a per-call uuid for correlating with backend logs.
	RequestIDHeader = "X-Request-ID"
)

// Options configures a Client. Zero values select the defaults above.
type Options struct {
	BaseURL         string
	RateLimit       float64
	Burst           int
	BreakerFailures uint32
	BreakerCooldown time.Duration
	UserAgent       string

	// HTTPClient overrides the transport. It must not set a Timeout: access
	// requests wait for the backend indefinitely and polls bound themselves
	// through their context.
	HTTPClient *http.Client
}

// Client talks to the backend. It is safe for concurrent use; copies made by
// WithToken share the limiter, the circuit breaker and the transport.
type Client struct {
	baseURL   string
	userAgent string
	token     string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[*rawResponse]
}

// rawResponse is a fully read response body.
type rawResponse struct {
	status int
	body   []byte
}

// NewClient creates a Client for the backend at opts.BaseURL.
func NewClient(opts Options) *Client {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = DefaultBreakerFailures
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = DefaultBreakerCooldown
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sentinel"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Cancellation is the caller's doing, not the backend's.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		http:      opts.HTTPClient,
		limiter:   rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		breaker:   breaker,
	}
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends one request and decodes a 2xx body into out. Non-2xx responses
// become *APIError; classify turns the status into a sentinel.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, classify func(status int) error) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	requestID := uuid.NewString()
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*rawResponse, error) {
		return c.roundTrip(ctx, method, path, payload, requestID)
	})

	ev := logging.Debug().Str("request_id", requestID).Str("method", method).Str("path", path).
		Dur("elapsed", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("backend call failed")
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, ErrBackendUnavailable):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	ev.Int("status", resp.status).Msg("backend call")

	if resp.status < 200 || resp.status > 299 {
		return c.errorFor(resp, classify)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// roundTrip performs the HTTP exchange. Transport errors and 5xx responses
// are returned as errors so the breaker counts them; everything else is a
// backend answer.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, requestID string) (*rawResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	raw := &rawResponse{status: resp.StatusCode, body: data}
	if resp.StatusCode >= 500 {
		return raw, c.errorFor(raw, func(int) error { return ErrBackendUnavailable })
	}
	return raw, nil
}

// readResponse reads at most MaxResponseSize bytes.
func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}

// errorBody is the backend's error envelope. File access denials reuse the
// verdict fields.
type errorBody struct {
	Message   string    `json:"message"`
	Error     string    `json:"error"`
	RiskLevel RiskLevel `json:"risk_level"`
}

func (c *Client) errorFor(resp *rawResponse, classify func(status int) error) *APIError {
	apiErr := &APIError{Status: resp.status}

	var eb errorBody
	if err := json.Unmarshal(resp.body, &eb); err == nil {
		apiErr.Message = eb.Message
		if apiErr.Message == "" {
			apiErr.Message = eb.Error
		}
		apiErr.RiskLevel = eb.RiskLevel
	}
	if classify != nil {
		apiErr.kind = classify(resp.status)
	}
	return apiErr
}

// authorized classifies responses to calls that carry a token.
func authorized(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status >= 500:
		return ErrBackendUnavailable
	default:
		return nil
	}
}
