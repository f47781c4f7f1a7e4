// Package ratelimit retries HTTP requests that the task API answers with 429.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Config holds configuration for the retrying client.
type Config struct {
	// MaxRetries is the number of extra attempts after a 429. Zero disables retries.
	MaxRetries int

	// BaseDelay is the initial delay before the first retry.
	// Default: 500ms
	BaseDelay time.Duration

	// MaxDelay caps a single wait, including Retry-After values.
	// Default: 8s
	MaxDelay time.Duration

	// EnableJitter scales each computed delay by a random factor in [0.8, 1.2].
	EnableJitter bool

	// Stats is an optional tracker for rate limit events.
	Stats *Stats

	// Service names the remote in error messages.
	Service string
}

// RequestFunc builds a fresh request for each attempt. Bodies must not be
// shared between attempts.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Client sends requests and waits out 429 answers with exponential backoff.
type Client struct {
	httpClient   *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	enableJitter bool
	stats        *Stats
	service      string
}

// NewClient creates a retrying client on top of httpClient. A nil httpClient
// uses a zero http.Client; deadlines come from the request context.
func NewClient(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 8 * time.Second
	}

	return &Client{
		httpClient:   httpClient,
		maxRetries:   maxRetries,
		baseDelay:    baseDelay,
		maxDelay:     maxDelay,
		enableJitter: cfg.EnableJitter,
		stats:        cfg.Stats,
		service:      cfg.Service,
	}
}

// Do performs the request built by build, retrying on 429 until MaxRetries is
// exhausted or ctx is done. Any other response is returned to the caller as is.
func (c *Client) Do(ctx context.Context, build RequestFunc) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if c.stats != nil {
			c.stats.RecordRateLimit()
		}

		if attempt >= c.maxRetries {
			// Hand the final 429 back so the caller can surface the server's message.
			return resp, nil
		}
		_ = resp.Body.Close()

		delay := c.calculateBackoff(attempt, ParseRetryAfter(resp.Header.Get("Retry-After")))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// calculateBackoff computes the wait before retry number attempt+1.
func (c *Client) calculateBackoff(attempt int, retryAfter *time.Duration) time.Duration {
	if retryAfter != nil {
		if *retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return *retryAfter
	}

	delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > c.maxDelay {
		delay = c.maxDelay
	}

	if c.enableJitter {
		jitterFactor := 0.8 + rand.Float64()*0.4
		delay = time.Duration(float64(delay) * jitterFactor)
	}

	return delay
}

// RateLimitError reports that the server kept answering 429.
type RateLimitError struct {
	Service  string
	Attempts int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	service := e.Service
	if service == "" {
		service = "API"
	}
	return fmt.Sprintf("%s rate limit exceeded after %d attempts", service, e.Attempts)
}

// Attempts returns how many attempts a client with these settings makes at most.
func (c *Client) Attempts() int { return c.maxRetries + 1 }

// Service returns the configured service name.
func (c *Client) Service() string { return c.service }

// ParseRetryAfter reads a Retry-After value given either as delta seconds or
// as an HTTP-date. Dates in the past yield zero; anything else yields nil.
func ParseRetryAfter(value string) *time.Duration {
	var d time.Duration
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return nil
		}
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = max(time.Until(at), 0)
	} else {
		return nil
	}
	return &d
}

// Stats counts 429 answers across every client sharing it.
type Stats struct {
	count atomic.Int64
	last  atomic.Int64 // unix nanos
}

func NewStats() *Stats { return &Stats{} }

func (s *Stats) RecordRateLimit() {
	s.count.Add(1)
	s.last.Store(time.Now().UnixNano())
}

func (s *Stats) RateLimitCount() int64 { return s.count.Load() }

// LastRateLimitTime is zero until the first 429.
func (s *Stats) LastRateLimitTime() time.Time {
	if ns := s.last.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}
