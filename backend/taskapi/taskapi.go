// Package taskapi is the HTTP client for the task service.
//
// Every call resyncs the session before attaching the bearer credential,
// runs under a hard timeout, and maps failures onto the backend error kinds.
// A 401/403 on an authenticated call clears the session.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskdash/backend"
	"taskdash/internal/ratelimit"
	"taskdash/internal/utils"
)

const (
	// DefaultTimeout is applied when Config.Timeout is zero.
	DefaultTimeout = 15 * time.Second

	sessionExpiredMessage = "Session expired or unauthorized. Please login again."
	invalidCredentials    = "Invalid credentials"
	minPasswordLength     = 8
)

// Session is the part of session state the client depends on.
type Session interface {
	Credential() string
	Clear() error
}

// Config holds task API client configuration
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int           // retries after a 429
	RetryBaseDelay time.Duration // first 429 backoff
	UserAgent      string
}

// Client implements backend.TaskService and backend.AuthService over HTTP.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	session   Session
	inflight  *InFlight
	http      *ratelimit.Client
	stats     *ratelimit.Stats
	rawHTTP   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.rawHTTP = hc }
}

// WithInFlight shares a busy counter with the caller.
func WithInFlight(f *InFlight) Option {
	return func(c *Client) { c.inflight = f }
}

// WithRateLimitStats records 429 answers into stats.
func WithRateLimitStats(stats *ratelimit.Stats) Option {
	return func(c *Client) { c.stats = stats }
}

// New creates a task API client.
func New(cfg Config, sess Session, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("task API base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid task API base URL %q: %w", cfg.BaseURL, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}

	c := &Client{
		baseURL:   base,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		session:   sess,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.userAgent == "" {
		c.userAgent = "taskdash"
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.inflight == nil {
		c.inflight = NewInFlight(nil)
	}
	c.http = ratelimit.NewClient(c.rawHTTP, ratelimit.Config{
		MaxRetries:   cfg.MaxRetries,
		BaseDelay:    cfg.RetryBaseDelay,
		EnableJitter: true,
		Stats:        c.stats,
		Service:      "task API",
	})
	return c, nil
}

// InFlight returns the client's busy counter.
func (c *Client) InFlight() *InFlight { return c.inflight }

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// =============================================================================
// Core call path
// =============================================================================

// Call performs an authenticated request. body is JSON-encoded when non-nil;
// a non-empty 2xx response is decoded into out when out is non-nil.
func (c *Client) Call(ctx context.Context, method, path string, body, out interface{}) error {
	return c.do(ctx, method, path, body, out, false)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, anonymous bool) error {
	op := method + " " + path

	c.inflight.Begin()
	defer c.inflight.Done()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &backend.Error{Kind: backend.KindRequestFailed, Op: op, Message: "failed to encode request", Err: err}
		}
	}

	credential := ""
	if !anonymous {
		credential = c.session.Credential()
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := backend.GenerateID()
	utils.Debugf("taskapi: %s (request %s)", op, requestID)

	resp, err := c.http.Do(callCtx, func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if credential != "" {
			req.Header.Set("Authorization", "Bearer "+credential)
		}
		return req, nil
	})
	if err != nil {
		return c.transportError(ctx, callCtx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, callCtx, op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if anonymous {
			return &backend.Error{Kind: backend.KindRequestFailed, Op: op, Status: resp.StatusCode, Message: invalidCredentials}
		}
		if err := c.session.Clear(); err != nil {
			utils.Warnf("failed to clear session after %d: %v", resp.StatusCode, err)
		}
		return &backend.Error{Kind: backend.KindSessionExpired, Op: op, Status: resp.StatusCode, Message: sessionExpiredMessage}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(data)
		var cause error
		if resp.StatusCode == http.StatusTooManyRequests {
			cause = &ratelimit.RateLimitError{Service: c.http.Service(), Attempts: c.http.Attempts()}
			if c.stats != nil {
				utils.Debugf("taskapi: %s still rate limited (%d 429s so far, last at %s)",
					op, c.stats.RateLimitCount(), c.stats.LastRateLimitTime().Format(time.Kitchen))
			}
			if msg == "" {
				msg = cause.Error()
			}
		}
		if msg == "" {
			msg = fmt.Sprintf("Request failed (%d)", resp.StatusCode)
		}
		if anonymous && path == "/auth/login" && resp.StatusCode < 500 {
			msg = invalidCredentials
		}
		return &backend.Error{Kind: backend.KindRequestFailed, Op: op, Status: resp.StatusCode, Message: msg, Err: cause}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &backend.Error{Kind: backend.KindRequestFailed, Op: op, Status: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

// transportError classifies a failure that produced no usable response.
func (c *Client) transportError(parent, callCtx context.Context, op string, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}
	var netErr net.Error
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &backend.Error{
			Kind:    backend.KindTimeout,
			Op:      op,
			Message: fmt.Sprintf("no response within %s", c.timeout),
			Err:     err,
		}
	}
	return &backend.Error{Kind: backend.KindRequestFailed, Op: op, Message: err.Error(), Err: err}
}

// errorMessage extracts {error} or {message} from a JSON body, falling back
// to the trimmed body text.
func errorMessage(data []byte) string {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return ""
	}
	var structured struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &structured); err == nil {
		var s string
		if len(structured.Error) > 0 && json.Unmarshal(structured.Error, &s) == nil && s != "" {
			return s
		}
		if structured.Message != "" {
			return structured.Message
		}
	}
	return text
}

// =============================================================================
// Task Operations
// =============================================================================

// ListTasks fetches every task visible to the session.
func (c *Client) ListTasks(ctx context.Context) ([]backend.Task, error) {
	var tasks []backend.Task
	if err := c.Call(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []backend.Task{}
	}
	return tasks, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in backend.TaskInput) (*backend.Task, error) {
	var task backend.Task
	if err := c.Call(ctx, http.MethodPost, "/api/tasks", taskBody(in), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask replaces the writable fields of task id.
func (c *Client) UpdateTask(ctx context.Context, id string, in backend.TaskInput) (*backend.Task, error) {
	var task backend.Task
	if err := c.Call(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), taskBody(in), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes task id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.Call(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

func taskBody(in backend.TaskInput) map[string]interface{} {
	body := map[string]interface{}{
		"title":       in.Title,
		"description": in.Description,
		"status":      string(in.Status),
		"priority":    string(in.Priority),
		"dueDate":     nil,
		"assignee":    nil,
	}
	if in.DueDate != nil {
		body["dueDate"] = in.DueDate.UTC().Format(time.RFC3339)
	}
	if in.Assignee != "" {
		body["assignee"] = in.Assignee
	}
	return body
}

// =============================================================================
// Auth Operations
// =============================================================================

// Login exchanges a username and password for a credential. It does not
// touch the session; callers store the result.
func (c *Client) Login(ctx context.Context, username, password string) (*backend.AuthResult, error) {
	body := map[string]string{"username": strings.TrimSpace(username), "password": password}
	return c.authenticate(ctx, "/auth/login", body)
}

// Signup registers a user. Passwords shorter than 8 characters are rejected
// without a request.
func (c *Client) Signup(ctx context.Context, req backend.SignupRequest) (*backend.AuthResult, error) {
	if len([]rune(req.Password)) < minPasswordLength {
		return nil, backend.NewValidationError("password must be at least %d characters", minPasswordLength)
	}
	return c.authenticate(ctx, "/auth/signup", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*backend.AuthResult, error) {
	var res backend.AuthResult
	if err := c.do(ctx, http.MethodPost, path, body, &res, true); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &backend.Error{Kind: backend.KindRequestFailed, Op: http.MethodPost + " " + path, Message: invalidCredentials}
	}
	return &res, nil
}

// Compile-time interface checks
var (
	_ backend.TaskService = (*Client)(nil)
	_ backend.AuthService = (*Client)(nil)
)
