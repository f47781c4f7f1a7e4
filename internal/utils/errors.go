package utils

import (
	"errors"
	"fmt"
	"strings"

	"taskdash/backend"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrNotLoggedIn is returned by commands that need a session.
func ErrNotLoggedIn() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("not logged in"),
		Suggestion: "Run 'taskdash login' first",
	}
}

// ErrTaskNotFound returns an error for when a task id is unknown.
func ErrTaskNotFound(id string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task not found: %s", id),
		Suggestion: "Use 'taskdash list' to see task ids",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use YYYY-MM-DD, today, tomorrow, yesterday or a relative offset like +3d, -2w, +1m",
	}
}

// ErrInvalidStatus returns an error for an invalid status with valid options.
func ErrInvalidStatus(status string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid status: %s", status),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// ErrInvalidPriority returns an error for an invalid priority with valid options.
func ErrInvalidPriority(priority string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid priority: %s", priority),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// WithAPISuggestion attaches a suggestion matching the kind of an API failure.
// Errors that already carry a suggestion, or are not API errors, are returned unchanged.
func WithAPISuggestion(err error) error {
	if err == nil {
		return nil
	}
	var ws *ErrorWithSuggestion
	if errors.As(err, &ws) {
		return err
	}
	kind, ok := backend.KindOf(err)
	if !ok {
		return err
	}
	switch kind {
	case backend.KindSessionExpired:
		return WrapWithSuggestion(err, "Run 'taskdash login' to start a new session")
	case backend.KindTimeout:
		return WrapWithSuggestion(err, "The server may be slow or unreachable. Try again, or raise api.timeout in the config")
	case backend.KindRequestFailed:
		return WrapWithSuggestion(err, getSmartSuggestion(err.Error()))
	}
	return err
}

// getSmartSuggestion returns a context-aware suggestion based on the error text.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check api.base_url and your DNS settings"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the task API server is running and accessible"
	}

	if strings.Contains(lowerReason, "invalid credentials") {
		return "Verify your username and password"
	}

	return "Check the message above; run with --verbose for request details"
}
