package backend

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task represents a task as returned by the task API.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"` // often absent; see derive.CreatedAtFromID
}

// Status represents the workflow state of a task
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusDone}

// Priority represents task urgency
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Rank orders statuses OPEN < IN_PROGRESS < DONE. Unknown values sort last.
func (s Status) Rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusInProgress:
		return 1
	case StatusDone:
		return 2
	}
	return 3
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool { return s.Rank() < 3 }

// Next returns the status a one-step advance moves to. DONE stays DONE.
func (s Status) Next() Status {
	switch s {
	case StatusOpen:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	}
	return s
}

// CanTransition reports whether the API accepts a move from s to next.
func (s Status) CanTransition(next Status) bool {
	return s == next || s.Next() == next
}

// Rank orders priorities HIGH < MEDIUM < LOW. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool { return p.Rank() < 3 }

// ParseStatus trims and upper-cases s. Empty input yields OPEN.
func ParseStatus(s string) Status {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return StatusOpen
	}
	return Status(s)
}

// ParsePriority trims and upper-cases p. Empty input yields MEDIUM.
func ParsePriority(p string) Priority {
	p = strings.ToUpper(strings.TrimSpace(p))
	if p == "" {
		return PriorityMedium
	}
	return Priority(p)
}

// UnmarshalJSON accepts dueDate and createdAt as ISO-8601 strings, plain
// dates, or epoch milliseconds. Unparseable timestamps decode as absent.
func (t *Task) UnmarshalJSON(data []byte) error {
	type alias Task
	aux := struct {
		*alias
		DueDate   json.RawMessage `json:"dueDate"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.DueDate = parseTimestamp(aux.DueDate)
	t.CreatedAt = parseTimestamp(aux.CreatedAt)
	return nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimestamp(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil
		}
		ts := time.UnixMilli(ms)
		return &ts
	}

	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &ts
	}
	// Zone-less forms are read as local time.
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &ts
		}
	}
	return nil
}

// TaskInput carries the writable fields of a task for create and update.
type TaskInput struct {
	Title       string     `validate:"required"`
	Description string     `validate:"max=4000"`
	Status      Status     `validate:"required,oneof=OPEN IN_PROGRESS DONE"`
	Priority    Priority   `validate:"required,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time `validate:"omitempty,notpast"`
	Assignee    string     `validate:"max=120"`
}

// Normalize trims text fields and upper-cases status and priority,
// filling the OPEN/MEDIUM defaults.
func (in TaskInput) Normalize() TaskInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Assignee = strings.TrimSpace(in.Assignee)
	in.Status = ParseStatus(string(in.Status))
	in.Priority = ParsePriority(string(in.Priority))
	return in
}

// InputFromTask copies the writable fields of t.
func InputFromTask(t Task) TaskInput {
	return TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		Assignee:    t.Assignee,
	}
}

// Profile is the user record returned alongside a credential.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// DisplayName returns the most human-readable name available.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}

// AuthResult is the body of a successful login or signup.
type AuthResult struct {
	Token string   `json:"token"`
	Roles []string `json:"roles"`
	User  *Profile `json:"user"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Confirm  string `json:"-" validate:"eqfield=Password"`
}

// TaskService defines the task endpoints of the remote API
type TaskService interface {
	ListTasks(ctx context.Context) ([]Task, error)
	CreateTask(ctx context.Context, in TaskInput) (*Task, error)
	UpdateTask(ctx context.Context, id string, in TaskInput) (*Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// AuthService defines the anonymous authentication endpoints
type AuthService interface {
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	Signup(ctx context.Context, req SignupRequest) (*AuthResult, error)
}

// GenerateID generates a unique identifier using UUID v4.
// Used to tag outbound requests for correlation in server logs.
func GenerateID() string {
	return uuid.New().String()
}
