package views

import (
	"time"

	"taskdash/backend"
	"taskdash/internal/derive"
)

// DefaultDateFormat is the standard date format used throughout the views package
const DefaultDateFormat = "2006-01-02"

// DefaultPageSize is used when QueryState.PageSize is not positive.
const DefaultPageSize = 10

// SortKey selects the order of query results.
type SortKey string

const (
	SortNone     SortKey = ""
	SortDueAsc   SortKey = "due_asc"
	SortDueDesc  SortKey = "due_desc"
	SortPriority SortKey = "priority"
	SortStatus   SortKey = "status"
	SortTitle    SortKey = "title"
)

// SortKeys lists the sort orders in the order the TUI cycles through them.
var SortKeys = []SortKey{SortNone, SortDueAsc, SortDueDesc, SortPriority, SortStatus, SortTitle}

// ParseSortKey accepts a sort key name. Unknown names return false.
func ParseSortKey(s string) (SortKey, bool) {
	for _, k := range SortKeys {
		if string(k) == s {
			return k, true
		}
	}
	return SortNone, false
}

// QueryState is the transient search, filter, sort and page selection.
// Zero values mean "no constraint".
type QueryState struct {
	Term     string
	Status   backend.Status
	Priority backend.Priority
	Assignee string
	From     *time.Time // inclusive from the start of this day
	To       *time.Time // inclusive to the end of this day
	Sort     SortKey
	Page     int // 1-based
	PageSize int
}

// Result is one page of query output.
type Result struct {
	Page       []derive.DerivedTask
	Total      int // matches before pagination
	TotalPages int
	PageNumber int // the clamped page actually returned
}

// Field represents a column in a rendered view
type Field struct {
	Name     string `yaml:"name"`
	Width    int    `yaml:"width,omitempty"`
	Align    string `yaml:"align,omitempty"`  // left, center, right
	Format   string `yaml:"format,omitempty"` // format string for dates
	Truncate bool   `yaml:"truncate,omitempty"`
}

// View is a named column layout for task tables
type View struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Fields      []Field `yaml:"fields"`
}

// AvailableFields returns the list of valid field names
var AvailableFields = []string{
	"id",
	"title",
	"description",
	"status",
	"priority",
	"due_date",
	"assignee",
	"overdue",
	"created",
	"complexity",
	"effort",
	"escalated",
}

// DefaultView returns the built-in default view
func DefaultView() *View {
	return &View{
		Name:        "default",
		Description: "Standard task table",
		Fields: []Field{
			{Name: "id"},
			{Name: "title", Width: 40, Truncate: true},
			{Name: "status"},
			{Name: "priority"},
			{Name: "due_date"},
			{Name: "assignee"},
		},
	}
}

// AllView returns the built-in 'all' view including every derived field
func AllView() *View {
	return &View{
		Name:        "all",
		Description: "Every task field plus the derived estimates",
		Fields: []Field{
			{Name: "id"},
			{Name: "title", Width: 40, Truncate: true},
			{Name: "description", Width: 40, Truncate: true},
			{Name: "status"},
			{Name: "priority"},
			{Name: "escalated"},
			{Name: "due_date"},
			{Name: "assignee"},
			{Name: "overdue"},
			{Name: "created"},
			{Name: "complexity", Align: "right"},
			{Name: "effort", Align: "right"},
		},
	}
}
