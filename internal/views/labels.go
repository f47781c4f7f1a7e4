package views

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"taskdash/backend"
)

// EstimateSuffix marks values that are heuristics rather than recorded data.
const EstimateSuffix = " (est.)"

// humanize turns an enum value such as IN_PROGRESS into "In Progress".
func humanize(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), "_", " ")
	return cases.Title(language.English).String(s)
}

// StatusLabel returns the display form of s.
func StatusLabel(s backend.Status) string { return humanize(string(s)) }

// PriorityLabel returns the display form of p.
func PriorityLabel(p backend.Priority) string { return humanize(string(p)) }

// FieldLabel returns the column header for a field name.
func FieldLabel(name string) string {
	switch name {
	case "id":
		return "ID"
	case "due_date":
		return "Due"
	case "created", "complexity", "effort":
		return humanize(name) + EstimateSuffix
	case "escalated":
		return "Priority" + EstimateSuffix
	}
	return humanize(name)
}
