package views

import (
	"sort"
	"strings"
	"time"

	"taskdash/internal/derive"
)

// Query filters, sorts and paginates tasks. The input slice is not modified.
// Out-of-range pages clamp to the nearest valid page.
func Query(tasks []derive.DerivedTask, q QueryState) Result {
	matched := FilterTasks(tasks, q)
	SortTasks(matched, q.Sort)

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(matched)
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	page := ClampPage(q.Page, totalPages)

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return Result{
		Page:       matched[start:end],
		Total:      total,
		TotalPages: totalPages,
		PageNumber: page,
	}
}

// ClampPage limits page to [1, totalPages].
func ClampPage(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// FilterTasks returns a new slice holding the tasks matching every filter in q.
func FilterTasks(tasks []derive.DerivedTask, q QueryState) []derive.DerivedTask {
	term := strings.ToLower(strings.TrimSpace(q.Term))
	from, to := dayRange(q.From, q.To)

	result := make([]derive.DerivedTask, 0, len(tasks))
	for i := range tasks {
		if matches(&tasks[i], q, term, from, to) {
			result = append(result, tasks[i])
		}
	}
	return result
}

func matches(t *derive.DerivedTask, q QueryState, term string, from, to *time.Time) bool {
	if term != "" && !strings.Contains(searchText(t), term) {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Priority != "" && t.Priority != q.Priority {
		return false
	}
	if q.Assignee != "" && !strings.EqualFold(strings.TrimSpace(t.Assignee), strings.TrimSpace(q.Assignee)) {
		return false
	}
	if from != nil || to != nil {
		if t.DueDate == nil {
			return false
		}
		if from != nil && t.DueDate.Before(*from) {
			return false
		}
		if to != nil && t.DueDate.After(*to) {
			return false
		}
	}
	return true
}

// searchText is the lower-cased haystack for free-text search.
func searchText(t *derive.DerivedTask) string {
	return strings.ToLower(strings.Join([]string{
		t.Title, t.Description, t.Assignee, string(t.Status), string(t.Priority),
	}, " "))
}

// dayRange widens the bounds to [from 00:00:00, to 23:59:59.999999999].
func dayRange(from, to *time.Time) (*time.Time, *time.Time) {
	var start, end *time.Time
	if from != nil {
		s := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
		start = &s
	}
	if to != nil {
		e := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, int(time.Second-1), to.Location())
		end = &e
	}
	return start, end
}

// SortTasks orders tasks in place by key. The sort is stable and SortNone
// leaves the order unchanged. Tasks without a due date sort last in both
// due orders.
func SortTasks(tasks []derive.DerivedTask, key SortKey) {
	less := lessFunc(key)
	if less == nil {
		return
	}
	sort.SliceStable(tasks, func(i, j int) bool { return less(&tasks[i], &tasks[j]) })
}

func lessFunc(key SortKey) func(a, b *derive.DerivedTask) bool {
	switch key {
	case SortDueAsc:
		return func(a, b *derive.DerivedTask) bool { return compareDue(a.DueDate, b.DueDate, false) < 0 }
	case SortDueDesc:
		return func(a, b *derive.DerivedTask) bool { return compareDue(a.DueDate, b.DueDate, true) < 0 }
	case SortPriority:
		return func(a, b *derive.DerivedTask) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case SortStatus:
		return func(a, b *derive.DerivedTask) bool { return a.Status.Rank() < b.Status.Rank() }
	case SortTitle:
		return func(a, b *derive.DerivedTask) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	}
	return nil
}

// compareDue compares two due dates; nil values sort last
func compareDue(a, b *time.Time, desc bool) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return 1
	}
	if b == nil {
		return -1
	}
	cmp := 0
	if a.Before(*b) {
		cmp = -1
	} else if a.After(*b) {
		cmp = 1
	}
	if desc {
		return -cmp
	}
	return cmp
}
