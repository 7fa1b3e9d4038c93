package client

import (
	"sort"
	"strings"
	"time"

	"taskify/internal/models"
)

// FilterAll disables a status or category filter.
const FilterAll = "all"

type SortKey string

const (
	SortDate     SortKey = "date"
	SortStatus   SortKey = "status"
	SortPriority SortKey = "priority"
	SortCategory SortKey = "category"
)

func (k SortKey) IsValid() bool {
	switch k {
	case SortDate, SortStatus, SortPriority, SortCategory:
		return true
	}
	return false
}

// Query is the view's current filter, search and sort selection. Empty
// filters behave like FilterAll and an empty sort key sorts by date.
type Query struct {
	Status   string
	Category string
	Search   string
	Sort     SortKey
}

// TaskQuery derives the visible list from the full one.
type TaskQuery interface {
	Apply(tasks []models.Task, q Query) []models.Task
}

// LocalQuery filters and sorts in memory. The input slice is never modified.
type LocalQuery struct{}

func (LocalQuery) Apply(tasks []models.Task, q Query) []models.Task {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !matchesFilter(q.Status, string(t.Status)) {
			continue
		}
		if !matchesFilter(q.Category, categoryOf(t)) {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		out = append(out, t)
	}

	less := lessFor(q.Sort)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func matchesFilter(filter, value string) bool {
	return filter == "" || filter == FilterAll || filter == value
}

func matchesSearch(t models.Task, needle string) bool {
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// categoryOf reports the category the way the category picker lists it.
func categoryOf(t models.Task) string {
	if t.Category == "" {
		return models.DefaultCategory
	}
	return t.Category
}

func lessFor(key SortKey) func(a, b models.Task) bool {
	switch key {
	case SortStatus:
		return func(a, b models.Task) bool { return a.Status < b.Status }
	case SortPriority:
		return func(a, b models.Task) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case SortCategory:
		return func(a, b models.Task) bool { return a.Category < b.Category }
	default:
		return func(a, b models.Task) bool { return sortDate(a).Before(sortDate(b)) }
	}
}

func sortDate(t models.Task) time.Time {
	if t.DueDate != nil {
		return *t.DueDate
	}
	return t.CreatedAt
}

// Categories lists the distinct categories in first-seen order.
func Categories(tasks []models.Task) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		c := categoryOf(t)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
