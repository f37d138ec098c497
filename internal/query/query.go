// Package query filters, searches and sorts an in-memory task snapshot.
// Nothing here performs I/O and the input slice is never modified.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"domore/internal/dates"
	"domore/internal/models/task"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Filter string

const (
	FilterAll         Filter = "all"
	FilterPending     Filter = "pending"
	FilterCompleted   Filter = "completed"
	FilterOverdue     Filter = "overdue"
	FilterDueToday    Filter = "dueToday"
	FilterDueThisWeek Filter = "dueThisWeek"
)

type Sort string

const (
	SortCreatedDesc  Sort = "createdDesc"
	SortPriorityDesc Sort = "priorityDesc"
	SortDueDateAsc   Sort = "dueDateAsc"
	SortTitleAsc     Sort = "titleAsc"
)

var filterNames = map[string]Filter{
	"":            FilterAll,
	"all":         FilterAll,
	"pending":     FilterPending,
	"completed":   FilterCompleted,
	"overdue":     FilterOverdue,
	"duetoday":    FilterDueToday,
	"today":       FilterDueToday,
	"duethisweek": FilterDueThisWeek,
	"week":        FilterDueThisWeek,
}

var sortNames = map[string]Sort{
	"":             SortCreatedDesc,
	"created":      SortCreatedDesc,
	"createddesc":  SortCreatedDesc,
	"priority":     SortPriorityDesc,
	"prioritydesc": SortPriorityDesc,
	"due_date":     SortDueDateAsc,
	"duedate":      SortDueDateAsc,
	"duedateasc":   SortDueDateAsc,
	"title":        SortTitleAsc,
	"titleasc":     SortTitleAsc,
}

// ParseFilter accepts the canonical names and the short forms used by the
// dashboard ("today", "week").
func ParseFilter(s string) (Filter, error) {
	if f, ok := filterNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return FilterAll, fmt.Errorf("unknown filter %q", s)
}

func ParseSort(s string) (Sort, error) {
	if v, ok := sortNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return SortCreatedDesc, fmt.Errorf("unknown sort %q", s)
}

type Options struct {
	Filter Filter
	Sort   Sort
	// Text matches title or description, case-insensitively.
	Text string
	// Date, when set, replaces the status filter with "due on this day".
	Date *time.Time
}

type Engine struct {
	cal  dates.Calendar
	lang language.Tag
}

func NewEngine(cal dates.Calendar, lang language.Tag) *Engine {
	return &Engine{cal: cal, lang: lang}
}

// Apply returns the tasks matching opts in the requested order. A task
// matches when it matches the text query and, if a date is set, is due that
// day, otherwise passes the status filter.
func (e *Engine) Apply(tasks []task.Task, opts Options, now time.Time) []task.Task {
	out := e.Filter(tasks, opts, now)
	e.Sort(out, opts.Sort)
	return out
}

// Filter keeps matching tasks in their original order.
func (e *Engine) Filter(tasks []task.Task, opts Options, now time.Time) []task.Task {
	text := strings.ToLower(strings.TrimSpace(opts.Text))
	out := make([]task.Task, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if text != "" && !matchesText(t, text) {
			continue
		}
		if opts.Date != nil {
			if !e.DueOn(t, *opts.Date) {
				continue
			}
		} else if !e.Matches(t, opts.Filter, now) {
			continue
		}
		out = append(out, *t)
	}
	return out
}

// Matches evaluates a single status filter. Unknown filters match everything.
func (e *Engine) Matches(t *task.Task, f Filter, now time.Time) bool {
	switch f {
	case FilterPending:
		return !t.IsComplete
	case FilterCompleted:
		return t.IsComplete
	case FilterOverdue:
		return t.IsOverdue(now)
	case FilterDueToday:
		return t.DueDate != nil && e.cal.SameDay(*t.DueDate, now)
	case FilterDueThisWeek:
		return t.DueDate != nil && e.cal.SameWeek(*t.DueDate, now)
	}
	return true
}

// DueOn reports whether t is due within [startOfDay(day), endOfDay(day)].
func (e *Engine) DueOn(t *task.Task, day time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	due := *t.DueDate
	return !due.Before(e.cal.StartOfDay(day)) && !due.After(e.cal.EndOfDay(day))
}

func matchesText(t *task.Task, lowered string) bool {
	if strings.Contains(strings.ToLower(t.Title), lowered) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), lowered)
}

// Sort orders tasks in place. Equal keys keep their relative order.
func (e *Engine) Sort(tasks []task.Task, by Sort) {
	var less func(a, b *task.Task) bool
	switch by {
	case SortPriorityDesc:
		less = func(a, b *task.Task) bool {
			return a.Priority.Normalize() > b.Priority.Normalize()
		}
	case SortDueDateAsc:
		less = func(a, b *task.Task) bool {
			switch {
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			}
			return a.DueDate.Before(*b.DueDate)
		}
	case SortTitleAsc:
		// Collators keep scratch buffers, so each sort gets its own.
		c := collate.New(e.lang)
		less = func(a, b *task.Task) bool {
			return c.CompareString(a.Title, b.Title) < 0
		}
	default:
		less = func(a, b *task.Task) bool {
			return a.CreatedAt.After(b.CreatedAt)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return less(&tasks[i], &tasks[j])
	})
}
