// Package calendar buckets tasks by due day over a month grid padded to
// whole weeks.
package calendar

import (
	"time"

	"domore/internal/dates"
	"domore/internal/models/task"
)

type Day struct {
	Date           time.Time   `json:"date"`
	InMonth        bool        `json:"inMonth"`
	Tasks          []task.Task `json:"tasks"`
	TaskCount      int         `json:"taskCount"`
	CompletedCount int         `json:"completedCount"`
	// OverdueCount is measured against the current time, not the day.
	OverdueCount int `json:"overdueCount"`
}

type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Overdue   int `json:"overdue"`
}

type Grid struct {
	Month   time.Time `json:"month"`
	Days    []Day     `json:"days"`
	Summary Summary   `json:"summary"`
}

type Bucketer struct {
	cal dates.Calendar
}

func New(cal dates.Calendar) *Bucketer {
	return &Bucketer{cal: cal}
}

// Grid covers startOfWeek(startOfMonth) to endOfWeek(endOfMonth), so its
// length is always a multiple of seven.
func (b *Bucketer) Grid(month time.Time, tasks []task.Task, now time.Time) Grid {
	first := b.cal.StartOfMonth(month)
	days := b.cal.EachDay(b.cal.StartOfWeek(first), b.cal.EndOfWeek(b.cal.EndOfMonth(first)))

	byDay := make(map[string][]task.Task)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		key := b.dayKey(*t.DueDate)
		byDay[key] = append(byDay[key], t)
	}

	grid := Grid{Month: first, Days: make([]Day, len(days))}
	for i, day := range days {
		bucket := byDay[b.dayKey(day)]
		d := Day{
			Date:      day,
			InMonth:   day.Month() == first.Month() && day.Year() == first.Year(),
			Tasks:     bucket,
			TaskCount: len(bucket),
		}
		if d.Tasks == nil {
			d.Tasks = []task.Task{}
		}
		for j := range bucket {
			if bucket[j].IsComplete {
				d.CompletedCount++
			}
			if bucket[j].IsOverdue(now) {
				d.OverdueCount++
			}
		}
		grid.Days[i] = d
	}
	grid.Summary = summarize(tasks, now)
	return grid
}

// TasksOn returns the tasks due on day regardless of month boundaries.
func (b *Bucketer) TasksOn(tasks []task.Task, day time.Time) []task.Task {
	out := []task.Task{}
	for _, t := range tasks {
		if t.DueDate != nil && b.cal.SameDay(*t.DueDate, day) {
			out = append(out, t)
		}
	}
	return out
}

func (b *Bucketer) dayKey(t time.Time) string {
	return b.cal.In(t).Format(time.DateOnly)
}

func summarize(tasks []task.Task, now time.Time) Summary {
	s := Summary{Total: len(tasks)}
	for i := range tasks {
		switch {
		case tasks[i].IsComplete:
			s.Completed++
		case tasks[i].IsOverdue(now):
			s.Pending++
			s.Overdue++
		default:
			s.Pending++
		}
	}
	return s
}
