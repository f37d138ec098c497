package analytics

import (
	"time"

	"domore/internal/models/task"
)

const recentWindow = 7 * 24 * time.Hour

type DailyStat struct {
	Date      time.Time `json:"date"`
	Created   int       `json:"created"`
	Completed int       `json:"completed"`
}

// Dashboard is the summary shown above the task list.
type Dashboard struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Pending        int `json:"pending"`
	Overdue        int `json:"overdue"`
	DueToday       int `json:"today"`
	CompletionRate int `json:"completionRate"`
	// WeeklyCompletionRate covers tasks created in the last seven days.
	WeeklyCompletionRate int         `json:"weeklyCompletionRate"`
	Daily                []DailyStat `json:"daily"`
}

func (a *Aggregator) Dashboard(tasks []task.Task, now time.Time) Dashboard {
	stats := a.Stats(tasks, now)
	d := Dashboard{
		Total:          stats.Total,
		Completed:      stats.Completed,
		Pending:        stats.Pending,
		Overdue:        stats.Overdue,
		CompletionRate: stats.CompletionRate,
	}

	weekAgo := now.Add(-recentWindow)
	var recent, recentDone int
	for i := range tasks {
		t := &tasks[i]
		if t.DueDate != nil && a.cal.SameDay(*t.DueDate, now) {
			d.DueToday++
		}
		if !t.CreatedAt.Before(weekAgo) {
			recent++
			if t.IsComplete {
				recentDone++
			}
		}
	}
	d.WeeklyCompletionRate = percent(recentDone, recent)
	d.Daily = a.daily(tasks, now)
	return d
}

// daily covers the last seven days, oldest first: tasks created each day and
// how many of those are complete now.
func (a *Aggregator) daily(tasks []task.Task, now time.Time) []DailyStat {
	out := make([]DailyStat, 7)
	for i := range out {
		day := a.cal.StartOfDay(now).AddDate(0, 0, i-6)
		out[i].Date = day
		for j := range tasks {
			if !a.cal.SameDay(tasks[j].CreatedAt, day) {
				continue
			}
			out[i].Created++
			if tasks[j].IsComplete {
				out[i].Completed++
			}
		}
	}
	return out
}
