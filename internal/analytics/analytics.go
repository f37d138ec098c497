// Package analytics derives counts, rates and daily series from a task
// snapshot. Every report is recomputed from scratch; empty input yields
// zero values, never an error.
package analytics

import (
	"math"
	"time"

	"domore/internal/dates"
	"domore/internal/models/task"
)

// AverageWindowDays is the fixed denominator of AvgTasksPerDay.
const AverageWindowDays = 30

const (
	dayLabel  = "Mon"
	dateLabel = "Jan 02"
)

type Stats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Pending        int `json:"pending"`
	Overdue        int `json:"overdue"`
	CompletionRate int `json:"completionRate"`
	// AvgTasksPerDay is total/30, not the real span of the task history.
	AvgTasksPerDay float64 `json:"avgTasksPerDay"`
	// AvgCompletionTimeDays treats the last update of a completed task as
	// its completion.
	AvgCompletionTimeDays float64 `json:"avgCompletionTime"`
}

type Bucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type DayPoint struct {
	Date      time.Time `json:"date"`
	Label     string    `json:"label"`
	Day       string    `json:"day"`
	Completed int       `json:"completed"`
	Created   int       `json:"created"`
}

type Report struct {
	Stats    Stats      `json:"basic"`
	Priority []Bucket   `json:"priority"`
	Status   []Bucket   `json:"status"`
	Weekly   []DayPoint `json:"weekly"`
	Monthly  []DayPoint `json:"monthly"`
}

type Aggregator struct {
	cal dates.Calendar
}

func New(cal dates.Calendar) *Aggregator {
	return &Aggregator{cal: cal}
}

func (a *Aggregator) Report(tasks []task.Task, now time.Time) Report {
	return Report{
		Stats:    a.Stats(tasks, now),
		Priority: PriorityDistribution(tasks),
		Status:   StatusDistribution(tasks, now),
		Weekly:   a.WeeklyTrend(tasks, now),
		Monthly:  a.MonthlyTrend(tasks, now),
	}
}

func (a *Aggregator) Stats(tasks []task.Task, now time.Time) Stats {
	s := Stats{Total: len(tasks)}
	completionDays := 0
	for i := range tasks {
		t := &tasks[i]
		if t.IsComplete {
			s.Completed++
			completionDays += dates.DaysBetween(t.CreatedAt, t.UpdatedAt)
			continue
		}
		s.Pending++
		if t.IsOverdue(now) {
			s.Overdue++
		}
	}

	s.CompletionRate = percent(s.Completed, s.Total)
	s.AvgTasksPerDay = round1(float64(s.Total) / AverageWindowDays)
	if s.Completed > 0 {
		s.AvgCompletionTimeDays = round1(float64(completionDays) / float64(s.Completed))
	}
	return s
}

// PriorityDistribution counts tasks per priority, highest first, leaving out
// empty buckets.
func PriorityDistribution(tasks []task.Task) []Bucket {
	counts := map[task.Priority]int{}
	for i := range tasks {
		counts[tasks[i].Priority.Normalize()]++
	}
	order := []task.Priority{task.PriorityHigh, task.PriorityMedium, task.PriorityLow, task.PriorityNone}
	out := make([]Bucket, 0, len(order))
	for _, p := range order {
		if counts[p] > 0 {
			out = append(out, Bucket{Name: p.String(), Value: counts[p]})
		}
	}
	return out
}

// StatusDistribution counts completed, pending and overdue tasks. Overdue
// tasks are also counted as pending.
func StatusDistribution(tasks []task.Task, now time.Time) []Bucket {
	var completed, pending, overdue int
	for i := range tasks {
		t := &tasks[i]
		switch {
		case t.IsComplete:
			completed++
		case t.IsOverdue(now):
			pending++
			overdue++
		default:
			pending++
		}
	}
	out := make([]Bucket, 0, 3)
	for _, b := range []Bucket{
		{Name: "Completed", Value: completed},
		{Name: "Pending", Value: pending},
		{Name: "Overdue", Value: overdue},
	} {
		if b.Value > 0 {
			out = append(out, b)
		}
	}
	return out
}

// WeeklyTrend has one point per day of the current week counting completed
// tasks last updated that day.
func (a *Aggregator) WeeklyTrend(tasks []task.Task, now time.Time) []DayPoint {
	days := a.cal.EachDay(a.cal.StartOfWeek(now), a.cal.EndOfWeek(now))
	out := make([]DayPoint, len(days))
	for i, day := range days {
		out[i] = a.point(day)
		for j := range tasks {
			if tasks[j].IsComplete && a.cal.SameDay(tasks[j].UpdatedAt, day) {
				out[i].Completed++
			}
		}
	}
	return out
}

// MonthlyTrend has one point per local calendar day, the last 30 days
// ending today.
func (a *Aggregator) MonthlyTrend(tasks []task.Task, now time.Time) []DayPoint {
	out := make([]DayPoint, AverageWindowDays)
	today := a.cal.StartOfDay(now)
	for i := range out {
		day := today.AddDate(0, 0, i-(AverageWindowDays-1))
		out[i] = a.point(day)
		for j := range tasks {
			t := &tasks[j]
			if t.IsComplete && a.cal.SameDay(t.UpdatedAt, day) {
				out[i].Completed++
			}
			if a.cal.SameDay(t.CreatedAt, day) {
				out[i].Created++
			}
		}
	}
	return out
}

func (a *Aggregator) point(day time.Time) DayPoint {
	day = a.cal.In(day)
	return DayPoint{Date: day, Label: day.Format(dayLabel), Day: day.Format(dateLabel)}
}

// percent is part/total*100 rounded, or 0 for an empty total.
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
