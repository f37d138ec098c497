package calendar_test

import (
	"testing"
	"time"

	"domore/internal/calendar"
	"domore/internal/dates"
	"domore/internal/models/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

func due(y int, m time.Month, d, h int) *time.Time {
	t := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	return &t
}

func TestGrid_AlignedToWholeWeeks(t *testing.T) {
	for _, weekStart := range []time.Weekday{time.Sunday, time.Monday} {
		b := calendar.New(dates.New(time.UTC, weekStart))
		for m := time.January; m <= time.December; m++ {
			month := time.Date(2025, m, 10, 0, 0, 0, 0, time.UTC)
			grid := b.Grid(month, nil, now)

			require.NotEmpty(t, grid.Days)
			assert.Zero(t, len(grid.Days)%7, "%s starting %s", m, weekStart)
			assert.Equal(t, weekStart, grid.Days[0].Date.Weekday())
			assert.Equal(t, (weekStart+6)%7, grid.Days[len(grid.Days)-1].Date.Weekday())
			assert.Equal(t, 1, grid.Month.Day())
		}
	}
}

func TestGrid_February2025(t *testing.T) {
	b := calendar.New(dates.New(time.UTC, time.Sunday))
	tasks := []task.Task{
		{ID: 1, DueDate: due(2025, 2, 3, 23)},
		{ID: 2, DueDate: due(2025, 2, 3, 1), IsComplete: true},
		{ID: 3, DueDate: due(2025, 2, 20, 9)},
		{ID: 4, DueDate: due(2025, 1, 28, 9)},
		{ID: 5},
		{ID: 6, DueDate: due(2025, 4, 1, 9)},
	}

	grid := b.Grid(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), tasks, now)

	// Sun Jan 26 .. Sat Mar 1.
	require.Len(t, grid.Days, 35)
	assert.True(t, grid.Days[0].Date.Equal(time.Date(2025, 1, 26, 0, 0, 0, 0, time.UTC)))
	assert.False(t, grid.Days[0].InMonth)
	assert.True(t, grid.Days[6].InMonth)
	assert.False(t, grid.Days[34].InMonth)

	feb3 := grid.Days[8]
	assert.Equal(t, 3, feb3.Date.Day())
	assert.Equal(t, 2, feb3.TaskCount)
	assert.Equal(t, 1, feb3.CompletedCount)
	assert.Equal(t, 1, feb3.OverdueCount)

	padding := grid.Days[2]
	assert.Equal(t, 28, padding.Date.Day())
	assert.Equal(t, 1, padding.TaskCount)
	assert.Equal(t, 1, padding.OverdueCount)

	feb20 := grid.Days[25]
	assert.Equal(t, 20, feb20.Date.Day())
	assert.Equal(t, 1, feb20.TaskCount)
	assert.Zero(t, feb20.OverdueCount)

	total := 0
	for _, d := range grid.Days {
		total += d.TaskCount
		assert.NotNil(t, d.Tasks)
	}
	assert.Equal(t, 4, total)

	assert.Equal(t, calendar.Summary{Total: 6, Completed: 1, Pending: 5, Overdue: 2}, grid.Summary)
}

func TestGrid_UsesCalendarLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	b := calendar.New(dates.New(tokyo, time.Sunday))

	// 20:00 UTC on Feb 9 is Feb 10 in Tokyo.
	tasks := []task.Task{{ID: 1, DueDate: due(2025, 2, 9, 20)}}
	grid := b.Grid(time.Date(2025, 2, 1, 0, 0, 0, 0, tokyo), tasks, now)

	for _, d := range grid.Days {
		if d.TaskCount > 0 {
			assert.Equal(t, 10, d.Date.Day())
		}
	}
}

func TestTasksOn(t *testing.T) {
	b := calendar.New(dates.New(time.UTC, time.Sunday))
	tasks := []task.Task{
		{ID: 1, DueDate: due(2025, 3, 1, 0)},
		{ID: 2, DueDate: due(2025, 3, 1, 23)},
		{ID: 3, DueDate: due(2025, 3, 2, 0)},
		{ID: 4},
	}

	got := b.TasksOn(tasks, time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC))
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)

	assert.Empty(t, b.TasksOn(tasks, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)))
}
