package query_test

import (
	"testing"
	"time"

	"domore/internal/dates"
	"domore/internal/models/task"
	"domore/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// Wednesday.
var now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func at(day int, hour int) *time.Time {
	t := time.Date(2025, 1, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func str(s string) *string { return &s }

func sample() []task.Task {
	return []task.Task{
		{ID: 1, Title: "Write report", Priority: task.PriorityHigh, DueDate: at(14, 9), CreatedAt: now.Add(-5 * time.Hour)},
		{ID: 2, Title: "buy milk", Description: str("Semi-skimmed"), IsComplete: true, Priority: task.PriorityLow, DueDate: at(15, 18), CreatedAt: now.Add(-1 * time.Hour)},
		{ID: 3, Title: "Call plumber", Priority: task.PriorityHigh, DueDate: at(15, 8), CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 4, Title: "Éclair recipe", Priority: task.PriorityNone, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 5, Title: "Plan trip", Priority: task.PriorityMedium, DueDate: at(18, 12), CreatedAt: now.Add(-4 * time.Hour)},
		{ID: 6, Title: "Taxes", Priority: 9, DueDate: at(25, 12), IsComplete: true, CreatedAt: now.Add(-6 * time.Hour)},
	}
}

func newEngine() *query.Engine {
	return query.NewEngine(dates.New(time.UTC, time.Sunday), language.English)
}

func ids(tasks []task.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter query.Filter
		want   []int64
	}{
		{name: "all", filter: query.FilterAll, want: []int64{1, 2, 3, 4, 5, 6}},
		{name: "pending", filter: query.FilterPending, want: []int64{1, 3, 4, 5}},
		{name: "completed", filter: query.FilterCompleted, want: []int64{2, 6}},
		{name: "overdue", filter: query.FilterOverdue, want: []int64{1, 3}},
		{name: "due today", filter: query.FilterDueToday, want: []int64{2, 3}},
		{name: "due this week", filter: query.FilterDueThisWeek, want: []int64{1, 2, 3, 5}},
	}

	e := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Filter(sample(), query.Options{Filter: tt.filter}, now)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilter_PendingAndCompletedPartitionAll(t *testing.T) {
	e := newEngine()
	tasks := sample()

	all := ids(e.Filter(tasks, query.Options{Filter: query.FilterAll}, now))
	pending := ids(e.Filter(tasks, query.Options{Filter: query.FilterPending}, now))
	completed := ids(e.Filter(tasks, query.Options{Filter: query.FilterCompleted}, now))

	seen := map[int64]int{}
	for _, id := range append(pending, completed...) {
		seen[id]++
	}
	for _, id := range all {
		assert.Equal(t, 1, seen[id], "task %d", id)
	}
	assert.Len(t, seen, len(all))
}

func TestFilter_OverdueImpliesPendingAndPast(t *testing.T) {
	e := newEngine()
	for _, tk := range e.Filter(sample(), query.Options{Filter: query.FilterOverdue}, now) {
		assert.False(t, tk.IsComplete)
		require.NotNil(t, tk.DueDate)
		assert.True(t, tk.DueDate.Before(now))
	}
}

func TestFilter_TextQuery(t *testing.T) {
	e := newEngine()

	got := e.Filter(sample(), query.Options{Text: "SKIMMED"}, now)
	assert.Equal(t, []int64{2}, ids(got))

	got = e.Filter(sample(), query.Options{Text: "  plan "}, now)
	assert.Equal(t, []int64{5}, ids(got))

	got = e.Filter(sample(), query.Options{Text: "p", Filter: query.FilterCompleted}, now)
	assert.Empty(t, got)
}

func TestFilter_DateOverridesStatus(t *testing.T) {
	e := newEngine()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	got := e.Filter(sample(), query.Options{Filter: query.FilterPending, Date: &day}, now)
	assert.Equal(t, []int64{2, 3}, ids(got), "completed task 2 still shows on its due day")

	got = e.Filter(sample(), query.Options{Text: "milk", Date: &day}, now)
	assert.Equal(t, []int64{2}, ids(got), "text query still applies with a date")
}

func TestSort(t *testing.T) {
	tests := []struct {
		name string
		by   query.Sort
		want []int64
	}{
		{name: "created desc", by: query.SortCreatedDesc, want: []int64{2, 4, 3, 5, 1, 6}},
		{name: "priority desc is stable", by: query.SortPriorityDesc, want: []int64{1, 3, 5, 2, 4, 6}},
		{name: "due date asc nulls last", by: query.SortDueDateAsc, want: []int64{1, 3, 2, 5, 6, 4}},
		{name: "title asc locale aware", by: query.SortTitleAsc, want: []int64{2, 3, 4, 5, 6, 1}},
	}

	e := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Apply(sample(), query.Options{Sort: tt.by}, now)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	e := newEngine()
	tasks := sample()
	before := ids(tasks)

	got := e.Apply(tasks, query.Options{Sort: query.SortTitleAsc, Filter: query.FilterPending}, now)
	require.NotEmpty(t, got)
	got[0].Title = "changed"

	assert.Equal(t, before, ids(tasks))
	assert.Equal(t, "Write report", tasks[0].Title)
}

func TestApply_Empty(t *testing.T) {
	got := newEngine().Apply(nil, query.Options{Filter: query.FilterOverdue}, now)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseFilterAndSort(t *testing.T) {
	f, err := query.ParseFilter("today")
	require.NoError(t, err)
	assert.Equal(t, query.FilterDueToday, f)

	f, err = query.ParseFilter("dueThisWeek")
	require.NoError(t, err)
	assert.Equal(t, query.FilterDueThisWeek, f)

	f, err = query.ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, query.FilterAll, f)

	_, err = query.ParseFilter("someday")
	assert.Error(t, err)

	s, err := query.ParseSort("due_date")
	require.NoError(t, err)
	assert.Equal(t, query.SortDueDateAsc, s)

	s, err = query.ParseSort("priorityDesc")
	require.NoError(t, err)
	assert.Equal(t, query.SortPriorityDesc, s)

	_, err = query.ParseSort("random")
	assert.Error(t, err)
}
