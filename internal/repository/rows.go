package repository

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"domore/internal/models/task"
	"domore/internal/rowstore"
)

// taskFromRow is the single place where store rows become tasks. NULL
// is_complete reads as false and priorities outside 1..3 read as unset.
func taskFromRow(row rowstore.Row) (task.Task, error) {
	var t task.Task
	var ok bool

	if t.ID, ok = asInt64(row["id"]); !ok {
		return task.Task{}, fmt.Errorf("task row: bad id %v", row["id"])
	}
	if t.OwnerID, ok = asInt64(row["user_id"]); !ok {
		return task.Task{}, fmt.Errorf("task row %d: bad user_id %v", t.ID, row["user_id"])
	}
	if t.Title, ok = row["title"].(string); !ok {
		return task.Task{}, fmt.Errorf("task row %d: bad title", t.ID)
	}

	if desc, ok := row["description"].(string); ok {
		t.Description = &desc
	}
	t.IsComplete, _ = row["is_complete"].(bool)

	if p, ok := asInt64(row["priority"]); ok {
		t.Priority = task.Priority(p).Normalize()
	}

	if due, ok := asTime(row["due_date"]); ok {
		t.DueDate = &due
	}
	t.CreatedAt, _ = asTime(row["created_at"])
	t.UpdatedAt, _ = asTime(row["updated_at"])
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	return t, nil
}

func profileFromRow(row rowstore.Row) (task.UserProfile, error) {
	var p task.UserProfile
	var ok bool
	if p.ID, ok = asInt64(row["id"]); !ok {
		return task.UserProfile{}, fmt.Errorf("profile row: bad id %v", row["id"])
	}
	p.Email, _ = row["email"].(string)
	if name, ok := row["username"].(string); ok {
		p.Username = &name
	}
	p.CreatedAt, _ = asTime(row["created_at"])
	return p, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// patchRow turns a partial update into a row patch. Absent fields are left
// out so the store keeps their values.
func patchRow(p task.Patch) (rowstore.Row, error) {
	row := rowstore.Row{}
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return nil, err
		}
		row["title"] = *p.Title
	}
	switch {
	case p.ClearDescription:
		row["description"] = nil
	case p.Description != nil:
		row["description"] = *p.Description
	}
	switch {
	case p.ClearDueDate:
		row["due_date"] = nil
	case p.DueDate != nil:
		row["due_date"] = *p.DueDate
	}
	switch {
	case p.ClearPriority:
		row["priority"] = nil
	case p.Priority != nil:
		if err := validatePriority(*p.Priority); err != nil {
			return nil, err
		}
		row["priority"] = priorityValue(*p.Priority)
	}
	if p.IsComplete != nil {
		row["is_complete"] = *p.IsComplete
	}
	return row, nil
}

func createRow(owner int64, in task.CreateInput) (rowstore.Row, error) {
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validatePriority(in.Priority); err != nil {
		return nil, err
	}
	row := rowstore.Row{
		"user_id":     owner,
		"title":       in.Title,
		"is_complete": false,
		"priority":    priorityValue(in.Priority),
		"description": nil,
		"due_date":    nil,
	}
	if in.Description != nil {
		row["description"] = *in.Description
	}
	if in.DueDate != nil {
		row["due_date"] = *in.DueDate
	}
	return row, nil
}

// priorityValue stores "no priority" as NULL.
func priorityValue(p task.Priority) any {
	if p == task.PriorityNone {
		return nil
	}
	return int(p)
}
