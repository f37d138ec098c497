package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"domore/internal/models/task"
)

// Optional tells an absent JSON field apart from an explicit null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
}

func (r CreateTaskRequest) Input() task.CreateInput {
	in := task.CreateInput{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
	}
	if r.Priority != nil {
		in.Priority = task.Priority(*r.Priority)
	}
	return in
}

// UpdateTaskRequest follows merge-patch rules: absent fields stay as they
// are, null clears an optional field.
type UpdateTaskRequest struct {
	Title       Optional[string]    `json:"title"`
	Description Optional[string]    `json:"description"`
	DueDate     Optional[time.Time] `json:"due_date"`
	Priority    Optional[int]       `json:"priority"`
	IsComplete  Optional[bool]      `json:"is_complete"`
}

var (
	ErrNullTitle    = errors.New("title cannot be null")
	ErrNullComplete = errors.New("is_complete cannot be null")
)

func (r UpdateTaskRequest) Options() ([]task.PatchOption, error) {
	var opts []task.PatchOption

	if r.Title.Set {
		if r.Title.Null {
			return nil, ErrNullTitle
		}
		opts = append(opts, task.WithTitle(r.Title.Value))
	}
	if r.Description.Set {
		if r.Description.Null {
			opts = append(opts, task.WithoutDescription())
		} else {
			opts = append(opts, task.WithDescription(r.Description.Value))
		}
	}
	if r.DueDate.Set {
		if r.DueDate.Null {
			opts = append(opts, task.WithoutDueDate())
		} else {
			opts = append(opts, task.WithDueDate(r.DueDate.Value))
		}
	}
	if r.Priority.Set {
		if r.Priority.Null || r.Priority.Value == 0 {
			opts = append(opts, task.WithoutPriority())
		} else {
			opts = append(opts, task.WithPriority(task.Priority(r.Priority.Value)))
		}
	}
	if r.IsComplete.Set {
		if r.IsComplete.Null {
			return nil, ErrNullComplete
		}
		opts = append(opts, task.WithComplete(r.IsComplete.Value))
	}
	return opts, nil
}

type TaskResponse struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	IsComplete    bool       `json:"is_complete"`
	Priority      *int       `json:"priority"`
	PriorityLabel string     `json:"priority_label"`
	DueDate       *time.Time `json:"due_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	IsOverdue     bool       `json:"is_overdue"`
}

func FromTask(t task.Task, now time.Time) TaskResponse {
	resp := TaskResponse{
		ID:            t.ID,
		UserID:        t.OwnerID,
		Title:         t.Title,
		Description:   t.Description,
		IsComplete:    t.IsComplete,
		PriorityLabel: t.Priority.String(),
		DueDate:       t.DueDate,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		IsOverdue:     t.IsOverdue(now),
	}
	if p := t.Priority.Normalize(); p != task.PriorityNone {
		v := int(p)
		resp.Priority = &v
	}
	return resp
}

func FromTaskList(tasks []task.Task, now time.Time) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t, now)
	}
	return result
}
