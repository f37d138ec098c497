package task

import (
	"time"
)

type Task struct {
	ID          int64      `json:"id" db:"id"`
	OwnerID     int64      `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description,omitempty" db:"description"`
	IsComplete  bool       `json:"is_complete" db:"is_complete"`
	Priority    Priority   `json:"priority,omitempty" db:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Priority int

const (
	PriorityNone   Priority = 0
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

func (p Priority) Valid() bool {
	return p >= PriorityNone && p <= PriorityHigh
}

// Normalize maps anything outside 1..3 to PriorityNone.
func (p Priority) Normalize() Priority {
	if p < PriorityLow || p > PriorityHigh {
		return PriorityNone
	}
	return p
}

func (p Priority) String() string {
	switch p.Normalize() {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	}
	return "None"
}

// IsOverdue: pending with a due date strictly before now.
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.IsComplete && t.DueDate != nil && t.DueDate.Before(now)
}

// DescriptionText returns the description or "" when unset.
func (t *Task) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

type UserProfile struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  *string   `json:"username,omitempty" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CreateInput struct {
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    Priority
}

// Patch carries a partial update. Nil fields are left unchanged; the Clear
// flags reset optional columns to NULL.
type Patch struct {
	Title            *string
	Description      *string
	DueDate          *time.Time
	Priority         *Priority
	IsComplete       *bool
	ClearDescription bool
	ClearDueDate     bool
	ClearPriority    bool
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		p.Priority == nil && p.IsComplete == nil &&
		!p.ClearDescription && !p.ClearDueDate && !p.ClearPriority
}
