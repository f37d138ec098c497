package service

import (
	"context"

	"domore/internal/models/task"
)

type TaskRepository interface {
	ListTasks(ctx context.Context) ([]task.Task, error)
	CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error)
	UpdateTask(ctx context.Context, id int64, patch task.Patch) (task.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ToggleComplete(ctx context.Context, id int64) (task.Task, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
