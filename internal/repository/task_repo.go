// Package repository turns task operations into owner-scoped row store
// requests. Every call re-resolves the session and the caller's profile id
// before touching the tasks table.
package repository

import (
	"context"
	"fmt"
	"time"

	"domore/internal/auth"
	"domore/internal/logger"
	"domore/internal/models/task"
	"domore/internal/rowstore"

	"go.uber.org/zap"
)

const slowOperation = 100 * time.Millisecond

type TaskRepository struct {
	store    rowstore.Store
	provider auth.Provider
	profiles *ProfileRepository
}

func NewTaskRepository(store rowstore.Store, provider auth.Provider) *TaskRepository {
	return &TaskRepository{
		store:    store,
		provider: provider,
		profiles: NewProfileRepository(store),
	}
}

// Owner resolves the caller's profile id from the session in ctx.
func (r *TaskRepository) Owner(ctx context.Context) (int64, error) {
	user, err := r.provider.CurrentUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if user == nil {
		return 0, ErrUnauthenticated
	}

	profile, err := r.profiles.FindByEmail(ctx, user.Email)
	if err != nil {
		return 0, err
	}
	return profile.ID, nil
}

func (r *TaskRepository) ListTasks(ctx context.Context) ([]task.Task, error) {
	start := time.Now()

	owner, err := r.Owner(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.store.Select(ctx, rowstore.TableTasks,
		rowstore.Where(rowstore.Eq("user_id", owner)), rowstore.Desc("created_at"))
	if err != nil {
		logger.Error("Repository: list tasks failed", err, zap.Int64("owner", owner))
		return nil, storeError("select tasks", err)
	}

	tasks := tasksFromRows(rows)
	r.logSlow("list", start, zap.Int64("owner", owner), zap.Int("count", len(tasks)))
	return tasks, nil
}

func (r *TaskRepository) CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error) {
	start := time.Now()

	if err := validateTitle(in.Title); err != nil {
		return task.Task{}, err
	}

	owner, err := r.Owner(ctx)
	if err != nil {
		return task.Task{}, err
	}

	row, err := createRow(owner, in)
	if err != nil {
		return task.Task{}, err
	}

	rows, err := r.store.Insert(ctx, rowstore.TableTasks, row)
	if err != nil {
		logger.Error("Repository: create task failed", err, zap.Int64("owner", owner))
		return task.Task{}, storeError("insert task", err)
	}
	created, err := single(rows)
	if err != nil {
		return task.Task{}, err
	}

	logger.Debug("Repository: task created", zap.Int64("id", created.ID), zap.Int64("owner", owner))
	r.logSlow("create", start, zap.Int64("id", created.ID))
	return created, nil
}

// UpdateTask applies a partial patch. A missing task and a task owned by
// someone else both yield ErrNotFound.
func (r *TaskRepository) UpdateTask(ctx context.Context, id int64, patch task.Patch) (task.Task, error) {
	start := time.Now()

	row, err := patchRow(patch)
	if err != nil {
		return task.Task{}, err
	}
	if len(row) == 0 {
		return task.Task{}, newValidationError("patch", "no fields to update")
	}

	owner, err := r.Owner(ctx)
	if err != nil {
		return task.Task{}, err
	}

	rows, err := r.store.Update(ctx, rowstore.TableTasks, ownedBy(id, owner), row)
	if err != nil {
		logger.Error("Repository: update task failed", err, zap.Int64("id", id))
		return task.Task{}, storeError("update task", err)
	}
	updated, err := single(rows)
	if err != nil {
		return task.Task{}, err
	}

	r.logSlow("update", start, zap.Int64("id", id))
	return updated, nil
}

func (r *TaskRepository) DeleteTask(ctx context.Context, id int64) error {
	start := time.Now()

	owner, err := r.Owner(ctx)
	if err != nil {
		return err
	}

	rows, err := r.store.Delete(ctx, rowstore.TableTasks, ownedBy(id, owner))
	if err != nil {
		logger.Error("Repository: delete task failed", err, zap.Int64("id", id))
		return storeError("delete task", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}

	logger.Debug("Repository: task deleted", zap.Int64("id", id), zap.Int64("owner", owner))
	r.logSlow("delete", start, zap.Int64("id", id))
	return nil
}

// ToggleComplete flips is_complete in one statement when the store supports
// it. Otherwise it reads then writes, and two concurrent toggles may both
// write the same value.
func (r *TaskRepository) ToggleComplete(ctx context.Context, id int64) (task.Task, error) {
	start := time.Now()

	owner, err := r.Owner(ctx)
	if err != nil {
		return task.Task{}, err
	}
	filter := ownedBy(id, owner)

	var rows []rowstore.Row
	if toggler, ok := r.store.(rowstore.Toggler); ok {
		rows, err = toggler.Toggle(ctx, rowstore.TableTasks, filter, "is_complete")
		if err != nil {
			logger.Error("Repository: toggle task failed", err, zap.Int64("id", id))
			return task.Task{}, storeError("toggle task", err)
		}
	} else {
		current, err := r.store.Select(ctx, rowstore.TableTasks, filter, nil)
		if err != nil {
			return task.Task{}, storeError("select task", err)
		}
		existing, err := single(current)
		if err != nil {
			return task.Task{}, err
		}
		rows, err = r.store.Update(ctx, rowstore.TableTasks, filter,
			rowstore.Row{"is_complete": !existing.IsComplete})
		if err != nil {
			logger.Error("Repository: toggle task failed", err, zap.Int64("id", id))
			return task.Task{}, storeError("update task", err)
		}
	}

	toggled, err := single(rows)
	if err != nil {
		return task.Task{}, err
	}
	r.logSlow("toggle", start, zap.Int64("id", id), zap.Bool("is_complete", toggled.IsComplete))
	return toggled, nil
}

func (r *TaskRepository) logSlow(op string, start time.Time, fields ...zap.Field) {
	elapsed := time.Since(start)
	if elapsed <= slowOperation {
		return
	}
	fields = append(fields, zap.String("op", op), zap.Duration("ms", elapsed))
	logger.Warn("Repository: slow operation", fields...)
}

func ownedBy(id, owner int64) rowstore.Filter {
	return rowstore.Where(rowstore.Eq("id", id), rowstore.Eq("user_id", owner))
}

func single(rows []rowstore.Row) (task.Task, error) {
	if len(rows) == 0 {
		return task.Task{}, ErrNotFound
	}
	return taskFromRow(rows[0])
}

func tasksFromRows(rows []rowstore.Row) []task.Task {
	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		t, err := taskFromRow(row)
		if err != nil {
			logger.Warn("Repository: skipping malformed task row", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}
