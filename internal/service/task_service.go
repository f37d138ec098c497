package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"domore/internal/analytics"
	"domore/internal/auth"
	"domore/internal/calendar"
	"domore/internal/dates"
	"domore/internal/logger"
	"domore/internal/models/task"
	"domore/internal/query"
	"domore/internal/repository"
	"domore/internal/snapshot"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// TaskService serves every read from the caller's snapshot and drops the
// snapshot after each successful mutation.
type TaskService struct {
	repo      TaskRepository
	users     auth.Provider
	cache     snapshot.Cache
	health    HealthChecker
	cal       dates.Calendar
	engine    *query.Engine
	analytics *analytics.Aggregator
	calendar  *calendar.Bucketer
	now       func() time.Time
}

type Option func(*TaskService)

func WithCache(c snapshot.Cache) Option {
	return func(s *TaskService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithHealthCheck(h HealthChecker) Option {
	return func(s *TaskService) { s.health = h }
}

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

func WithLanguage(tag language.Tag) Option {
	return func(s *TaskService) { s.engine = query.NewEngine(s.cal, tag) }
}

func NewTaskService(repo TaskRepository, users auth.Provider, cal dates.Calendar, opts ...Option) *TaskService {
	s := &TaskService{
		repo:      repo,
		users:     users,
		cache:     snapshot.Direct{},
		cal:       cal,
		engine:    query.NewEngine(cal, language.English),
		analytics: analytics.New(cal),
		calendar:  calendar.New(cal),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calendar exposes the day and week settings used for every view.
func (s *TaskService) Calendar() dates.Calendar {
	return s.cal
}

func (s *TaskService) Now() time.Time {
	return s.now()
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	if err := s.health.HealthCheck(ctx); err != nil {
		return fmt.Errorf("service health check: %w", err)
	}
	return nil
}

// snapshotKey identifies the caller's cached task list.
func (s *TaskService) snapshotKey(ctx context.Context) (string, error) {
	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		return "", toBusinessError(fmt.Errorf("%w: %w", repository.ErrUnauthenticated, err), 0)
	}
	if user == nil {
		return "", toBusinessError(repository.ErrUnauthenticated, 0)
	}
	return strings.ToLower(strings.TrimSpace(user.Email)), nil
}

func (s *TaskService) snapshot(ctx context.Context) ([]task.Task, error) {
	key, err := s.snapshotKey(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.cache.Get(ctx, key, s.repo.ListTasks)
	if err != nil {
		logger.Warn("Service: failed to load tasks", zap.Error(err))
		return nil, toBusinessError(err, 0)
	}
	return tasks, nil
}

func (s *TaskService) invalidate(ctx context.Context) {
	if key, err := s.snapshotKey(ctx); err == nil {
		s.cache.Invalidate(key)
	}
}

func (s *TaskService) ListTasks(ctx context.Context, opts query.Options) ([]task.Task, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Apply(tasks, opts, s.now()), nil
}

func (s *TaskService) GetTask(ctx context.Context, id int64) (task.Task, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return task.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	logger.Info("Service: task not found", zap.Int64("target_id", id))
	return task.Task{}, NewNotFound("task", id)
}

func (s *TaskService) CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error) {
	created, err := s.repo.CreateTask(ctx, in)
	if err != nil {
		return task.Task{}, toBusinessError(err, 0)
	}
	s.invalidate(ctx)
	logger.Info("Service: task created", zap.Int64("task_id", created.ID))
	return created, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id int64, opts ...task.PatchOption) (task.Task, error) {
	patch := task.NewPatch(opts...)
	if patch.Empty() {
		return task.Task{}, NewValidationError("patch", "no fields to update")
	}

	updated, err := s.repo.UpdateTask(ctx, id, patch)
	if err != nil {
		return task.Task{}, toBusinessError(err, id)
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return toBusinessError(err, id)
	}
	s.invalidate(ctx)
	logger.Info("Service: task deleted", zap.Int64("task_id", id))
	return nil
}

func (s *TaskService) ToggleComplete(ctx context.Context, id int64) (task.Task, error) {
	toggled, err := s.repo.ToggleComplete(ctx, id)
	if err != nil {
		return task.Task{}, toBusinessError(err, id)
	}
	s.invalidate(ctx)
	return toggled, nil
}

func (s *TaskService) Analytics(ctx context.Context) (analytics.Report, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return analytics.Report{}, err
	}
	return s.analytics.Report(tasks, s.now()), nil
}

func (s *TaskService) Dashboard(ctx context.Context) (analytics.Dashboard, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return analytics.Dashboard{}, err
	}
	return s.analytics.Dashboard(tasks, s.now()), nil
}

type CalendarView struct {
	calendar.Grid
	SelectedDay *time.Time  `json:"selectedDay,omitempty"`
	Selected    []task.Task `json:"selected,omitempty"`
}

// CalendarMonth builds the grid for month; a nil month means the current one.
// When day is set its tasks are listed separately.
func (s *TaskService) CalendarMonth(ctx context.Context, month, day *time.Time) (CalendarView, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return CalendarView{}, err
	}

	now := s.now()
	ref := now
	if month != nil {
		ref = *month
	}

	view := CalendarView{Grid: s.calendar.Grid(ref, tasks, now)}
	if day != nil {
		start := s.cal.StartOfDay(*day)
		view.SelectedDay = &start
		view.Selected = s.calendar.TasksOn(tasks, start)
	}
	return view, nil
}

// SignOut revokes the caller's session and forgets their snapshot.
func (s *TaskService) SignOut(ctx context.Context) error {
	key, err := s.snapshotKey(ctx)
	if err != nil {
		return err
	}
	signer, ok := s.users.(auth.SignOuter)
	if !ok {
		return nil
	}
	if err := signer.SignOut(ctx); err != nil {
		return toBusinessError(fmt.Errorf("%w: %w", repository.ErrUnauthenticated, err), 0)
	}
	s.cache.Invalidate(key)
	return nil
}
