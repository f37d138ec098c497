package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"domore/internal/auth"
	"domore/internal/dates"
	"domore/internal/models/task"
	"domore/internal/query"
	"domore/internal/repository"
	"domore/internal/service"
	"domore/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) ListTasks(ctx context.Context) ([]task.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.Task), args.Error(1)
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(task.Task), args.Error(1)
}

func (m *MockTaskRepository) UpdateTask(ctx context.Context, id int64, patch task.Patch) (task.Task, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(task.Task), args.Error(1)
}

func (m *MockTaskRepository) DeleteTask(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepository) ToggleComplete(ctx context.Context, id int64) (task.Task, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(task.Task), args.Error(1)
}

var _ service.TaskRepository = (*MockTaskRepository)(nil)

type MockHealth struct {
	mock.Mock
}

func (m *MockHealth) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type stubProvider struct {
	user      *auth.User
	signedOut bool
}

func (p *stubProvider) CurrentUser(context.Context) (*auth.User, error) {
	if p.user == nil {
		return nil, auth.ErrNoSession
	}
	return p.user, nil
}

func (p *stubProvider) OnAuthStateChange(auth.Listener) func() { return func() {} }

func (p *stubProvider) SignOut(context.Context) error {
	p.signedOut = true
	return nil
}

var now = time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)

func signedIn() *stubProvider {
	return &stubProvider{user: &auth.User{ID: "u1", Email: "ann@example.com"}}
}

func newService(repo *MockTaskRepository, users auth.Provider, opts ...service.Option) *service.TaskService {
	opts = append([]service.Option{
		service.WithClock(func() time.Time { return now }),
		service.WithCache(snapshot.NewLRU(16, time.Minute)),
	}, opts...)
	return service.NewTaskService(repo, users, dates.New(time.UTC, time.Sunday), opts...)
}

func requireCode(t *testing.T, err error, code string) *service.BusinessError {
	t.Helper()
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, code, busErr.Code)
	return busErr
}

func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockHealth)
		expectError bool
	}{
		{
			name:      "success - health check passes",
			setupMock: func(m *MockHealth) { m.On("HealthCheck", mock.Anything).Return(nil) },
		},
		{
			name: "error - health check fails",
			setupMock: func(m *MockHealth) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("db connection failed"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := new(MockHealth)
			tt.setupMock(health)

			svc := newService(new(MockTaskRepository), signedIn(), service.WithHealthCheck(health))
			err := svc.HealthCheck(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "service health check")
			} else {
				assert.NoError(t, err)
			}
			health.AssertExpectations(t)
		})
	}
}

func TestTaskService_ListTasks_UsesSnapshot(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("ListTasks", mock.Anything).Return([]task.Task{
		{ID: 1, Title: "a", IsComplete: true, CreatedAt: now.Add(-time.Hour)},
		{ID: 2, Title: "b", CreatedAt: now},
	}, nil).Once()

	svc := newService(repo, signedIn())
	ctx := context.Background()

	all, err := svc.ListTasks(ctx, query.Options{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].ID)

	pending, err := svc.ListTasks(ctx, query.Options{Filter: query.FilterPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)

	repo.AssertExpectations(t)
}

func TestTaskService_MutationsInvalidateSnapshot(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("ListTasks", mock.Anything).Return([]task.Task{}, nil).Once()
	repo.On("CreateTask", mock.Anything, task.CreateInput{Title: "Buy milk", Priority: task.PriorityMedium}).
		Return(task.Task{ID: 9, Title: "Buy milk", Priority: task.PriorityMedium}, nil)
	repo.On("ListTasks", mock.Anything).Return([]task.Task{{ID: 9, Title: "Buy milk", Priority: task.PriorityMedium}}, nil).Once()

	svc := newService(repo, signedIn())
	ctx := context.Background()

	before, err := svc.ListTasks(ctx, query.Options{})
	require.NoError(t, err)
	assert.Empty(t, before)

	_, err = svc.CreateTask(ctx, task.CreateInput{Title: "Buy milk", Priority: task.PriorityMedium})
	require.NoError(t, err)

	after, err := svc.ListTasks(ctx, query.Options{})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "Buy milk", after[0].Title)

	repo.AssertExpectations(t)
}

func TestTaskService_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "unauthenticated", err: fmt.Errorf("%w: %w", repository.ErrUnauthenticated, auth.ErrNoSession), code: service.CodeUnauthenticated},
		{name: "profile", err: repository.ErrProfileNotFound, code: service.CodeProfileNotFound},
		{name: "validation", err: &repository.ValidationError{Field: "title", Reason: "must not be empty"}, code: service.CodeValidation},
		{name: "not found", err: repository.ErrNotFound, code: service.CodeNotFound},
		{name: "store", err: &repository.StoreError{Op: "delete task", Err: errors.New("timeout")}, code: service.CodeStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockTaskRepository)
			repo.On("DeleteTask", mock.Anything, int64(5)).Return(tt.err)

			err := newService(repo, signedIn()).DeleteTask(context.Background(), 5)
			requireCode(t, err, tt.code)
		})
	}
}

func TestTaskService_ValidationDetails(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("CreateTask", mock.Anything, mock.Anything).
		Return(task.Task{}, &repository.ValidationError{Field: "title", Reason: "must not be empty"})

	_, err := newService(repo, signedIn()).CreateTask(context.Background(), task.CreateInput{})
	busErr := requireCode(t, err, service.CodeValidation)
	assert.Equal(t, "title", busErr.Details["field"])
}

func TestTaskService_UnknownErrorsPassThrough(t *testing.T) {
	boom := errors.New("boom")
	repo := new(MockTaskRepository)
	repo.On("ToggleComplete", mock.Anything, int64(1)).Return(task.Task{}, boom)

	_, err := newService(repo, signedIn()).ToggleComplete(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	var busErr *service.BusinessError
	assert.False(t, errors.As(err, &busErr))
}

func TestTaskService_Unauthenticated(t *testing.T) {
	repo := new(MockTaskRepository)
	svc := newService(repo, &stubProvider{})

	_, err := svc.ListTasks(context.Background(), query.Options{})
	requireCode(t, err, service.CodeUnauthenticated)

	_, err = svc.Dashboard(context.Background())
	requireCode(t, err, service.CodeUnauthenticated)

	repo.AssertNotCalled(t, "ListTasks", mock.Anything)
}

// anonymousProvider reports no user and no error.
type anonymousProvider struct{}

func (anonymousProvider) CurrentUser(context.Context) (*auth.User, error) { return nil, nil }

func (anonymousProvider) OnAuthStateChange(auth.Listener) func() { return func() {} }

func TestTaskService_NilUserIsUnauthenticated(t *testing.T) {
	repo := new(MockTaskRepository)
	svc := newService(repo, anonymousProvider{})

	assert.NotPanics(t, func() {
		_, err := svc.ListTasks(context.Background(), query.Options{})
		requireCode(t, err, service.CodeUnauthenticated)
	})

	_, err := svc.Analytics(context.Background())
	requireCode(t, err, service.CodeUnauthenticated)

	repo.AssertNotCalled(t, "ListTasks", mock.Anything)
}

func TestTaskService_UpdateTask(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("UpdateTask", mock.Anything, int64(3), mock.MatchedBy(func(p task.Patch) bool {
		return p.Title != nil && *p.Title == "New" && p.ClearDueDate
	})).Return(task.Task{ID: 3, Title: "New"}, nil)

	svc := newService(repo, signedIn())
	updated, err := svc.UpdateTask(context.Background(), 3, task.WithTitle("New"), task.WithoutDueDate())
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)

	_, err = svc.UpdateTask(context.Background(), 3)
	requireCode(t, err, service.CodeValidation)

	repo.AssertExpectations(t)
}

func TestTaskService_GetTask(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("ListTasks", mock.Anything).Return([]task.Task{{ID: 4, Title: "found"}}, nil)

	svc := newService(repo, signedIn())
	got, err := svc.GetTask(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "found", got.Title)

	_, err = svc.GetTask(context.Background(), 5)
	requireCode(t, err, service.CodeNotFound)
}

func TestTaskService_Views(t *testing.T) {
	due := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	repo := new(MockTaskRepository)
	repo.On("ListTasks", mock.Anything).Return([]task.Task{
		{ID: 1, Priority: task.PriorityHigh, DueDate: &due, CreatedAt: now.Add(-time.Hour), UpdatedAt: now},
		{ID: 2, IsComplete: true, CreatedAt: now.Add(-time.Hour), UpdatedAt: now},
	}, nil).Once()

	svc := newService(repo, signedIn())
	ctx := context.Background()

	report, err := svc.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stats.Total)
	assert.Equal(t, 1, report.Stats.Overdue)

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, dash.CompletionRate)

	day := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	view, err := svc.CalendarMonth(ctx, nil, &day)
	require.NoError(t, err)
	assert.Equal(t, time.May, view.Month.Month())
	assert.Zero(t, len(view.Days)%7)
	require.Len(t, view.Selected, 1)
	assert.Equal(t, int64(1), view.Selected[0].ID)

	repo.AssertExpectations(t)
}

func TestTaskService_SignOut(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("ListTasks", mock.Anything).Return([]task.Task{}, nil).Twice()
	users := signedIn()
	svc := newService(repo, users)
	ctx := context.Background()

	_, err := svc.ListTasks(ctx, query.Options{})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx))
	assert.True(t, users.signedOut)

	_, err = svc.ListTasks(ctx, query.Options{})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
