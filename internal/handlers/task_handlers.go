package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"domore/internal/analytics"
	"domore/internal/dates"
	"domore/internal/handlers/dto"
	"domore/internal/logger"
	"domore/internal/models/task"
	"domore/internal/query"
	"domore/internal/service"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Service interface {
	Now() time.Time
	Calendar() dates.Calendar
	HealthCheck(ctx context.Context) error
	ListTasks(ctx context.Context, opts query.Options) ([]task.Task, error)
	GetTask(ctx context.Context, id int64) (task.Task, error)
	CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error)
	UpdateTask(ctx context.Context, id int64, opts ...task.PatchOption) (task.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ToggleComplete(ctx context.Context, id int64) (task.Task, error)
	Analytics(ctx context.Context) (analytics.Report, error)
	Dashboard(ctx context.Context) (analytics.Dashboard, error)
	CalendarMonth(ctx context.Context, month, day *time.Time) (service.CalendarView, error)
	SignOut(ctx context.Context) error
}

var _ Service = (*service.TaskService)(nil)

type TaskHandler struct {
	TaskService Service
}

func NewTaskHandler(taskService Service) *TaskHandler {
	return &TaskHandler{TaskService: taskService}
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: health check")

	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: health check failed", err)
		responseWithError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	healthCheck(w)
}

// ListTasks accepts filter, sort, q and date (YYYY-MM-DD) query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := r.URL.Query()

	filter, err := query.ParseFilter(params.Get("filter"))
	if err != nil {
		logger.Warn("HTTP: bad query parameter", zap.String("query", "filter"), zap.Error(err))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	sortBy, err := query.ParseSort(params.Get("sort"))
	if err != nil {
		logger.Warn("HTTP: bad query parameter", zap.String("query", "sort"), zap.Error(err))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := query.Options{Filter: filter, Sort: sortBy, Text: params.Get("q")}
	if raw := params.Get("date"); raw != "" {
		day, err := h.TaskService.Calendar().ParseDay(raw)
		if err != nil {
			logger.Warn("HTTP: bad query parameter", zap.String("query", "date"), zap.Error(err))
			responseWithError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		opts.Date = &day
	}

	tasks, err := h.TaskService.ListTasks(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, "list_tasks", err)
		return
	}

	logger.Info("HTTP_OUT: tasks listed",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("tasks", dto.FromTaskList(tasks, h.TaskService.Now())),
		toPayload("count", len(tasks)))
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: wrong content type",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var request dto.CreateTaskRequest
	if err := decodeJSON(w, r, &request); err != nil {
		logger.Warn("HTTP: failed to read JSON", zap.Error(err), zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := h.TaskService.CreateTask(r.Context(), request.Input())
	if err != nil {
		writeServiceError(w, r, "create_task", err)
		return
	}

	logger.Info("HTTP_OUT: task created",
		zap.Int64("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("task", dto.FromTask(created, h.TaskService.Now())))
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	found, err := h.TaskService.GetTask(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get_task", err)
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(found, h.TaskService.Now())))
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := taskID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	var request dto.UpdateTaskRequest
	if err := decodeJSON(w, r, &request); err != nil {
		logger.Warn("HTTP: failed to read JSON", zap.Error(err), zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	opts, err := request.Options()
	if err != nil {
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.TaskService.UpdateTask(r.Context(), id, opts...)
	if err != nil {
		writeServiceError(w, r, "update_task", err)
		return
	}

	logger.Info("HTTP_OUT: task updated",
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(updated, h.TaskService.Now())))
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	if err := h.TaskService.DeleteTask(r.Context(), id); err != nil {
		writeServiceError(w, r, "delete_task", err)
		return
	}

	logger.Info("HTTP_OUT: task deleted", zap.Int64("task_id", id), zap.Int("http_status", http.StatusNoContent))
	responseWithJSON(w, http.StatusNoContent)
}

func (h *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	toggled, err := h.TaskService.ToggleComplete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "toggle_task", err)
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(toggled, h.TaskService.Now())))
}

func (h *TaskHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.TaskService.Analytics(r.Context())
	if err != nil {
		writeServiceError(w, r, "analytics", err)
		return
	}
	responseWithJSON(w, http.StatusOK,
		toPayload("basic", report.Stats),
		toPayload("charts", map[string]any{
			"priority": report.Priority,
			"status":   report.Status,
			"weekly":   report.Weekly,
			"monthly":  report.Monthly,
		}))
}

func (h *TaskHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.TaskService.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, "dashboard", err)
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("stats", stats))
}

// Calendar accepts month (YYYY-MM) and day (YYYY-MM-DD); both are optional.
func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	cal := h.TaskService.Calendar()
	params := r.URL.Query()

	var month, day *time.Time
	if raw := params.Get("month"); raw != "" {
		m, err := cal.ParseMonth(raw)
		if err != nil {
			responseWithError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		month = &m
	}
	if raw := params.Get("day"); raw != "" {
		d, err := cal.ParseDay(raw)
		if err != nil {
			responseWithError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}
		day = &d
		if month == nil {
			month = &d
		}
	}

	view, err := h.TaskService.CalendarMonth(r.Context(), month, day)
	if err != nil {
		writeServiceError(w, r, "calendar", err)
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("calendar", view))
}

func (h *TaskHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.TaskService.SignOut(r.Context()); err != nil {
		writeServiceError(w, r, "logout", err)
		return
	}
	responseWithJSON(w, http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
