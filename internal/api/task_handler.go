package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/platform/logger"
	"github.com/phrazzld/task-api/internal/store"
)

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	taskStore store.TaskStore
	logger    *slog.Logger
}

// NewTaskHandler creates a new task handler with the given task store.
func NewTaskHandler(taskStore store.TaskStore, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskStore: taskStore,
		logger:    logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /tasks requests.
// The authenticated user becomes the task's author; the assignee defaults
// to the author when none is supplied.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, err := getUserIDFromContext(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	assignee, err := parseOptionalUUID(req.AssignedUserID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid assigned_user_id")
		return
	}

	task, err := domain.NewTask(req.Title, req.Description, userID, assignee)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	id, err := h.taskStore.Create(r.Context(), task)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}
	task.ID = id

	log.Debug("task created", "task_id", id, "author_id", userID)
	shared.RespondWithJSON(w, r, http.StatusCreated, NewTaskResponse(task))
}

// GetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r)
	if err != nil {
		HandleAPIError(w, r, err, "Invalid task ID")
		return
	}

	task, err := h.taskStore.GetByID(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retrieve task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// ListTasks handles GET /tasks requests with optional filtering, paging
// and ordering query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	query, err := parseTaskQuery(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.taskStore.Paginate(r.Context(), query)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	tasks := make([]TaskResponse, 0, len(page.Tasks))
	for _, task := range page.Tasks {
		tasks = append(tasks, NewTaskResponse(task))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskPageResponse{
		Tasks: tasks,
		Total: page.Total,
		Page:  query.Page,
		Limit: query.Limit,
	})
}

// UpdateTask handles PATCH /tasks/{id} requests.
// Only the fields present in the body are assigned; an empty body is a
// no-op that returns the current task.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r)
	if err != nil {
		HandleAPIError(w, r, err, "Invalid task ID")
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	changes, err := buildUpdateChanges(req)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskStore.Update(r.Context(), id, changes)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// DeleteTask handles DELETE /tasks/{id} requests.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathID(r)
	if err != nil {
		HandleAPIError(w, r, err, "Invalid task ID")
		return
	}

	deleted, err := h.taskStore.Delete(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	if !deleted {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	log.Debug("task deleted", "task_id", id)
	shared.RespondWithJSON(w, r, http.StatusOK, DeleteTaskResponse{ID: id})
}

// AssignTask handles PATCH /tasks/{id}/assign requests, reassigning the
// task to another user.
func (h *TaskHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r)
	if err != nil {
		HandleAPIError(w, r, err, "Invalid task ID")
		return
	}

	var req AssignTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	assignee, err := parseOptionalUUID(&req.AssignedUserID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid assigned_user_id")
		return
	}

	task, err := h.taskStore.Update(r.Context(), id, store.UpdateTask{AssignedUserID: assignee})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to assign task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// parseTaskQuery builds the listing query from the request's query string.
// Unknown parameters are ignored; malformed recognized parameters fail.
func parseTaskQuery(r *http.Request) (store.TaskQuery, error) {
	q := store.TaskQuery{
		Page:  1,
		Limit: store.DefaultPageLimit,
		Order: store.SortDesc,
	}
	values := r.URL.Query()

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return q, domain.NewValidationError("page", "must be a positive integer", domain.ErrValidation)
		}
		q.Page = page
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > store.MaxPageLimit {
			return q, domain.NewValidationError("limit",
				"must be an integer between 1 and "+strconv.Itoa(store.MaxPageLimit), domain.ErrValidation)
		}
		q.Limit = limit
	}

	if raw := values.Get("order"); raw != "" {
		order := store.SortOrder(raw)
		if !order.IsValid() {
			return q, domain.NewValidationError("order", "must be asc or desc", domain.ErrValidation)
		}
		q.Order = order
	}

	filter, err := parseTaskFilter(values)
	if err != nil {
		return q, err
	}
	q.TaskFilter = filter

	return q, nil
}

// parseTaskFilter extracts the optional filter fields shared by listing
// and export.
func parseTaskFilter(values map[string][]string) (store.TaskFilter, error) {
	var filter store.TaskFilter
	get := func(key string) string {
		if vs := values[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	if raw := get("author_id"); raw != "" {
		id, err := parseOptionalUUID(&raw)
		if err != nil {
			return filter, domain.NewValidationError("author_id", "must be a valid UUID", domain.ErrValidation)
		}
		filter.AuthorID = id
	}

	if raw := get("assigned_user_id"); raw != "" {
		id, err := parseOptionalUUID(&raw)
		if err != nil {
			return filter, domain.NewValidationError("assigned_user_id", "must be a valid UUID", domain.ErrValidation)
		}
		filter.AssignedUserID = id
	}

	if raw := get("status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return filter, domain.NewValidationError("status", "must be a valid task status", domain.ErrValidation)
		}
		filter.Status = &status
	}

	return filter, nil
}

// buildUpdateChanges converts the request DTO into the store's partial
// update, parsing UUID and status fields.
func buildUpdateChanges(req UpdateTaskRequest) (store.UpdateTask, error) {
	changes := store.UpdateTask{
		Title:       req.Title,
		Description: req.Description,
	}

	authorID, err := parseOptionalUUID(req.AuthorID)
	if err != nil {
		return changes, domain.NewValidationError("author_id", "must be a valid UUID", domain.ErrValidation)
	}
	changes.AuthorID = authorID

	assignee, err := parseOptionalUUID(req.AssignedUserID)
	if err != nil {
		return changes, domain.NewValidationError("assigned_user_id", "must be a valid UUID", domain.ErrValidation)
	}
	changes.AssignedUserID = assignee

	if req.Status != nil {
		status, err := domain.ParseTaskStatus(*req.Status)
		if err != nil {
			return changes, domain.NewValidationError("status", "must be a valid task status", domain.ErrValidation)
		}
		changes.Status = &status
	}

	return changes, nil
}
