package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/bulk"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/platform/logger"
	"github.com/phrazzld/task-api/internal/store"
)

// Upload bounds for CSV imports.
const (
	// MaxImportBytes caps the uploaded file size.
	MaxImportBytes = 1 << 20 // 1 MiB

	// ImportFormField is the multipart form field carrying the file.
	ImportFormField = "taskListFile"
)

// TaskCSVHandler handles bulk CSV import and export of tasks.
type TaskCSVHandler struct {
	taskStore store.TaskStore
	logger    *slog.Logger
}

// NewTaskCSVHandler creates a new CSV handler with the given task store.
func NewTaskCSVHandler(taskStore store.TaskStore, logger *slog.Logger) *TaskCSVHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskCSVHandler{
		taskStore: taskStore,
		logger:    logger.With("component", "task_csv_handler"),
	}
}

// ImportTasks handles POST /tasks/import requests. The uploaded CSV is
// decoded as a stream, normalized onto the authenticated user, and
// inserted as one all-or-nothing batch. Responds with the assigned IDs
// in file order.
func (h *TaskCSVHandler) ImportTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, err := getUserIDFromContext(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)

	file, _, err := r.FormFile(ImportFormField)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Uploaded file is too large")
			return
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing uploaded file")
		return
	}
	defer func() { _ = file.Close() }()

	rows, rejected, err := bulk.NewImporter(file).DecodeAll(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to parse uploaded file")
		return
	}
	for _, rej := range rejected {
		log.Debug("import row rejected", "line", rej.Line, "error", rej.Err)
	}

	uploads := make([]store.TaskUpload, 0, len(rows))
	for _, row := range rows {
		uploads = append(uploads, row.Upload(userID))
	}

	ids, err := h.taskStore.CreateMany(r.Context(), uploads)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to import tasks")
		return
	}

	created := make([]CreatedTaskResponse, 0, len(ids))
	for _, id := range ids {
		created = append(created, CreatedTaskResponse{ID: id})
	}

	log.Info("tasks imported",
		"created", len(created),
		"rejected", len(rejected),
		"user_id", userID)
	shared.RespondWithJSON(w, r, http.StatusCreated, created)
}

// ExportTasks handles GET /tasks/export requests. Matching tasks stream
// directly onto the response as CSV; the result set is never materialized
// in memory. Accepts the same filter parameters as the listing endpoint
// plus an optional order.
func (h *TaskCSVHandler) ExportTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	filter, err := parseTaskFilter(r.URL.Query())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	order := store.SortAsc
	if raw := r.URL.Query().Get("order"); raw != "" {
		order = store.SortOrder(raw)
		if !order.IsValid() {
			shared.RespondWithError(w, r, http.StatusBadRequest, "order must be asc or desc")
			return
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+bulk.ExportFilename+`"`)

	exporter := bulk.NewExporter(w)
	count := 0
	err = h.taskStore.ForEachTask(r.Context(), filter, order, func(task *domain.Task) error {
		count++
		return exporter.WriteTask(task)
	})
	if err != nil {
		// Rows are buffered until Flush, so a failure before the first row
		// can still produce a clean error response. After that the download
		// can only be truncated and logged.
		if count == 0 {
			w.Header().Del("Content-Disposition")
			HandleAPIError(w, r, err, "Failed to export tasks")
			return
		}
		log.Error("task export aborted mid-stream", "error", err, "rows_written", count)
		return
	}

	if err := exporter.Flush(); err != nil {
		log.Error("failed to flush task export", "error", err, "rows_written", count)
		return
	}

	log.Debug("tasks exported", "rows_written", count)
}
