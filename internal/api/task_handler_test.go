package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/store"
)

// stubTaskStore implements store.TaskStore with overridable function fields.
type stubTaskStore struct {
	createFn      func(ctx context.Context, task *domain.Task) (int64, error)
	getByIDFn     func(ctx context.Context, id int64) (*domain.Task, error)
	paginateFn    func(ctx context.Context, q store.TaskQuery) (*store.TaskPage, error)
	updateFn      func(ctx context.Context, id int64, changes store.UpdateTask) (*domain.Task, error)
	deleteFn      func(ctx context.Context, id int64) (bool, error)
	createManyFn  func(ctx context.Context, uploads []store.TaskUpload) ([]int64, error)
	forEachTaskFn func(ctx context.Context, filter store.TaskFilter, order store.SortOrder, fn func(*domain.Task) error) error
}

func (s *stubTaskStore) Create(ctx context.Context, task *domain.Task) (int64, error) {
	return s.createFn(ctx, task)
}

func (s *stubTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	return s.getByIDFn(ctx, id)
}

func (s *stubTaskStore) Paginate(ctx context.Context, q store.TaskQuery) (*store.TaskPage, error) {
	return s.paginateFn(ctx, q)
}

func (s *stubTaskStore) Update(ctx context.Context, id int64, changes store.UpdateTask) (*domain.Task, error) {
	return s.updateFn(ctx, id, changes)
}

func (s *stubTaskStore) Delete(ctx context.Context, id int64) (bool, error) {
	return s.deleteFn(ctx, id)
}

func (s *stubTaskStore) CreateMany(ctx context.Context, uploads []store.TaskUpload) ([]int64, error) {
	return s.createManyFn(ctx, uploads)
}

func (s *stubTaskStore) ForEachTask(ctx context.Context, filter store.TaskFilter, order store.SortOrder, fn func(*domain.Task) error) error {
	return s.forEachTaskFn(ctx, filter, order, fn)
}

func (s *stubTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return s
}

// sampleTask returns a persisted-looking task for stub responses.
func sampleTask(id int64, authorID uuid.UUID) *domain.Task {
	now := time.Now().UTC()
	return &domain.Task{
		ID:             id,
		Title:          "Write report",
		Description:    "Quarterly numbers",
		AuthorID:       authorID,
		AssignedUserID: &authorID,
		Status:         domain.TaskStatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// newAuthedRequest builds a request carrying the authenticated user ID and
// a chi route context with the given path parameters.
func newAuthedRequest(method, target string, body *bytes.Buffer, userID uuid.UUID, params map[string]string) *http.Request {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)

	ctx := context.WithValue(req.Context(), shared.UserIDContextKey, userID)
	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	return req.WithContext(ctx)
}

// jsonBody marshals v into a request body buffer.
func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

// TestCreateTask exercises the create endpoint.
func TestCreateTask(t *testing.T) {
	userID := uuid.New()

	t.Run("success with defaulted assignee", func(t *testing.T) {
		var captured *domain.Task
		ts := &stubTaskStore{
			createFn: func(ctx context.Context, task *domain.Task) (int64, error) {
				captured = task
				return 42, nil
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodPost, "/api/tasks",
			jsonBody(t, CreateTaskRequest{Title: "Write report", Description: "Quarterly numbers"}),
			userID, nil)
		rec := httptest.NewRecorder()

		h.CreateTask(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, userID, captured.AuthorID)
		require.NotNil(t, captured.AssignedUserID)
		assert.Equal(t, userID, *captured.AssignedUserID, "assignee should default to the author")
		assert.Equal(t, domain.TaskStatusNew, captured.Status)

		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(42), resp.ID)
		assert.Equal(t, "new", resp.Status)
	})

	t.Run("missing title", func(t *testing.T) {
		h := NewTaskHandler(&stubTaskStore{}, nil)

		req := newAuthedRequest(http.MethodPost, "/api/tasks",
			jsonBody(t, CreateTaskRequest{Description: "no title"}),
			userID, nil)
		rec := httptest.NewRecorder()

		h.CreateTask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := NewTaskHandler(&stubTaskStore{}, nil)

		req := newAuthedRequest(http.MethodPost, "/api/tasks",
			bytes.NewBufferString("{not json"), userID, nil)
		rec := httptest.NewRecorder()

		h.CreateTask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown assignee maps to 400", func(t *testing.T) {
		ts := &stubTaskStore{
			createFn: func(ctx context.Context, task *domain.Task) (int64, error) {
				return 0, store.ErrInvalidEntity
			},
		}
		h := NewTaskHandler(ts, nil)

		other := uuid.New().String()
		req := newAuthedRequest(http.MethodPost, "/api/tasks",
			jsonBody(t, CreateTaskRequest{Title: "t", Description: "d", AssignedUserID: &other}),
			userID, nil)
		rec := httptest.NewRecorder()

		h.CreateTask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestGetTask exercises fetch-by-ID.
func TestGetTask(t *testing.T) {
	userID := uuid.New()

	t.Run("found", func(t *testing.T) {
		ts := &stubTaskStore{
			getByIDFn: func(ctx context.Context, id int64) (*domain.Task, error) {
				return sampleTask(id, userID), nil
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodGet, "/api/tasks/7", nil, userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.GetTask(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(7), resp.ID)
	})

	t.Run("not found", func(t *testing.T) {
		ts := &stubTaskStore{
			getByIDFn: func(ctx context.Context, id int64) (*domain.Task, error) {
				return nil, store.ErrTaskNotFound
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodGet, "/api/tasks/7", nil, userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.GetTask(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		h := NewTaskHandler(&stubTaskStore{}, nil)

		req := newAuthedRequest(http.MethodGet, "/api/tasks/abc", nil, userID, map[string]string{"id": "abc"})
		rec := httptest.NewRecorder()

		h.GetTask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestListTasks exercises filter and paging parameter handling.
func TestListTasks(t *testing.T) {
	userID := uuid.New()

	t.Run("defaults", func(t *testing.T) {
		var captured store.TaskQuery
		ts := &stubTaskStore{
			paginateFn: func(ctx context.Context, q store.TaskQuery) (*store.TaskPage, error) {
				captured = q
				return &store.TaskPage{Tasks: []*domain.Task{sampleTask(1, userID)}, Total: 1}, nil
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodGet, "/api/tasks", nil, userID, nil)
		rec := httptest.NewRecorder()

		h.ListTasks(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, captured.Page)
		assert.Equal(t, store.DefaultPageLimit, captured.Limit)
		assert.Equal(t, store.SortDesc, captured.Order)
		assert.Nil(t, captured.AuthorID)

		var resp TaskPageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
		assert.Len(t, resp.Tasks, 1)
	})

	t.Run("explicit filters and paging", func(t *testing.T) {
		author := uuid.New()
		var captured store.TaskQuery
		ts := &stubTaskStore{
			paginateFn: func(ctx context.Context, q store.TaskQuery) (*store.TaskPage, error) {
				captured = q
				return &store.TaskPage{Tasks: []*domain.Task{}, Total: 0}, nil
			},
		}
		h := NewTaskHandler(ts, nil)

		target := "/api/tasks?page=3&limit=25&order=asc&author_id=" + author.String() + "&status=completed"
		req := newAuthedRequest(http.MethodGet, target, nil, userID, nil)
		rec := httptest.NewRecorder()

		h.ListTasks(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, captured.Page)
		assert.Equal(t, 25, captured.Limit)
		assert.Equal(t, store.SortAsc, captured.Order)
		require.NotNil(t, captured.AuthorID)
		assert.Equal(t, author, *captured.AuthorID)
		require.NotNil(t, captured.Status)
		assert.Equal(t, domain.TaskStatusCompleted, *captured.Status)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		h := NewTaskHandler(&stubTaskStore{}, nil)

		for _, target := range []string{
			"/api/tasks?page=0",
			"/api/tasks?page=abc",
			"/api/tasks?limit=1000",
			"/api/tasks?order=sideways",
			"/api/tasks?status=done",
			"/api/tasks?author_id=not-a-uuid",
		} {
			req := newAuthedRequest(http.MethodGet, target, nil, userID, nil)
			rec := httptest.NewRecorder()

			h.ListTasks(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
		}
	})
}

// TestUpdateTask exercises the partial update endpoint.
func TestUpdateTask(t *testing.T) {
	userID := uuid.New()

	t.Run("partial change set", func(t *testing.T) {
		var captured store.UpdateTask
		ts := &stubTaskStore{
			updateFn: func(ctx context.Context, id int64, changes store.UpdateTask) (*domain.Task, error) {
				captured = changes
				return sampleTask(id, userID), nil
			},
		}
		h := NewTaskHandler(ts, nil)

		title := "New title"
		status := "completed"
		req := newAuthedRequest(http.MethodPatch, "/api/tasks/7",
			jsonBody(t, UpdateTaskRequest{Title: &title, Status: &status}),
			userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.UpdateTask(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured.Title)
		assert.Equal(t, "New title", *captured.Title)
		assert.Nil(t, captured.Description, "absent fields stay absent")
		require.NotNil(t, captured.Status)
		assert.Equal(t, domain.TaskStatusCompleted, *captured.Status)
	})

	t.Run("empty body is a no-op returning the task", func(t *testing.T) {
		ts := &stubTaskStore{
			updateFn: func(ctx context.Context, id int64, changes store.UpdateTask) (*domain.Task, error) {
				assert.True(t, changes.IsEmpty())
				return sampleTask(id, userID), nil
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodPatch, "/api/tasks/7",
			bytes.NewBufferString("{}"), userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.UpdateTask(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown task", func(t *testing.T) {
		ts := &stubTaskStore{
			updateFn: func(ctx context.Context, id int64, changes store.UpdateTask) (*domain.Task, error) {
				return nil, store.ErrTaskNotFound
			},
		}
		h := NewTaskHandler(ts, nil)

		title := "x"
		req := newAuthedRequest(http.MethodPatch, "/api/tasks/7",
			jsonBody(t, UpdateTaskRequest{Title: &title}),
			userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.UpdateTask(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid status value", func(t *testing.T) {
		h := NewTaskHandler(&stubTaskStore{}, nil)

		status := "done"
		req := newAuthedRequest(http.MethodPatch, "/api/tasks/7",
			jsonBody(t, UpdateTaskRequest{Status: &status}),
			userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.UpdateTask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestDeleteTask exercises deletion.
func TestDeleteTask(t *testing.T) {
	userID := uuid.New()

	t.Run("deleted", func(t *testing.T) {
		ts := &stubTaskStore{
			deleteFn: func(ctx context.Context, id int64) (bool, error) {
				return true, nil
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodDelete, "/api/tasks/7", nil, userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.DeleteTask(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp DeleteTaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(7), resp.ID)
	})

	t.Run("missing row", func(t *testing.T) {
		ts := &stubTaskStore{
			deleteFn: func(ctx context.Context, id int64) (bool, error) {
				return false, nil
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodDelete, "/api/tasks/7", nil, userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.DeleteTask(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		ts := &stubTaskStore{
			deleteFn: func(ctx context.Context, id int64) (bool, error) {
				return false, store.NewStoreError("task", "delete", "exec failed", errors.New("boom"))
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodDelete, "/api/tasks/7", nil, userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.DeleteTask(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

// TestAssignTask exercises reassignment.
func TestAssignTask(t *testing.T) {
	userID := uuid.New()
	newAssignee := uuid.New()

	t.Run("success", func(t *testing.T) {
		var captured store.UpdateTask
		ts := &stubTaskStore{
			updateFn: func(ctx context.Context, id int64, changes store.UpdateTask) (*domain.Task, error) {
				captured = changes
				task := sampleTask(id, userID)
				task.AssignedUserID = &newAssignee
				return task, nil
			},
		}
		h := NewTaskHandler(ts, nil)

		req := newAuthedRequest(http.MethodPatch, "/api/tasks/7/assign",
			jsonBody(t, AssignTaskRequest{AssignedUserID: newAssignee.String()}),
			userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.AssignTask(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured.AssignedUserID)
		assert.Equal(t, newAssignee, *captured.AssignedUserID)
		assert.Nil(t, captured.Title, "assignment must not touch other fields")
	})

	t.Run("missing assignee", func(t *testing.T) {
		h := NewTaskHandler(&stubTaskStore{}, nil)

		req := newAuthedRequest(http.MethodPatch, "/api/tasks/7/assign",
			bytes.NewBufferString("{}"), userID, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()

		h.AssignTask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestImportTasks exercises the CSV upload endpoint.
func TestImportTasks(t *testing.T) {
	userID := uuid.New()

	// buildUpload creates a multipart body with the given CSV content.
	buildUpload := func(t *testing.T, field, content string) (*bytes.Buffer, string) {
		t.Helper()
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile(field, "tasks.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, writer.Close())
		return &body, writer.FormDataContentType()
	}

	t.Run("success", func(t *testing.T) {
		var captured []store.TaskUpload
		ts := &stubTaskStore{
			createManyFn: func(ctx context.Context, uploads []store.TaskUpload) ([]int64, error) {
				captured = uploads
				return []int64{101, 102}, nil
			},
		}
		h := NewTaskCSVHandler(ts, nil)

		body, contentType := buildUpload(t, ImportFormField,
			"title,description,status\nBuy milk,Two liters,new\nShip release,Cut the tag,in-progress\n")
		req := newAuthedRequest(http.MethodPost, "/api/tasks/import", body, userID, nil)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.ImportTasks(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, captured, 2)
		assert.Equal(t, userID, captured[0].AuthorID)
		assert.Equal(t, userID, captured[0].AssignedUserID)
		assert.Equal(t, domain.TaskStatusInProgress, captured[1].Status)

		var resp []CreatedTaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, int64(101), resp[0].ID)
		assert.Equal(t, int64(102), resp[1].ID)
	})

	t.Run("missing file field", func(t *testing.T) {
		h := NewTaskCSVHandler(&stubTaskStore{}, nil)

		body, contentType := buildUpload(t, "wrongField", "title,description\na,b\n")
		req := newAuthedRequest(http.MethodPost, "/api/tasks/import", body, userID, nil)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.ImportTasks(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty file", func(t *testing.T) {
		h := NewTaskCSVHandler(&stubTaskStore{}, nil)

		body, contentType := buildUpload(t, ImportFormField, "title,description\n")
		req := newAuthedRequest(http.MethodPost, "/api/tasks/import", body, userID, nil)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.ImportTasks(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestExportTasks exercises the CSV download endpoint.
func TestExportTasks(t *testing.T) {
	userID := uuid.New()

	t.Run("streams matching tasks", func(t *testing.T) {
		var capturedFilter store.TaskFilter
		var capturedOrder store.SortOrder
		ts := &stubTaskStore{
			forEachTaskFn: func(ctx context.Context, filter store.TaskFilter, order store.SortOrder, fn func(*domain.Task) error) error {
				capturedFilter = filter
				capturedOrder = order
				if err := fn(sampleTask(1, userID)); err != nil {
					return err
				}
				return fn(sampleTask(2, userID))
			},
		}
		h := NewTaskCSVHandler(ts, nil)

		req := newAuthedRequest(http.MethodGet, "/api/tasks/export?status=new", nil, userID, nil)
		rec := httptest.NewRecorder()

		h.ExportTasks(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "task-list.csv")
		assert.Equal(t, store.SortAsc, capturedOrder, "export defaults to ascending order")
		require.NotNil(t, capturedFilter.Status)
		assert.Equal(t, domain.TaskStatusNew, *capturedFilter.Status)

		lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
		require.Len(t, lines, 3, "header plus two rows")
		assert.Equal(t, "id,title,description,status,author_id,assigned_user_id,created_at,updated_at", lines[0])
	})

	t.Run("empty result still yields header", func(t *testing.T) {
		ts := &stubTaskStore{
			forEachTaskFn: func(ctx context.Context, filter store.TaskFilter, order store.SortOrder, fn func(*domain.Task) error) error {
				return nil
			},
		}
		h := NewTaskCSVHandler(ts, nil)

		req := newAuthedRequest(http.MethodGet, "/api/tasks/export", nil, userID, nil)
		rec := httptest.NewRecorder()

		h.ExportTasks(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "id,title,description,status,author_id,assigned_user_id,created_at,updated_at\n", rec.Body.String())
	})

	t.Run("storage failure before first row", func(t *testing.T) {
		ts := &stubTaskStore{
			forEachTaskFn: func(ctx context.Context, filter store.TaskFilter, order store.SortOrder, fn func(*domain.Task) error) error {
				return store.NewStoreError("task", "stream", "query failed", errors.New("boom"))
			},
		}
		h := NewTaskCSVHandler(ts, nil)

		req := newAuthedRequest(http.MethodGet, "/api/tasks/export", nil, userID, nil)
		rec := httptest.NewRecorder()

		h.ExportTasks(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
