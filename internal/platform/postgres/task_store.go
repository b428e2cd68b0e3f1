package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/platform/logger"
	"github.com/phrazzld/task-api/internal/store"
)

// taskColumns is the canonical column list for task SELECTs, matching the
// scan order of scanTask.
const taskColumns = "id, title, description, author_id, assigned_user_id, status, created_at, updated_at"

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
// The returned store executes against the caller's transaction. The caller
// that began the transaction owns commit/rollback; this store never
// releases the handle it is given.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create
// It inserts a new task row with status "new" and server-assigned
// timestamps, and returns the generated ID. The assignee defaults to the
// author when the task carries none.
// Returns store.ErrInvalidEntity if the author or assignee doesn't exist
// (foreign key violation).
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("author_id", task.AuthorID.String()))
		return 0, err
	}

	assignee := task.AuthorID
	if task.AssignedUserID != nil {
		assignee = *task.AssignedUserID
	}

	query := `
		INSERT INTO tasks (title, description, author_id, assigned_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	var id int64
	err := s.db.QueryRowContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.AuthorID,
		assignee,
		domain.TaskStatusNew,
	).Scan(&id, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during task creation",
				slog.String("error", err.Error()),
				slog.String("author_id", task.AuthorID.String()))
			return 0, fmt.Errorf("%w: author or assignee does not exist",
				store.ErrInvalidEntity)
		}

		if isCheckViolation(err) {
			log.Warn("check violation during task creation",
				slog.String("error", err.Error()))
			return 0, fmt.Errorf("%w: value rejected by a storage constraint",
				store.ErrInvalidEntity)
		}

		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("author_id", task.AuthorID.String()))
		return 0, store.NewStoreError("task", "create", "insert failed", err)
	}

	task.ID = id
	task.AssignedUserID = &assignee
	task.Status = domain.TaskStatusNew

	log.Info("task created successfully",
		slog.Int64("task_id", id),
		slog.String("author_id", task.AuthorID.String()))
	return id, nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = $1", taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, store.NewStoreError("task", "get", "query failed", err)
	}

	return task, nil
}

// buildPaginateQuery constructs the filtered page query and its parameters.
// The total count rides along on every row via a window aggregate, so one
// round trip yields both the page and a total consistent with the query's
// own execution.
func buildPaginateQuery(q store.TaskQuery) (string, []any) {
	b := newSQLBuilder()
	addTaskFilter(b, q.TaskFilter)

	limitIdx := b.Param(q.Limit)
	offsetIdx := b.Param((q.Page - 1) * q.Limit)

	parts := []string{
		fmt.Sprintf("SELECT %s, COUNT(*) OVER() AS total FROM tasks", taskColumns),
	}
	if where := b.WhereClause(); where != "" {
		parts = append(parts, where)
	}
	parts = append(parts, fmt.Sprintf(
		"ORDER BY created_at %s LIMIT $%d OFFSET $%d",
		sortDirection(q.Order), limitIdx, offsetIdx))

	return strings.Join(parts, " "), b.Params()
}

// addTaskFilter adds one predicate per present filter field.
// A non-nil field is always included, even when it holds a zero value.
func addTaskFilter(b *sqlBuilder, f store.TaskFilter) {
	if f.AuthorID != nil {
		b.Add("author_id", *f.AuthorID)
	}
	if f.AssignedUserID != nil {
		b.Add("assigned_user_id", *f.AssignedUserID)
	}
	if f.Status != nil {
		b.Add("status", *f.Status)
	}
}

// sortDirection maps the validated order to a SQL keyword. The raw request
// value never reaches the SQL text.
func sortDirection(order store.SortOrder) string {
	if order == store.SortAsc {
		return "ASC"
	}
	return "DESC"
}

// Paginate implements store.TaskStore.Paginate
func (s *PostgresTaskStore) Paginate(ctx context.Context, q store.TaskQuery) (*store.TaskPage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// Normalize paging bounds
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = store.DefaultPageLimit
	}
	if q.Limit > store.MaxPageLimit {
		q.Limit = store.MaxPageLimit
	}

	query, params := buildPaginateQuery(q)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		log.Error("failed to query task page",
			slog.String("error", err.Error()),
			slog.Int("page", q.Page),
			slog.Int("limit", q.Limit))
		return nil, store.NewStoreError("task", "paginate", "query failed", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	page := &store.TaskPage{Tasks: []*domain.Task{}}
	for rows.Next() {
		task, total, err := scanTaskWithTotal(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()))
			return nil, store.NewStoreError("task", "paginate", "scan failed", err)
		}
		// Same value on every row of the window aggregate.
		page.Total = total
		page.Tasks = append(page.Tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "paginate", "row iteration failed", err)
	}

	log.Debug("task page retrieved",
		slog.Int("count", len(page.Tasks)),
		slog.Int("total", page.Total))
	return page, nil
}

// buildUpdateQuery constructs the partial UPDATE statement from the present
// change fields. ok is false when no fields are present: the caller must
// short-circuit to a plain fetch instead of issuing an empty SET clause.
// Any assignment also refreshes updated_at from the database clock, the
// same source that stamps created_at on insert, so updated_at can never
// land behind created_at under app/DB clock skew.
func buildUpdateQuery(id int64, changes store.UpdateTask) (query string, params []any, ok bool) {
	b := newSQLBuilder()

	if changes.Title != nil {
		b.Add("title", *changes.Title)
	}
	if changes.Description != nil {
		b.Add("description", *changes.Description)
	}
	if changes.AuthorID != nil {
		b.Add("author_id", *changes.AuthorID)
	}
	if changes.AssignedUserID != nil {
		b.Add("assigned_user_id", *changes.AssignedUserID)
	}
	if changes.Status != nil {
		b.Add("status", *changes.Status)
	}

	if b.Len() == 0 {
		return "", nil, false
	}

	b.Raw("updated_at = NOW()")
	idIdx := b.Param(id)

	query = fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", b.SetClause(), idIdx)
	return query, b.Params(), true
}

// Update implements store.TaskStore.Update
// An empty change set degrades to GetByID without touching updated_at.
// Returns store.ErrTaskNotFound if no row matched the ID.
func (s *PostgresTaskStore) Update(ctx context.Context, id int64, changes store.UpdateTask) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if changes.Status != nil && !domain.IsValidTaskStatus(*changes.Status) {
		return nil, domain.ErrInvalidTaskStatus
	}

	query, params, ok := buildUpdateQuery(id, changes)
	if !ok {
		log.Debug("empty update degraded to fetch", slog.Int64("task_id", id))
		return s.GetByID(ctx, id)
	}

	result, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: assignee does not exist", store.ErrInvalidEntity)
		}
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: value rejected by a storage constraint", store.ErrInvalidEntity)
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, store.NewStoreError("task", "update", "exec failed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, store.NewStoreError("task", "update", "rows affected unavailable", err)
	}

	if rowsAffected == 0 {
		log.Debug("task not found for update", slog.Int64("task_id", id))
		return nil, store.ErrTaskNotFound
	}

	log.Info("task updated successfully", slog.Int64("task_id", id))
	return s.GetByID(ctx, id)
}

// Delete implements store.TaskStore.Delete
// Returns true if a row was removed, false if the ID did not exist.
func (s *PostgresTaskStore) Delete(ctx context.Context, id int64) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return false, store.NewStoreError("task", "delete", "exec failed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return false, store.NewStoreError("task", "delete", "rows affected unavailable", err)
	}

	deleted := rowsAffected > 0
	if deleted {
		log.Info("task deleted", slog.Int64("task_id", id))
	} else {
		log.Debug("task not found for delete", slog.Int64("task_id", id))
	}
	return deleted, nil
}

// CreateMany implements store.TaskStore.CreateMany
// The batch is inserted in a single all-or-nothing transaction; IDs come
// back in input order. When the store is already bound to a caller-owned
// transaction, the rows join that transaction instead.
func (s *PostgresTaskStore) CreateMany(ctx context.Context, uploads []store.TaskUpload) ([]int64, error) {
	if len(uploads) == 0 {
		return nil, store.ErrEmptyBatch
	}

	if db, ok := s.db.(*sql.DB); ok {
		var ids []int64
		err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			var txErr error
			ids, txErr = s.WithTx(tx).CreateMany(ctx, uploads)
			return txErr
		})
		if err != nil {
			return nil, err
		}
		return ids, nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO tasks (title, description, author_id, assigned_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id
	`

	ids := make([]int64, 0, len(uploads))
	for i, upload := range uploads {
		task := &domain.Task{
			Title:       upload.Title,
			Description: upload.Description,
			AuthorID:    upload.AuthorID,
			Status:      upload.Status,
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		assignee := upload.AssignedUserID
		if assignee == uuid.Nil {
			assignee = upload.AuthorID
		}

		var id int64
		err := s.db.QueryRowContext(
			ctx,
			query,
			upload.Title,
			upload.Description,
			upload.AuthorID,
			assignee,
			upload.Status,
		).Scan(&id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("row %d: %w: author or assignee does not exist",
					i+1, store.ErrInvalidEntity)
			}
			if isCheckViolation(err) {
				return nil, fmt.Errorf("row %d: %w: value rejected by a storage constraint",
					i+1, store.ErrInvalidEntity)
			}
			log.Error("failed to insert uploaded task",
				slog.String("error", err.Error()),
				slog.Int("row", i+1))
			return nil, store.NewStoreError("task", "create_many", "insert failed", err)
		}
		ids = append(ids, id)
	}

	log.Info("task batch created", slog.Int("count", len(ids)))
	return ids, nil
}

// ForEachTask implements store.TaskStore.ForEachTask
// Rows stream through fn one at a time; the result set is never
// materialized in full.
func (s *PostgresTaskStore) ForEachTask(
	ctx context.Context,
	filter store.TaskFilter,
	order store.SortOrder,
	fn func(*domain.Task) error,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	b := newSQLBuilder()
	addTaskFilter(b, filter)

	parts := []string{fmt.Sprintf("SELECT %s FROM tasks", taskColumns)}
	if where := b.WhereClause(); where != "" {
		parts = append(parts, where)
	}
	parts = append(parts, "ORDER BY created_at "+sortDirection(order))
	query := strings.Join(parts, " ")

	rows, err := s.db.QueryContext(ctx, query, b.Params()...)
	if err != nil {
		log.Error("failed to stream tasks",
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "stream", "query failed", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()))
			return store.NewStoreError("task", "stream", "scan failed", err)
		}
		if err := fn(task); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "stream", "row iteration failed", err)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var assigned uuid.NullUUID
	var status string

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.AuthorID,
		&assigned,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assigned.Valid {
		task.AssignedUserID = &assigned.UUID
	}
	task.Status = domain.TaskStatus(status)
	return &task, nil
}

// scanTaskWithTotal reads one task row plus the trailing window-aggregate
// total column.
func scanTaskWithTotal(row rowScanner) (*domain.Task, int, error) {
	var task domain.Task
	var assigned uuid.NullUUID
	var status string
	var total int

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.AuthorID,
		&assigned,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
		&total,
	)
	if err != nil {
		return nil, 0, err
	}

	if assigned.Valid {
		task.AssignedUserID = &assigned.UUID
	}
	task.Status = domain.TaskStatus(status)
	return &task, total, nil
}
