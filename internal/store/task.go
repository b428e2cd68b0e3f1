package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/domain"
)

// SortOrder controls the created_at ordering of listed tasks.
type SortOrder string

// Supported sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// IsValid reports whether the order is one of the supported values.
func (o SortOrder) IsValid() bool {
	return o == SortAsc || o == SortDesc
}

// Pagination bounds for task listing.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// TaskFilter holds the optional filter fields for task listing.
// A nil field is absent and excluded from the WHERE clause; a non-nil
// field is always included, even when it holds a zero value.
type TaskFilter struct {
	AuthorID       *uuid.UUID
	AssignedUserID *uuid.UUID
	Status         *domain.TaskStatus
}

// TaskQuery describes one page of a filtered task listing.
type TaskQuery struct {
	TaskFilter
	Page  int       // 1-based page number
	Limit int       // rows per page, in [1, MaxPageLimit]
	Order SortOrder // created_at ordering
}

// TaskPage is one page of tasks plus the total count of rows matching
// the filter set (unaffected by paging).
type TaskPage struct {
	Tasks []*domain.Task
	Total int
}

// UpdateTask holds the optional fields of a partial task update.
// A nil field is absent and excluded from the SET clause; a non-nil
// field is always assigned, even when it holds a zero value.
type UpdateTask struct {
	Title          *string
	Description    *string
	AuthorID       *uuid.UUID
	AssignedUserID *uuid.UUID
	Status         *domain.TaskStatus
}

// IsEmpty reports whether no fields are present. Callers use this to
// short-circuit an update into a plain fetch instead of issuing a
// malformed empty SET clause.
func (u UpdateTask) IsEmpty() bool {
	return u.Title == nil &&
		u.Description == nil &&
		u.AuthorID == nil &&
		u.AssignedUserID == nil &&
		u.Status == nil
}

// TaskUpload is one normalized row of a bulk task import. Author and
// assignee are set to the importing principal before the batch reaches
// the store.
type TaskUpload struct {
	Title          string
	Description    string
	Status         domain.TaskStatus
	AuthorID       uuid.UUID
	AssignedUserID uuid.UUID
}

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create inserts a new task and returns the storage-assigned ID.
	// The stored status is always "new" and the assignee defaults to the
	// author when the task carries none. Returns validation errors from
	// the domain Task if data is invalid, and ErrInvalidEntity if the
	// author or assignee does not exist.
	Create(ctx context.Context, task *domain.Task) (int64, error)

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// Paginate returns one page of tasks matching the query's filter set
	// together with the total count of matching rows. The total is
	// computed by the same statement as the page (window aggregate), so
	// it is consistent with that statement's own snapshot; it is not
	// guaranteed stable across calls under concurrent writes.
	Paginate(ctx context.Context, q TaskQuery) (*TaskPage, error)

	// Update applies a partial update and returns the resulting task.
	// An empty change set degrades to GetByID and does not touch
	// updated_at; any assignment refreshes updated_at. Returns
	// ErrTaskNotFound if no row matched the ID.
	Update(ctx context.Context, id int64, changes UpdateTask) (*domain.Task, error)

	// Delete removes a task by ID. Returns true if a row was removed and
	// false if the ID did not exist. The error is non-nil only on
	// storage failure.
	Delete(ctx context.Context, id int64) (bool, error)

	// CreateMany inserts a batch of uploaded tasks in a single
	// transaction and returns the assigned IDs in input order. The batch
	// is all-or-nothing. Returns ErrEmptyBatch when the batch has no
	// rows.
	CreateMany(ctx context.Context, uploads []TaskUpload) ([]int64, error)

	// ForEachTask streams every task matching the filter, in the given
	// created_at order, invoking fn once per row. The result set is
	// never materialized in full; a non-nil error from fn aborts the
	// walk and is returned.
	ForEachTask(ctx context.Context, filter TaskFilter, order SortOrder, fn func(*domain.Task) error) error

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller
	// (typically via RunInTransaction); the store never commits, rolls
	// back, or otherwise releases it.
	WithTx(tx *sql.Tx) TaskStore
}
