package bulk

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/phrazzld/task-api/internal/domain"
)

// ExportFilename is the download filename of a task export.
const ExportFilename = "task-list.csv"

// exportHeader is the fixed column order of the export contract.
var exportHeader = []string{
	"id",
	"title",
	"description",
	"status",
	"author_id",
	"assigned_user_id",
	"created_at",
	"updated_at",
}

// Exporter serializes tasks as CSV, one row at a time, directly onto the
// destination writer. Pointing it at an http.ResponseWriter streams the
// export without materializing the result set.
type Exporter struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewExporter creates an Exporter writing to w.
func NewExporter(w io.Writer) *Exporter {
	return &Exporter{w: csv.NewWriter(w)}
}

// WriteTask appends one task row, emitting the header line first if this
// is the first row. Timestamps serialize as RFC 3339 UTC strings.
func (e *Exporter) WriteTask(task *domain.Task) error {
	if !e.wroteHeader {
		if err := e.w.Write(exportHeader); err != nil {
			return err
		}
		e.wroteHeader = true
	}

	assigned := ""
	if task.AssignedUserID != nil {
		assigned = task.AssignedUserID.String()
	}

	return e.w.Write([]string{
		strconv.FormatInt(task.ID, 10),
		task.Title,
		task.Description,
		string(task.Status),
		task.AuthorID.String(),
		assigned,
		task.CreatedAt.UTC().Format(time.RFC3339),
		task.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// Flush writes the header (for an empty export) and any buffered rows,
// then reports the first write error encountered.
func (e *Exporter) Flush() error {
	if !e.wroteHeader {
		if err := e.w.Write(exportHeader); err != nil {
			return err
		}
		e.wroteHeader = true
	}
	e.w.Flush()
	return e.w.Error()
}
