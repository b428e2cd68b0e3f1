// Package bulk implements the streaming CSV import/export pipeline around
// the task store. Decoding and encoding are incremental: an uploaded file
// is never buffered in full before parsing, and an export is written row
// by row.
package bulk

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/store"
)

// Import ceilings. Files beyond these bounds fail clearly instead of
// exhausting memory.
const (
	// MaxImportRows is the maximum number of data rows in one batch.
	MaxImportRows = 10_000

	// MaxImportFieldChars is the maximum length of a single CSV field in
	// characters, matching domain.MaxTaskFieldLength and the VARCHAR(255)
	// column bound.
	MaxImportFieldChars = 255

	// rowChannelCapacity bounds the producer/consumer channel between the
	// CSV reader goroutine and the row consumer.
	rowChannelCapacity = 16
)

// Import errors
var (
	// ErrTooManyRows is returned when a batch exceeds MaxImportRows.
	ErrTooManyRows = fmt.Errorf("batch exceeds %d rows", MaxImportRows)

	// ErrMissingColumns is returned when the header line lacks the
	// required title and description columns.
	ErrMissingColumns = errors.New("header must contain title and description columns")
)

// Row is one decoded and validated import row.
type Row struct {
	Line        int // 1-based line number in the uploaded file
	Title       string
	Description string
	Status      domain.TaskStatus
}

// Upload normalizes the row into a create input owned by the importing
// principal: both author and assignee are set to that principal.
func (r Row) Upload(principal uuid.UUID) store.TaskUpload {
	return store.TaskUpload{
		Title:          r.Title,
		Description:    r.Description,
		Status:         r.Status,
		AuthorID:       principal,
		AssignedUserID: principal,
	}
}

// RowError records why a single row was rejected. A rejected row does not
// abort the batch unless no row survives.
type RowError struct {
	Line int
	Err  error
}

// Error implements the error interface for RowError.
func (e *RowError) Error() string {
	return fmt.Sprintf("row at line %d: %v", e.Line, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RowError) Unwrap() error {
	return e.Err
}

// columnIndexes maps the header line onto field positions.
type columnIndexes struct {
	title       int
	description int
	status      int // -1 when the optional status column is absent
}

// Importer incrementally decodes an uploaded CSV stream into task rows.
// The first line is a header defining column order; recognized columns are
// title, description and the optional status.
type Importer struct {
	r       io.Reader
	maxRows int
}

// NewImporter creates an Importer over the uploaded stream. The caller
// bounds the stream's byte size (e.g., with http.MaxBytesReader); the
// importer bounds rows and field sizes.
func NewImporter(r io.Reader) *Importer {
	return &Importer{
		r:       r,
		maxRows: MaxImportRows,
	}
}

// rawRecord is one unvalidated CSV record handed from the reader goroutine
// to the consumer.
type rawRecord struct {
	line   int
	fields []string
}

// DecodeAll drains the stream and returns the accepted rows plus any
// per-row rejections. Returns store.ErrEmptyBatch when the file holds no
// data rows at all, and the first rejection when every row was rejected.
// Decoding stops early on context cancellation.
func (imp *Importer) DecodeAll(ctx context.Context) ([]Row, []RowError, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reader := csv.NewReader(imp.r)
	reader.TrimLeadingSpace = true
	// Header defines the expected arity; short rows are rejected per row
	// rather than aborting the batch.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, store.ErrEmptyBatch
		}
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := mapHeader(header)
	if err != nil {
		return nil, nil, err
	}

	// Producer goroutine streams records into a bounded channel; the
	// cancel above makes it exit when the consumer returns early.
	records := make(chan rawRecord, rowChannelCapacity)
	readErr := make(chan error, 1)
	go func() {
		defer close(records)
		line := 1
		for {
			fields, err := reader.Read()
			line++
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
			select {
			case records <- rawRecord{line: line, fields: fields}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var rows []Row
	var rejected []RowError
	count := 0
	for rec := range records {
		count++
		if count > imp.maxRows {
			return nil, nil, ErrTooManyRows
		}

		row, err := buildRow(rec, cols)
		if err != nil {
			rejected = append(rejected, RowError{Line: rec.line, Err: err})
			continue
		}
		rows = append(rows, row)
	}

	select {
	case err := <-readErr:
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if len(rows) == 0 {
		if len(rejected) > 0 {
			first := rejected[0]
			return nil, rejected, fmt.Errorf("no valid rows in batch: %w", &first)
		}
		return nil, nil, store.ErrEmptyBatch
	}

	return rows, rejected, nil
}

// mapHeader resolves the positions of the recognized columns.
// Matching is case-insensitive and tolerates a UTF-8 BOM on the first cell.
func mapHeader(header []string) (columnIndexes, error) {
	cols := columnIndexes{title: -1, description: -1, status: -1}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "title":
			cols.title = i
		case "description":
			cols.description = i
		case "status":
			cols.status = i
		}
	}
	if cols.title == -1 || cols.description == -1 {
		return cols, ErrMissingColumns
	}
	return cols, nil
}

// buildRow validates one record against the field ceilings and the task
// field rules. A blank or unrecognized status defaults to "new".
func buildRow(rec rawRecord, cols columnIndexes) (Row, error) {
	for _, field := range rec.fields {
		if utf8.RuneCountInString(field) > MaxImportFieldChars {
			return Row{}, fmt.Errorf("field exceeds %d characters", MaxImportFieldChars)
		}
	}

	if cols.title >= len(rec.fields) || cols.description >= len(rec.fields) {
		return Row{}, errors.New("row has fewer fields than the header")
	}

	title := strings.TrimSpace(rec.fields[cols.title])
	description := strings.TrimSpace(rec.fields[cols.description])
	if title == "" {
		return Row{}, domain.ErrEmptyTaskTitle
	}
	if description == "" {
		return Row{}, domain.ErrEmptyTaskDescription
	}

	status := domain.TaskStatusNew
	if cols.status != -1 && cols.status < len(rec.fields) {
		raw := strings.TrimSpace(rec.fields[cols.status])
		if parsed, err := domain.ParseTaskStatus(raw); err == nil {
			status = parsed
		}
	}

	return Row{
		Line:        rec.line,
		Title:       title,
		Description: description,
		Status:      status,
	}, nil
}
