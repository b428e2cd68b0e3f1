package domain

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusNew        TaskStatus = "new"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusOnHold     TaskStatus = "on-hold"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCanceled   TaskStatus = "canceled"
	TaskStatusArchived   TaskStatus = "archived"
)

// MaxTaskFieldLength is the maximum length of the title and description
// fields, counted in characters to match the VARCHAR(255) column bound.
const MaxTaskFieldLength = 255

// Common validation errors for Task
var (
	ErrEmptyTaskTitle         = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong       = errors.New("task title exceeds maximum length")
	ErrEmptyTaskDescription   = errors.New("task description cannot be empty")
	ErrTaskDescriptionTooLong = errors.New("task description exceeds maximum length")
	ErrEmptyTaskAuthorID      = errors.New("task author ID cannot be empty")
	ErrInvalidTaskStatus      = errors.New("invalid task status")
)

// Task represents a tracked unit of work owned by a user.
// AssignedUserID is nil when the task has no assignee; on creation it
// defaults to the author.
type Task struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	AuthorID       uuid.UUID  `json:"author_id"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`
	Status         TaskStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewTask creates a new Task authored by the given user.
// The ID is zero until the task is persisted; storage assigns it.
// If assignedUserID is nil the task is assigned to its author.
// The status is always "new" and timestamps are set to the current time.
// Returns an error if validation fails.
func NewTask(title, description string, authorID uuid.UUID, assignedUserID *uuid.UUID) (*Task, error) {
	assignee := authorID
	if assignedUserID != nil {
		assignee = *assignedUserID
	}

	now := time.Now().UTC()
	task := &Task{
		Title:          title,
		Description:    description,
		AuthorID:       authorID,
		AssignedUserID: &assignee,
		Status:         TaskStatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if utf8.RuneCountInString(t.Title) > MaxTaskFieldLength {
		return ErrTaskTitleTooLong
	}

	if t.Description == "" {
		return ErrEmptyTaskDescription
	}

	if utf8.RuneCountInString(t.Description) > MaxTaskFieldLength {
		return ErrTaskDescriptionTooLong
	}

	if t.AuthorID == uuid.Nil {
		return ErrEmptyTaskAuthorID
	}

	if !IsValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsValidTaskStatus checks if the given status is a valid TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusNew, TaskStatusInProgress, TaskStatusOnHold,
		TaskStatusCompleted, TaskStatusCanceled, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// ParseTaskStatus converts a raw string into a TaskStatus.
// Returns ErrInvalidTaskStatus if the value is not a known status.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(raw)
	if !IsValidTaskStatus(status) {
		return "", ErrInvalidTaskStatus
	}
	return status, nil
}
