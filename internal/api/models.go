package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/domain"
)

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse represents the response body for successful authentication operations.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"` // Token lifetime in seconds
	UserID       string `json:"user_id,omitempty"`
}

// CreateTaskRequest represents the request body for task creation.
// The assignee is optional and defaults to the authenticated author.
type CreateTaskRequest struct {
	Title          string  `json:"title" validate:"required,min=1,max=255"`
	Description    string  `json:"description" validate:"required,min=1,max=255"`
	AssignedUserID *string `json:"assigned_user_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateTaskRequest represents the request body for a partial task update.
// Absent fields are left untouched; present fields are always assigned,
// even when they hold a zero value.
type UpdateTaskRequest struct {
	Title          *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description    *string `json:"description,omitempty" validate:"omitempty,min=1,max=255"`
	AuthorID       *string `json:"author_id,omitempty" validate:"omitempty,uuid"`
	AssignedUserID *string `json:"assigned_user_id,omitempty" validate:"omitempty,uuid"`
	Status         *string `json:"status,omitempty" validate:"omitempty,oneof=new in-progress on-hold completed canceled archived"`
}

// AssignTaskRequest represents the request body for reassigning a task.
type AssignTaskRequest struct {
	AssignedUserID string `json:"assigned_user_id" validate:"required,uuid"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	AuthorID       string    `json:"author_id"`
	AssignedUserID string    `json:"assigned_user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewTaskResponse converts a domain task into its response representation.
func NewTaskResponse(task *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		AuthorID:    task.AuthorID.String(),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.AssignedUserID != nil {
		resp.AssignedUserID = task.AssignedUserID.String()
	}
	return resp
}

// TaskPageResponse represents one page of a filtered task listing.
// Total counts every row matching the filter set, not just this page.
type TaskPageResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// CreatedTaskResponse represents one created task in a bulk import response.
type CreatedTaskResponse struct {
	ID int64 `json:"id"`
}

// DeleteTaskResponse represents the response body for a task deletion.
type DeleteTaskResponse struct {
	ID int64 `json:"id"`
}

// parseOptionalUUID converts an optional request field into a *uuid.UUID.
func parseOptionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
