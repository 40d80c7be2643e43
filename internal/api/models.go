package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/overdue"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	UserID       uuid.UUID       `json:"user_id"`
	Role         domain.UserRole `json:"role"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	// ExpiresAt is the RFC 3339 time the access token expires
	ExpiresAt string `json:"expires_at"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        uuid.UUID       `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Role      domain.UserRole `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateTaskRequest defines the payload for POST /tasks. Field rules are
// checked by the task service so that every problem is reported at once.
type CreateTaskRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"due_date"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id"`
}

// UpdateTaskRequest defines the payload for PUT /tasks/{id}. Absent fields
// are left unchanged.
type UpdateTaskRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Status         *string    `json:"status"`
	DueDate        *time.Time `json:"due_date"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id"`
}

// TaskResponse is the public view of a task. AssignedUserName is null when
// the task is unassigned or the assignee no longer exists.
type TaskResponse struct {
	ID               uuid.UUID         `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Status           domain.TaskStatus `json:"status"`
	DueDate          *time.Time        `json:"due_date"`
	CreatedDate      time.Time         `json:"created_date"`
	UpdatedAt        time.Time         `json:"updated_at"`
	AssignedUserID   *uuid.UUID        `json:"assigned_user_id"`
	AssignedUserName *string           `json:"assigned_user_name"`
}

// SetSchedulerEnabledRequest defines the payload for PUT /admin/scheduler/enabled.
type SetSchedulerEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// CheckOverdueResponse is returned by the manual overdue check.
type CheckOverdueResponse struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	TasksUpdated int            `json:"tasks_updated"`
	Report       overdue.Report `json:"report"`
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
