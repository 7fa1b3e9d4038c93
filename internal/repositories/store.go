package repositories

import (
	"context"
	"errors"

	"taskify/internal/models"

	"github.com/gofrs/uuid"
)

var (
	// ErrTaskNotFound covers both a missing id and an id owned by someone else.
	ErrTaskNotFound      = errors.New("task not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

// TaskStore persists tasks. Every method is scoped to the owning user.
type TaskStore interface {
	List(ctx context.Context, owner uuid.UUID) ([]models.Task, error)
	Create(ctx context.Context, owner uuid.UUID, fields models.TaskFields) (models.Task, error)
	Update(ctx context.Context, id, owner uuid.UUID, fields models.TaskFields) (models.Task, error)
	Delete(ctx context.Context, id, owner uuid.UUID) error
	ToggleStatus(ctx context.Context, id, owner uuid.UUID) (models.Task, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}
