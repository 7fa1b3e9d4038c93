package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskify/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements TaskStore and UserStore on a relational database.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) List(ctx context.Context, owner uuid.UUID) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	if err := s.db.WithContext(ctx).Where("user_id = ?", owner).Order("created_at").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *GormStore) Create(ctx context.Context, owner uuid.UUID, fields models.TaskFields) (models.Task, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to generate task ID: %w", err)
	}

	now := s.now().UTC()
	task := models.Task{
		ID:        id,
		UserID:    owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields.WithDefaults().Apply(&task)

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// lockTask loads the owner's task inside tx, holding a row lock where the
// database supports one.
func lockTask(tx *gorm.DB, id, owner uuid.UUID) (models.Task, error) {
	var task models.Task
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, owner).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task, ErrTaskNotFound
	}
	return task, err
}

func (s *GormStore) Update(ctx context.Context, id, owner uuid.UUID, fields models.TaskFields) (models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = lockTask(tx, id, owner)
		if err != nil {
			return err
		}

		fields.WithDefaults().Apply(&task)
		task.UpdatedAt = s.now().UTC()
		return tx.Save(&task).Error
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return models.Task{}, err
		}
		return models.Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

func (s *GormStore) Delete(ctx context.Context, id, owner uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, owner).
		Delete(&models.Task{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *GormStore) ToggleStatus(ctx context.Context, id, owner uuid.UUID) (models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = lockTask(tx, id, owner)
		if err != nil {
			return err
		}

		next := task.ToggledStatus()
		if next == task.Status {
			return nil
		}
		task.Status = next
		task.UpdatedAt = s.now().UTC()
		return tx.Model(&task).Updates(map[string]interface{}{
			"status":     task.Status,
			"updated_at": task.UpdatedAt,
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return models.Task{}, err
		}
		return models.Task{}, fmt.Errorf("failed to toggle task: %w", err)
	}
	return task, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	db := s.db.WithContext(ctx)

	var existing models.User
	err := db.Where("username = ?", user.Username).First(&existing).Error
	if err == nil {
		return ErrDuplicateUsername
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check username: %w", err)
	}

	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *GormStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (s *GormStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}
