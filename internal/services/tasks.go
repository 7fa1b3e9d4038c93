package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskify/internal/models"
	"taskify/internal/repositories"

	"github.com/gofrs/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTaskNotFound = repositories.ErrTaskNotFound
)

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// TaskInput is the request body accepted by create and update.
type TaskInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	DueDate      string   `json:"dueDate"`
	ReminderDate string   `json:"reminderDate"`
	Tags         []string `json:"tags"`
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC().Truncate(time.Millisecond)
			return &t, nil
		}
	}
	return nil, invalid("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", field)
}

// Fields validates the input and converts it to store fields. Defaults for
// omitted status, priority and category are applied by the store.
func (in TaskInput) Fields() (models.TaskFields, error) {
	var fields models.TaskFields

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fields, invalid("title is required")
	}

	status := models.TaskStatus(strings.TrimSpace(in.Status))
	if status != "" && !status.IsValid() {
		return fields, invalid("status must be one of pending, in_progress, completed")
	}

	priority := models.TaskPriority(strings.TrimSpace(in.Priority))
	if priority != "" && !priority.IsValid() {
		return fields, invalid("priority must be one of Low, Medium, High")
	}

	dueDate, err := parseDate("dueDate", in.DueDate)
	if err != nil {
		return fields, err
	}
	reminderDate, err := parseDate("reminderDate", in.ReminderDate)
	if err != nil {
		return fields, err
	}

	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return models.TaskFields{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Category:     strings.TrimSpace(in.Category),
		Status:       status,
		Priority:     priority,
		DueDate:      dueDate,
		ReminderDate: reminderDate,
		Tags:         tags,
	}, nil
}

type TaskService interface {
	ListTasks(ctx context.Context, owner uuid.UUID) ([]models.Task, error)
	CreateTask(ctx context.Context, owner uuid.UUID, input TaskInput) (models.Task, error)
	UpdateTask(ctx context.Context, owner, id uuid.UUID, input TaskInput) (models.Task, error)
	DeleteTask(ctx context.Context, owner, id uuid.UUID) error
	ToggleTask(ctx context.Context, owner, id uuid.UUID) (models.Task, error)
}

type TaskServiceImpl struct {
	store     repositories.TaskStore
	reminders ReminderScheduler
}

func NewTaskService(store repositories.TaskStore, reminders ReminderScheduler) *TaskServiceImpl {
	if reminders == nil {
		reminders = NoopReminderScheduler{}
	}
	return &TaskServiceImpl{store: store, reminders: reminders}
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, owner uuid.UUID) ([]models.Task, error) {
	return s.store.List(ctx, owner)
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, owner uuid.UUID, input TaskInput) (models.Task, error) {
	fields, err := input.Fields()
	if err != nil {
		return models.Task{}, err
	}

	task, err := s.store.Create(ctx, owner, fields)
	if err != nil {
		return models.Task{}, err
	}

	s.reminders.Schedule(ctx, task)
	return task, nil
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, owner, id uuid.UUID, input TaskInput) (models.Task, error) {
	fields, err := input.Fields()
	if err != nil {
		return models.Task{}, err
	}

	task, err := s.store.Update(ctx, id, owner, fields)
	if err != nil {
		return models.Task{}, err
	}

	s.reminders.Schedule(ctx, task)
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, owner, id uuid.UUID) error {
	return s.store.Delete(ctx, id, owner)
}

func (s *TaskServiceImpl) ToggleTask(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	return s.store.ToggleStatus(ctx, id, owner)
}
