package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
)

func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities for display: High=1, Medium=2, Low=3.
// Anything unrecognised ranks as Medium.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

const DefaultCategory = "General"

type Task struct {
	ID           uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       uuid.UUID    `json:"-" gorm:"type:uuid;not null;index"`
	Title        string       `json:"title" gorm:"not null"`
	Description  string       `json:"description"`
	Category     string       `json:"category" gorm:"not null;default:'General'"`
	Status       TaskStatus   `json:"status" gorm:"not null;default:'pending'"`
	Priority     TaskPriority `json:"priority" gorm:"not null;default:'Medium'"`
	DueDate      *time.Time   `json:"dueDate,omitempty"`
	ReminderDate *time.Time   `json:"reminderDate,omitempty"`
	Tags         StringList   `json:"tags" gorm:"type:text"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// ToggledStatus flips pending and completed. in_progress is only reachable
// through an edit, so toggling leaves it as is.
func (t Task) ToggledStatus() TaskStatus {
	switch t.Status {
	case StatusPending:
		return StatusCompleted
	case StatusCompleted:
		return StatusPending
	default:
		return t.Status
	}
}

// TaskFields are the mutable fields of a task, as accepted by create and update.
type TaskFields struct {
	Title        string
	Description  string
	Category     string
	Status       TaskStatus
	Priority     TaskPriority
	DueDate      *time.Time
	ReminderDate *time.Time
	Tags         []string
}

func (f TaskFields) WithDefaults() TaskFields {
	if strings.TrimSpace(f.Category) == "" {
		f.Category = DefaultCategory
	}
	if f.Status == "" {
		f.Status = StatusPending
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
	return f
}

// Apply copies the fields onto t. Identity, owner and timestamps are untouched.
func (f TaskFields) Apply(t *Task) {
	t.Title = f.Title
	t.Description = f.Description
	t.Category = f.Category
	t.Status = f.Status
	t.Priority = f.Priority
	t.DueDate = f.DueDate
	t.ReminderDate = f.ReminderDate
	t.Tags = StringList(f.Tags)
}

// StringList stores an ordered list of labels as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode tags: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}
