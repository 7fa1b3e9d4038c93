package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskify/internal/models"

	"github.com/gofrs/uuid"
)

const (
	MsgFetchFailed  = "failed to fetch tasks"
	MsgSaveFailed   = "failed to save task"
	MsgDeleteFailed = "failed to delete task"
	MsgToggleFailed = "failed to update task status"
	MsgClearFailed  = "failed to clear completed tasks"
	MsgTitleMissing = "title is required"
)

var ErrTitleRequired = errors.New(MsgTitleMissing)

// ClearResult reports a best-effort clear of completed tasks.
type ClearResult struct {
	Attempted int
	Deleted   int
	Failed    int
}

// Controller holds the client's copy of the task list plus the edit form.
// Every mutation is followed by a full re-fetch; the optimistic local
// update only bridges the gap until it lands. A Controller is not safe for
// concurrent use.
type Controller struct {
	api   TaskAPI
	query TaskQuery

	Tasks   []models.Task
	Query   Query
	Form    TaskForm
	Editing uuid.UUID
	Loading bool
	Error   string
}

// NewController uses LocalQuery when query is nil.
func NewController(api TaskAPI, query TaskQuery) *Controller {
	if query == nil {
		query = LocalQuery{}
	}
	return &Controller{api: api, query: query, Tasks: []models.Task{}}
}

// Load replaces the local list with the server's. On failure the current
// list is kept.
func (c *Controller) Load(ctx context.Context) error {
	c.Loading = true
	defer func() { c.Loading = false }()

	tasks, err := c.api.List(ctx)
	if err != nil {
		c.Error = MsgFetchFailed
		return fmt.Errorf("list tasks: %w", err)
	}
	c.Tasks = tasks
	c.Error = ""
	return nil
}

func (c *Controller) IsEditing() bool {
	return c.Editing != uuid.Nil
}

func (c *Controller) find(id uuid.UUID) (models.Task, bool) {
	for _, t := range c.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// BeginEdit loads a task into the form.
func (c *Controller) BeginEdit(id uuid.UUID) bool {
	task, ok := c.find(id)
	if !ok {
		return false
	}
	c.Editing = id
	c.Form = FormFromTask(task)
	return true
}

func (c *Controller) CancelEdit() {
	c.Editing = uuid.Nil
	c.Form = TaskForm{}
}

// merge replaces the task with the same id, or appends it.
func (c *Controller) merge(task models.Task) {
	for i := range c.Tasks {
		if c.Tasks[i].ID == task.ID {
			next := make([]models.Task, len(c.Tasks))
			copy(next, c.Tasks)
			next[i] = task
			c.Tasks = next
			return
		}
	}
	c.Tasks = append(append([]models.Task(nil), c.Tasks...), task)
}

func (c *Controller) remove(id uuid.UUID) {
	next := make([]models.Task, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		if t.ID != id {
			next = append(next, t)
		}
	}
	c.Tasks = next
}

// Submit creates a task from the form, or updates the task being edited.
// The form is reset only after the server accepts it.
func (c *Controller) Submit(ctx context.Context) error {
	if strings.TrimSpace(c.Form.Title) == "" {
		c.Error = MsgTitleMissing
		return ErrTitleRequired
	}

	c.Loading = true
	var (
		task models.Task
		err  error
	)
	if c.IsEditing() {
		task, err = c.api.Update(ctx, c.Editing, c.Form)
	} else {
		task, err = c.api.Create(ctx, c.Form)
	}
	c.Loading = false
	if err != nil {
		c.Error = MsgSaveFailed
		return fmt.Errorf("save task: %w", err)
	}

	c.merge(task)
	c.CancelEdit()
	c.Error = ""
	return c.Load(ctx)
}

func (c *Controller) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.api.Delete(ctx, id); err != nil {
		c.Error = MsgDeleteFailed
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	c.remove(id)
	if c.Editing == id {
		c.CancelEdit()
	}
	c.Error = ""
	return c.Load(ctx)
}

func (c *Controller) Toggle(ctx context.Context, id uuid.UUID) error {
	task, err := c.api.Toggle(ctx, id)
	if err != nil {
		c.Error = MsgToggleFailed
		return fmt.Errorf("toggle task %s: %w", id, err)
	}
	c.merge(task)
	c.Error = ""
	return c.Load(ctx)
}

// ClearCompleted deletes every completed task one by one. A failed delete
// does not stop the rest; the failures are counted and joined into the
// returned error. With nothing completed no request is made.
func (c *Controller) ClearCompleted(ctx context.Context) (ClearResult, error) {
	var completed []uuid.UUID
	for _, t := range c.Tasks {
		if t.Status == models.StatusCompleted {
			completed = append(completed, t.ID)
		}
	}

	result := ClearResult{Attempted: len(completed)}
	if result.Attempted == 0 {
		return result, nil
	}

	var errs []error
	for _, id := range completed {
		if err := c.api.Delete(ctx, id); err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("delete task %s: %w", id, err))
			continue
		}
		result.Deleted++
		c.remove(id)
	}

	if result.Failed > 0 {
		c.Error = MsgClearFailed
		_ = c.Load(ctx)
		c.Error = MsgClearFailed
		return result, errors.Join(errs...)
	}
	c.Error = ""
	return result, c.Load(ctx)
}

// Visible is the list the view renders.
func (c *Controller) Visible() []models.Task {
	return c.query.Apply(c.Tasks, c.Query)
}

func (c *Controller) Summary() models.TaskSummary {
	return models.Summarize(c.Tasks)
}

func (c *Controller) Categories() []string {
	return Categories(c.Tasks)
}
