package client_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskify/internal/client"
	"taskify/internal/models"

	"github.com/gofrs/uuid"
)

var errBackend = errors.New("backend unavailable")

// fakeAPI is an in-memory TaskAPI with error injection.
type fakeAPI struct {
	mu    sync.Mutex
	tasks []models.Task

	ListErr   error
	CreateErr error
	UpdateErr error
	ToggleErr error
	DeleteErr map[uuid.UUID]error

	ListCalls   int
	DeleteCalls int
}

func newFakeAPI(tasks ...models.Task) *fakeAPI {
	return &fakeAPI{tasks: tasks, DeleteErr: make(map[uuid.UUID]error)}
}

func (f *fakeAPI) List(ctx context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]models.Task{}, f.tasks...), nil
}

func (f *fakeAPI) Create(ctx context.Context, form client.TaskForm) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return models.Task{}, f.CreateErr
	}
	task := models.Task{
		ID:        uuid.Must(uuid.NewV4()),
		Title:     form.Title,
		Category:  form.Category,
		Status:    models.TaskStatus(form.Status),
		Priority:  models.TaskPriority(form.Priority),
		CreatedAt: time.Now(),
	}
	if task.Category == "" {
		task.Category = models.DefaultCategory
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeAPI) Update(ctx context.Context, id uuid.UUID, form client.TaskForm) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return models.Task{}, f.UpdateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Title = form.Title
			if form.Status != "" {
				f.tasks[i].Status = models.TaskStatus(form.Status)
			}
			return f.tasks[i], nil
		}
	}
	return models.Task{}, client.ErrNotFound
}

func (f *fakeAPI) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if err := f.DeleteErr[id]; err != nil {
		return err
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return client.ErrNotFound
}

func (f *fakeAPI) Toggle(ctx context.Context, id uuid.UUID) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ToggleErr != nil {
		return models.Task{}, f.ToggleErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = f.tasks[i].ToggledStatus()
			return f.tasks[i], nil
		}
	}
	return models.Task{}, client.ErrNotFound
}

func newTask(title string, status models.TaskStatus) models.Task {
	return models.Task{
		ID:        uuid.Must(uuid.NewV4()),
		Title:     title,
		Category:  models.DefaultCategory,
		Status:    status,
		Priority:  models.PriorityMedium,
		CreatedAt: time.Now(),
	}
}
