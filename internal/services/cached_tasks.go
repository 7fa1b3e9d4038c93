package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taskify/internal/cache"
	"taskify/internal/models"

	"github.com/gofrs/uuid"
)

const userTasksTTL = 15 * time.Minute

func userTasksGenKey(owner uuid.UUID) string {
	return fmt.Sprintf("user_tasks_gen:%s", owner.String())
}

func userTasksKey(owner uuid.UUID, gen int64) string {
	return fmt.Sprintf("user_tasks:%s:%d", owner.String(), gen)
}

// CachedTaskService caches each owner's full list under the owner's current
// generation. Every committed mutation bumps the generation, so a list read
// that raced a mutation can only fill a key nobody reads any more.
// Cache errors are logged and never fail a request.
type CachedTaskService struct {
	taskService TaskService
	cache       cache.Cache
}

func NewCachedTaskService(taskService TaskService, cacheInstance cache.Cache) *CachedTaskService {
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
	}
}

func (s *CachedTaskService) ListTasks(ctx context.Context, owner uuid.UUID) ([]models.Task, error) {
	// The generation must be read before the store.
	gen, err := s.cache.Counter(ctx, userTasksGenKey(owner))
	if err != nil {
		log.Printf("Task cache generation read failed for %s: %v", owner, err)
		return s.taskService.ListTasks(ctx, owner)
	}
	key := userTasksKey(owner, gen)

	var cachedTasks []models.Task
	err = s.cache.Get(ctx, key, &cachedTasks)
	if err == nil && cachedTasks != nil {
		// The owner is not part of the task's JSON form.
		for i := range cachedTasks {
			cachedTasks[i].UserID = owner
		}
		return cachedTasks, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("Task cache read failed for %s: %v", key, err)
	}

	tasks, err := s.taskService.ListTasks(ctx, owner)
	if err != nil {
		return tasks, err
	}

	if err := s.cache.Set(ctx, key, tasks, userTasksTTL); err != nil {
		log.Printf("Task cache write failed for %s: %v", key, err)
	}
	return tasks, nil
}

// invalidate runs after the mutation has committed.
func (s *CachedTaskService) invalidate(ctx context.Context, owner uuid.UUID) {
	gen, err := s.cache.Incr(ctx, userTasksGenKey(owner))
	if err != nil {
		log.Printf("Task cache invalidation failed for %s: %v", owner, err)
		return
	}
	// The old entry is unreachable now; dropping it only frees memory.
	key := userTasksKey(owner, gen-1)
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Printf("Task cache cleanup failed for %s: %v", key, err)
	}
}

func (s *CachedTaskService) CreateTask(ctx context.Context, owner uuid.UUID, input TaskInput) (models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, owner, input)
	if err != nil {
		return task, err
	}
	s.invalidate(ctx, owner)
	return task, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, owner, id uuid.UUID, input TaskInput) (models.Task, error) {
	task, err := s.taskService.UpdateTask(ctx, owner, id, input)
	if err != nil {
		return task, err
	}
	s.invalidate(ctx, owner)
	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, owner, id uuid.UUID) error {
	if err := s.taskService.DeleteTask(ctx, owner, id); err != nil {
		return err
	}
	s.invalidate(ctx, owner)
	return nil
}

func (s *CachedTaskService) ToggleTask(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	task, err := s.taskService.ToggleTask(ctx, owner, id)
	if err != nil {
		return task, err
	}
	s.invalidate(ctx, owner)
	return task, nil
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}
