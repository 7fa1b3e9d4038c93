package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"taskify/internal/models"
	"taskify/internal/repositories"
	"taskify/internal/worker"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type ReminderScheduler interface {
	Schedule(ctx context.Context, task models.Task)
}

type NoopReminderScheduler struct{}

func (NoopReminderScheduler) Schedule(context.Context, models.Task) {}

type ReminderEnqueuer interface {
	EnqueueAt(ctx context.Context, queue string, jobType worker.JobType, payload map[string]interface{}, processAt time.Time) (*worker.Job, error)
}

// QueueReminderScheduler turns a future reminderDate into a delayed
// task_reminder job.
type QueueReminderScheduler struct {
	queue ReminderEnqueuer
	name  string
	now   func() time.Time
}

func NewQueueReminderScheduler(queue ReminderEnqueuer, name string) *QueueReminderScheduler {
	if name == "" {
		name = worker.DefaultQueue
	}
	return &QueueReminderScheduler{queue: queue, name: name, now: time.Now}
}

func reminderPayload(task models.Task) map[string]interface{} {
	return map[string]interface{}{
		"task_id":     task.ID.String(),
		"owner_id":    task.UserID.String(),
		"title":       task.Title,
		"reminder_at": task.ReminderDate.UTC().Format(time.RFC3339Nano),
	}
}

// Schedule never fails the caller; a lost reminder is logged.
func (s *QueueReminderScheduler) Schedule(ctx context.Context, task models.Task) {
	if task.ReminderDate == nil || task.Status == models.StatusCompleted {
		return
	}
	if !task.ReminderDate.After(s.now()) {
		return
	}

	job, err := s.queue.EnqueueAt(ctx, s.name, worker.JobTypeTaskReminder, reminderPayload(task), *task.ReminderDate)
	if err != nil {
		log.Printf("Failed to schedule reminder for task %s: %v", task.ID, err)
		return
	}
	log.Printf("Scheduled reminder job %s for task %s at %s", job.ID, task.ID, task.ReminderDate.Format(time.RFC3339))
}

const (
	reminderSentPrefix = "reminder_sent:"
	reminderSentTTL    = 24 * time.Hour
)

// ReminderLedger remembers delivered reminders. Every edit of a task that
// carries a future reminder queues another job for the same instant, so
// delivery has to be claimed once per task and reminder time.
type ReminderLedger interface {
	// Claim reports true for the first caller with a given key only.
	Claim(ctx context.Context, key string) (bool, error)
}

func reminderSentKey(taskID uuid.UUID, at time.Time) string {
	return reminderSentPrefix + taskID.String() + ":" + at.UTC().Format(time.RFC3339Nano)
}

// RedisReminderLedger claims with SETNX so several workers agree.
type RedisReminderLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReminderLedger(client *redis.Client) *RedisReminderLedger {
	return &RedisReminderLedger{client: client, ttl: reminderSentTTL}
}

func (l *RedisReminderLedger) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder %s: %w", key, err)
	}
	return ok, nil
}

// MemoryReminderLedger serves a single worker process.
type MemoryReminderLedger struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewMemoryReminderLedger() *MemoryReminderLedger {
	return &MemoryReminderLedger{claimed: make(map[string]struct{})}
}

func (l *MemoryReminderLedger) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.claimed[key]; ok {
		return false, nil
	}
	l.claimed[key] = struct{}{}
	return true, nil
}

func payloadString(job *worker.Job, key string) (string, error) {
	value, ok := job.Payload[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("job %s missing %s", job.ID, key)
	}
	return value, nil
}

// NewReminderHandler returns the worker handler for task_reminder jobs.
// Reminders for tasks that were deleted, completed or rescheduled since the
// job was queued are dropped, as are repeats of one already delivered.
// A nil ledger means an in-process one.
func NewReminderHandler(store repositories.TaskStore, ledger ReminderLedger, deliver func(task models.Task)) worker.JobHandler {
	if ledger == nil {
		ledger = NewMemoryReminderLedger()
	}
	if deliver == nil {
		deliver = func(task models.Task) {
			log.Printf("Reminder: task %s %q is due", task.ID, task.Title)
		}
	}

	return func(ctx context.Context, job *worker.Job) error {
		rawTask, err := payloadString(job, "task_id")
		if err != nil {
			return err
		}
		rawOwner, err := payloadString(job, "owner_id")
		if err != nil {
			return err
		}
		rawAt, err := payloadString(job, "reminder_at")
		if err != nil {
			return err
		}

		taskID, err := uuid.FromString(rawTask)
		if err != nil {
			return fmt.Errorf("invalid task_id: %w", err)
		}
		owner, err := uuid.FromString(rawOwner)
		if err != nil {
			return fmt.Errorf("invalid owner_id: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, rawAt)
		if err != nil {
			return fmt.Errorf("invalid reminder_at: %w", err)
		}

		tasks, err := store.List(ctx, owner)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if task.ID != taskID {
				continue
			}
			if task.Status == models.StatusCompleted || task.ReminderDate == nil || !task.ReminderDate.Equal(at) {
				log.Printf("Skipping stale reminder for task %s", taskID)
				return nil
			}
			first, err := ledger.Claim(ctx, reminderSentKey(taskID, at))
			if err != nil {
				return err
			}
			if !first {
				log.Printf("Skipping duplicate reminder for task %s", taskID)
				return nil
			}
			deliver(task)
			return nil
		}

		log.Printf("Skipping reminder for deleted task %s", taskID)
		return nil
	}
}
