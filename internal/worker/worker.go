package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeTaskReminder JobType = "task_reminder"
)

const (
	DefaultQueue = "reminders"
	DeadQueue    = "dead_queue"
	defaultTries = 3
)

// ScheduledKey is the sorted set holding jobs of queue that are not due yet,
// scored by their process time in unix milliseconds.
func ScheduledKey(queue string) string {
	return queue + ":scheduled"
}

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Queue     string                 `json:"queue"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client       *redis.Client
	queue        *JobQueue
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	blockTimeout time.Duration
	retryBackoff time.Duration
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	BlockTimeout time.Duration
	RetryBackoff time.Duration
	Queues       []string
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if len(config.Queues) == 0 {
		config.Queues = []string{DefaultQueue}
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = 5 * time.Second
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Minute
	}

	return &Worker{
		client:       config.RedisClient,
		queue:        NewJobQueue(config.RedisClient),
		handlers:     make(map[JobType]JobHandler),
		queues:       config.Queues,
		pollInterval: config.PollInterval,
		blockTimeout: config.BlockTimeout,
		retryBackoff: config.RetryBackoff,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start(concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	log.Printf("Starting worker with %d goroutines on queues %v", concurrency, w.queues)

	w.wg.Add(1)
	go w.schedulerLoop()

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
}

func (w *Worker) Stop() {
	log.Println("Stopping worker...")
	w.cancel()
	w.wg.Wait()
	log.Println("Worker stopped")
}

func (w *Worker) schedulerLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.PromoteDue(w.ctx, time.Now()); err != nil && w.ctx.Err() == nil {
			log.Printf("Error promoting scheduled jobs: %v", err)
		}

		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PromoteDue moves scheduled jobs whose time has come onto their ready list.
// ZRem decides ownership, so concurrent schedulers never push a job twice.
func (w *Worker) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	promoted := 0
	for _, queue := range w.queues {
		key := ScheduledKey(queue)
		due, err := w.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: "-inf",
			Max: strconv.FormatInt(now.UnixMilli(), 10),
		}).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to read scheduled jobs: %w", err)
		}

		for _, data := range due {
			removed, err := w.client.ZRem(ctx, key, data).Result()
			if err != nil {
				return promoted, fmt.Errorf("failed to claim scheduled job: %w", err)
			}
			if removed == 0 {
				continue
			}
			if err := w.client.RPush(ctx, queue, data).Err(); err != nil {
				return promoted, fmt.Errorf("failed to promote job: %w", err)
			}
			promoted++
		}
	}
	return promoted, nil
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			if err := w.processNextJob(); err != nil {
				if w.ctx.Err() != nil {
					return
				}
				log.Printf("Error processing job: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) processNextJob() error {
	result, err := w.client.BLPop(w.ctx, w.blockTimeout, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}

	return w.executeJob(&job)
}

func (w *Worker) executeJob(job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	log.Printf("Processing job %s of type %s", job.ID, job.Type)

	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	err := handler(ctx, job)
	if err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			log.Printf("Job %s failed (attempt %d/%d), retrying: %v",
				job.ID, job.Attempts, job.MaxTries, err)
			return w.retryJob(job)
		}

		log.Printf("Job %s failed permanently after %d attempts: %v",
			job.ID, job.Attempts, err)
		return w.moveToDeadQueue(job, err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

func (w *Worker) retryJob(job *Job) error {
	delay := w.retryBackoff * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = time.Now().Add(delay)

	return w.queue.push(w.ctx, job)
}

func (w *Worker) moveToDeadQueue(job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(w.ctx, DeadQueue, deadJobData).Err()
}

type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) (*Job, error) {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

// EnqueueAt pushes a job that becomes ready at processAt. Jobs due now go
// straight onto the list; later ones wait in the queue's scheduled set.
func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job ID: %w", err)
	}

	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   payload,
		Attempts:  0,
		MaxTries:  defaultTries,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	if err := q.push(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (q *JobQueue) push(ctx context.Context, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if job.ProcessAt.After(time.Now()) {
		return q.client.ZAdd(ctx, ScheduledKey(job.Queue), redis.Z{
			Score:  float64(job.ProcessAt.UnixMilli()),
			Member: jobData,
		}).Err()
	}
	return q.client.RPush(ctx, job.Queue, jobData).Err()
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}

func (q *JobQueue) GetScheduledSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.ZCard(ctx, ScheduledKey(queue)).Result()
}
