package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestEnqueueDueJobGoesToList(t *testing.T) {
	client, _ := setupRedis(t)
	q := NewJobQueue(client)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, DefaultQueue, JobTypeTaskReminder, map[string]interface{}{"task_id": "t1"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, DefaultQueue, job.Queue)
	assert.Equal(t, defaultTries, job.MaxTries)

	size, err := q.GetQueueSize(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestEnqueueFutureJobIsScheduled(t *testing.T) {
	client, _ := setupRedis(t)
	q := NewJobQueue(client)
	ctx := context.Background()

	processAt := time.Now().Add(time.Hour)
	_, err := q.EnqueueAt(ctx, DefaultQueue, JobTypeTaskReminder, nil, processAt)
	require.NoError(t, err)

	size, err := q.GetQueueSize(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	scheduled, err := q.GetScheduledSize(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), scheduled)

	w := NewWorker(WorkerConfig{RedisClient: client})

	promoted, err := w.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)

	promoted, err = w.PromoteDue(ctx, processAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	size, _ = q.GetQueueSize(ctx, DefaultQueue)
	scheduled, _ = q.GetScheduledSize(ctx, DefaultQueue)
	assert.Equal(t, int64(1), size)
	assert.Equal(t, int64(0), scheduled)
}

func TestWorkerProcessesJobs(t *testing.T) {
	client, _ := setupRedis(t)
	q := NewJobQueue(client)

	received := make(chan *Job, 1)
	w := NewWorker(WorkerConfig{
		RedisClient:  client,
		PollInterval: 20 * time.Millisecond,
		BlockTimeout: 50 * time.Millisecond,
	})
	w.RegisterHandler(JobTypeTaskReminder, func(ctx context.Context, job *Job) error {
		received <- job
		return nil
	})
	w.Start(1)
	defer w.Stop()

	_, err := q.Enqueue(context.Background(), DefaultQueue, JobTypeTaskReminder, map[string]interface{}{"task_id": "t1"})
	require.NoError(t, err)

	select {
	case job := <-received:
		assert.Equal(t, "t1", job.Payload["task_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("Expected job to be processed")
	}
}

func TestExecuteJobRetriesThenDeadLetters(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()
	q := NewJobQueue(client)

	w := NewWorker(WorkerConfig{RedisClient: client, RetryBackoff: time.Minute})
	w.RegisterHandler(JobTypeTaskReminder, func(ctx context.Context, job *Job) error {
		return errors.New("delivery failed")
	})

	job := &Job{ID: "j1", Type: JobTypeTaskReminder, Queue: DefaultQueue, MaxTries: 2}
	require.NoError(t, w.executeJob(job))
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, job.ProcessAt.After(time.Now()))

	scheduled, err := q.GetScheduledSize(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), scheduled)

	require.NoError(t, w.executeJob(job))
	dead, err := q.GetQueueSize(ctx, DeadQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestExecuteJobWithoutHandlerDeadLetters(t *testing.T) {
	client, _ := setupRedis(t)
	w := NewWorker(WorkerConfig{RedisClient: client})

	require.NoError(t, w.executeJob(&Job{ID: "j2", Type: "unknown", Queue: DefaultQueue}))

	dead, err := NewJobQueue(client).GetQueueSize(context.Background(), DeadQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestNewWorkerDefaults(t *testing.T) {
	w := NewWorker(WorkerConfig{})
	assert.Equal(t, []string{DefaultQueue}, w.queues)
	assert.Equal(t, time.Second, w.pollInterval)
	assert.Equal(t, 5*time.Second, w.blockTimeout)
	assert.Equal(t, "reminders:scheduled", ScheduledKey(DefaultQueue))
}
