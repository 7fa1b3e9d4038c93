package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskify/internal/models"
	"taskify/internal/repositories"
	"taskify/internal/worker"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *repositories.GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Task{}))
	return repositories.NewGormStore(db)
}

func newTestUser(t *testing.T, store *repositories.GormStore, name string) uuid.UUID {
	t.Helper()

	id := uuid.Must(uuid.NewV4())
	require.NoError(t, store.CreateUser(context.Background(), &models.User{ID: id, Username: name, Password: "hash"}))
	return id
}

type enqueuedJob struct {
	queue     string
	jobType   worker.JobType
	payload   map[string]interface{}
	processAt time.Time
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []enqueuedJob
	err  error
}

func (f *fakeEnqueuer) EnqueueAt(ctx context.Context, queue string, jobType worker.JobType, payload map[string]interface{}, processAt time.Time) (*worker.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.jobs = append(f.jobs, enqueuedJob{queue: queue, jobType: jobType, payload: payload, processAt: processAt})
	return &worker.Job{ID: "job-1", Type: jobType, Queue: queue, Payload: payload, ProcessAt: processAt}, nil
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}
