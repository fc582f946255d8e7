package pool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/podpay/podpay/internal/config"
	"github.com/podpay/podpay/internal/convert"
	"github.com/podpay/podpay/internal/events"
	"github.com/podpay/podpay/internal/models"
	"github.com/podpay/podpay/internal/storage/postgres"
	"github.com/podpay/podpay/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPoolRepo(t *testing.T) *postgres.JobRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every worker on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Job{}))
	return postgres.NewJobRepository(db)
}

func poolConfig(concurrency int) *config.Config {
	return &config.Config{
		Worker:    config.WorkerConfig{Concurrency: concurrency, LockDuration: 15 * time.Minute},
		Retry:     config.RetryConfig{MaxAttempts: 3, BaseDelay: time.Minute},
		RateLimit: config.RateLimitConfig{PerMinute: 45, MonthlyCap: 160_000},
		Retention: config.RetentionConfig{KeepCompleted: 100, KeepFailed: 50},
	}
}

// slowConverter holds each job for delay before producing staged media, so
// several jobs overlap in the active state.
type slowConverter struct {
	delay time.Duration
	root  string
}

func (s *slowConverter) Convert(ctx context.Context, videoID, contentType string) (*convert.Result, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	scratch, err := os.MkdirTemp(s.root, "podpay_")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(scratch, videoID+"."+convert.FileExt(contentType))
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return nil, err
	}
	return &convert.Result{
		VideoID:     videoID,
		ContentType: contentType,
		LocalPath:   path,
		ScratchDir:  scratch,
		Quality:     "320",
		FileSize:    5,
		ProcessedAt: time.Now(),
	}, nil
}

type nopUploader struct{}

func (nopUploader) Upload(ctx context.Context, videoID, contentType string, body io.Reader) (string, error) {
	return "https://cdn.example.com/episodes/" + videoID + "." + convert.FileExt(contentType), nil
}

type nopEpisodes struct{}

func (nopEpisodes) UpdateEpisode(ctx context.Context, episodeID, fileURL string) error {
	return nil
}

func newTestPool(t *testing.T, repo *postgres.JobRepository, cfg *config.Config, convDelay time.Duration) *WorkerPool {
	t.Helper()
	conv := &slowConverter{delay: convDelay, root: t.TempDir()}
	pipeline := worker.NewPipeline(repo, conv, nopUploader{}, nopEpisodes{}, events.NopPublisher{}, t.TempDir())
	p := NewWorkerPool(cfg, repo, pipeline, events.NopPublisher{})
	p.interval = 25 * time.Millisecond
	return p
}

func enqueueWaiting(t *testing.T, repo *postgres.JobRepository, videoID, status string) uint {
	t.Helper()
	j := &models.Job{
		VideoID:     videoID,
		ContentType: "audio",
		Status:      status,
		MaxAttempts: 3,
		AvailableAt: time.Now().Add(-time.Second),
	}
	require.NoError(t, repo.Create(context.Background(), j))
	return j.ID
}

func TestWorkerPool_BoundsActiveJobs(t *testing.T) {
	repo := setupPoolRepo(t)
	ctx := context.Background()

	const jobCount = 12
	const workers = 3

	for i := 0; i < jobCount; i++ {
		enqueueWaiting(t, repo, fmt.Sprintf("v%02d", i), "waiting")
	}

	p := newTestPool(t, repo, poolConfig(workers), 40*time.Millisecond)
	p.Start()
	defer p.Stop()

	// Sample the queue while it drains; the claims held at any instant must
	// never exceed the worker count.
	var maxActive int64
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		if counts["active"] > maxActive {
			maxActive = counts["active"]
		}
		if counts["completed"] == jobCount {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(jobCount), counts["completed"], "pool must drain the queue")
	assert.Positive(t, maxActive, "sampling must observe jobs in flight")
	assert.LessOrEqual(t, maxActive, int64(workers), "active jobs exceeded the worker count")
}

func TestWorkerPool_JanitorRecoversExpiredLease(t *testing.T) {
	repo := setupPoolRepo(t)
	ctx := context.Background()

	id := enqueueWaiting(t, repo, "abc123", "waiting")

	// Claim with a lease that expires almost immediately, as if the worker
	// holding it died mid-run.
	claimed, err := repo.AcquireNext(ctx, 99, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, id, claimed.ID)
	require.Equal(t, 1, claimed.Attempts)

	// Concurrency zero: only the maintenance loops run.
	p := newTestPool(t, repo, poolConfig(0), 0)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		got, err := repo.Get(ctx, id)
		return err == nil && got.Status == "waiting"
	}, 5*time.Second, 10*time.Millisecond)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Attempts, "recovery refunds the consumed attempt")
	assert.Nil(t, got.LockedBy)
	assert.Nil(t, got.LeaseExpiresAt)
}

func TestWorkerPool_JanitorTrimsFinishedJobs(t *testing.T) {
	repo := setupPoolRepo(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		enqueueWaiting(t, repo, "done", "completed")
		time.Sleep(2 * time.Millisecond) // distinct updated_at for deterministic trim order
	}
	for i := 0; i < 4; i++ {
		enqueueWaiting(t, repo, "dead", "failed")
		time.Sleep(2 * time.Millisecond)
	}

	cfg := poolConfig(0)
	cfg.Retention = config.RetentionConfig{KeepCompleted: 2, KeepFailed: 1}

	p := newTestPool(t, repo, cfg, 0)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		counts, err := repo.CountByStatus(ctx)
		return err == nil && counts["completed"] == 2 && counts["failed"] == 1
	}, 5*time.Second, 10*time.Millisecond)
}
