package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podpay/podpay/internal/config"
	"github.com/podpay/podpay/internal/job"
	"github.com/podpay/podpay/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ job.JobRepoInterface = (*JobRepository)(nil)

// Create inserts a new job record into the database. It uses the provided
// context for cancellation and timeout propagation. Returns an error if the
// database operation fails.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get retrieves a single job record by its ID. Returns the job if found,
// or an error if the job doesn't exist or the database query fails.
func (r *JobRepository) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", err)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// AcquireNext claims the next due waiting job for a worker: highest priority
// first, FIFO within a tier. The claim is a guarded UPDATE (status must still
// be waiting), so two workers racing for the same row cannot both win the
// lease. Claiming consumes one attempt, resets progress, and stamps the lease
// deadline at lockDuration from now; the janitor reclaims jobs past it.
func (r *JobRepository) AcquireNext(ctx context.Context, workerID uint, lockDuration time.Duration) (*models.Job, error) {
	now := time.Now()
	expiry := now.Add(lockDuration)

	var candidate models.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", config.JobStatusWaiting, now).
		Order("priority DESC").
		Order("created_at ASC").
		First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, job.ErrNoJob
		}
		return nil, fmt.Errorf("select next job: %w", err)
	}

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", candidate.ID, config.JobStatusWaiting).
		Updates(map[string]any{
			"status":           config.JobStatusActive,
			"locked_by":        workerID,
			"locked_at":        now,
			"lease_expires_at": expiry,
			"attempts":         gorm.Expr("attempts + ?", 1),
			"progress":         0,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("claim job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race to another worker; the caller polls again.
		return nil, job.ErrNoJob
	}

	candidate.Status = string(config.JobStatusActive)
	candidate.LockedBy = &workerID
	candidate.LockedAt = &now
	candidate.LeaseExpiresAt = &expiry
	candidate.Attempts++
	candidate.Progress = 0
	return &candidate, nil
}

// UpdateProgress records a progress milestone for an active job. Progress is
// only meaningful while the job is active, so the update is guarded on status.
func (r *JobRepository) UpdateProgress(ctx context.Context, id uint, progress int) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, config.JobStatusActive).
		Update("progress", progress).Error; err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a successful job: result stored, progress pinned to
// 100, lease cleared.
func (r *JobRepository) MarkCompleted(ctx context.Context, id uint, result datatypes.JSON) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           config.JobStatusCompleted,
			"result":           result,
			"progress":         100,
			"error":            "",
			"locked_by":        nil,
			"locked_at":        nil,
			"lease_expires_at": nil,
		}).Error; err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed moves a job to its terminal failed state, preserving the most
// recent error message.
func (r *JobRepository) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           config.JobStatusFailed,
			"error":            errMsg,
			"locked_by":        nil,
			"locked_at":        nil,
			"lease_expires_at": nil,
		}).Error; err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// RetryLater re-enqueues a job after a transient failure. The job becomes
// waiting again and is not due before availableAt; the failure reason is kept
// for inspection.
func (r *JobRepository) RetryLater(ctx context.Context, id uint, availableAt time.Time, errMsg string) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           config.JobStatusWaiting,
			"available_at":     availableAt,
			"error":            errMsg,
			"progress":         0,
			"locked_by":        nil,
			"locked_at":        nil,
			"lease_expires_at": nil,
		}).Error; err != nil {
		return fmt.Errorf("retry later: %w", err)
	}
	return nil
}

// Release returns a stuck job to the waiting state without touching its
// attempt counter. Used by the janitor when a worker died holding a lease.
func (r *JobRepository) Release(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           config.JobStatusWaiting,
			"locked_by":        nil,
			"locked_at":        nil,
			"lease_expires_at": nil,
			"progress":         0,
			"attempts":         gorm.Expr("attempts - ?", 1),
		}).Error; err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	return nil
}

// ListExpiredLeases returns active jobs whose stamped lease deadline has
// passed, meaning the worker holding them likely died mid-run.
func (r *JobRepository) ListExpiredLeases(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND lease_expires_at < ?", config.JobStatusActive, time.Now()).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list expired leases: %w", err)
	}
	return jobs, nil
}

// List retrieves jobs filtered by status, or all jobs when status is empty.
func (r *JobRepository) List(ctx context.Context, status string) ([]models.Job, error) {
	var jobs []models.Job
	q := r.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs per lifecycle state.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// OldestFinishedAt returns the update time of the oldest completed job, used
// as the observation window start for quota projections.
func (r *JobRepository) OldestFinishedAt(ctx context.Context) (time.Time, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Where("status = ?", config.JobStatusCompleted).
		Order("updated_at ASC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("oldest finished: %w", err)
	}
	return job.UpdatedAt, nil
}

// TrimFinished enforces the retention window: only the most recent
// keepCompleted completed and keepFailed failed rows survive.
func (r *JobRepository) TrimFinished(ctx context.Context, keepCompleted, keepFailed int) error {
	if err := r.trimStatus(ctx, string(config.JobStatusCompleted), keepCompleted); err != nil {
		return err
	}
	return r.trimStatus(ctx, string(config.JobStatusFailed), keepFailed)
}

func (r *JobRepository) trimStatus(ctx context.Context, status string, keep int) error {
	if keep < 0 {
		return nil
	}

	sub := r.db.Model(&models.Job{}).
		Select("id").
		Where("status = ?", status).
		Order("updated_at DESC").
		Limit(keep)

	if err := r.db.WithContext(ctx).
		Where("status = ? AND id NOT IN (?)", status, sub).
		Delete(&models.Job{}).Error; err != nil {
		return fmt.Errorf("trim %s jobs: %w", status, err)
	}
	return nil
}
