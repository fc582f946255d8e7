package job

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/podpay/podpay/internal/dto"
	"github.com/podpay/podpay/internal/models"
	"gorm.io/datatypes"
)

// ErrNoJob is returned by AcquireNext when no waiting job is due.
var ErrNoJob = errors.New("no job available")

// JobRepoInterface defines the contract for the durable job store. The store
// doubles as the broker: AcquireNext grants the lease, RetryLater and Release
// re-enqueue, MarkCompleted and MarkFailed terminate.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uint) (*models.Job, error)
	AcquireNext(ctx context.Context, workerID uint, lockDuration time.Duration) (*models.Job, error)
	UpdateProgress(ctx context.Context, id uint, progress int) error
	MarkCompleted(ctx context.Context, id uint, result datatypes.JSON) error
	MarkFailed(ctx context.Context, id uint, errMsg string) error
	RetryLater(ctx context.Context, id uint, availableAt time.Time, errMsg string) error
	Release(ctx context.Context, id uint) error
	ListExpiredLeases(ctx context.Context) ([]models.Job, error)
	List(ctx context.Context, status string) ([]models.Job, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	OldestFinishedAt(ctx context.Context) (time.Time, error)
	TrimFinished(ctx context.Context, keepCompleted, keepFailed int) error
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	EnqueueJob(ctx context.Context, dto *dto.JobCreateDTO) (*dto.EnqueueResponseDTO, error)
	EnqueueBatch(ctx context.Context, dto *dto.BatchCreateDTO) (*dto.BatchEnqueueResponseDTO, error)
	GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, status string) ([]dto.JobResponseDTO, error)
	Stats(ctx context.Context) (*dto.StatsDTO, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	CreateBatch(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Stats(c *gin.Context)
}
