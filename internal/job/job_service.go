package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/config"
	"github.com/podpay/podpay/internal/dto"
	"github.com/podpay/podpay/internal/models"
	"github.com/podpay/podpay/internal/ratelimit"
	"gorm.io/gorm"
)

type JobService struct {
	repo        JobRepoInterface
	limiter     ratelimit.Limiter
	maxAttempts int
}

func NewJobService(repo JobRepoInterface, limiter ratelimit.Limiter, maxAttempts int) *JobService {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &JobService{repo: repo, limiter: limiter, maxAttempts: maxAttempts}
}

var _ JobServiceInterface = (*JobService)(nil)

// EnqueueJob validates a conversion request, applies the rate-limit admission
// delay derived from the current backlog, persists the job, and returns an
// immediate acknowledgment with the job id and an estimated wait. Callers
// poll for status afterwards.
func (s *JobService) EnqueueJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.EnqueueResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, common.Errf(http.StatusInternalServerError, "failed to inspect queue")
	}
	waiting := int(counts[string(config.JobStatusWaiting)])
	active := int(counts[string(config.JobStatusActive)])

	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = s.maxAttempts
	}

	job := models.Job{
		VideoID:     req.VideoID,
		ContentType: req.ContentType,
		Title:       req.Title,
		EpisodeID:   req.EpisodeID,
		Priority:    req.Priority,
		Status:      string(config.JobStatusWaiting),
		MaxAttempts: maxAttempts,
		AvailableAt: time.Now().Add(s.limiter.StartDelay(waiting)),
	}

	if err := s.repo.Create(ctx, &job); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, common.Errf(http.StatusRequestTimeout, "request was canceled")
		case errors.Is(err, context.DeadlineExceeded):
			return nil, common.Errf(http.StatusRequestTimeout, "request timeout")
		default:
			return nil, common.Errf(http.StatusInternalServerError, "failed to add job to database")
		}
	}

	est := s.limiter.EstimatedWait(waiting+1, active)
	return &dto.EnqueueResponseDTO{
		JobID:  job.ID,
		Status: job.Status,
		EstimatedWait: dto.EstimateDTO{
			QueuePosition:    est.QueuePosition,
			EstimatedMinutes: est.EstimatedMinutes,
			EstimatedTime:    est.EstimatedTime,
		},
	}, nil
}

// EnqueueBatch queues many conversions in order. The whole batch is validated
// before anything is queued, so an invalid entry rejects the batch without
// side effects. A storage failure mid-batch aborts, and the error reports the
// jobs queued before the abort.
func (s *JobService) EnqueueBatch(ctx context.Context, req *dto.BatchCreateDTO) (*dto.BatchEnqueueResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	for i := range req.Jobs {
		if err := validateCreate(&req.Jobs[i]); err != nil {
			apiErr, ok := err.(common.APIError)
			if !ok {
				return nil, err
			}
			fields := map[string]any{"index": i}
			for k, v := range apiErr.Fields {
				fields[k] = v
			}
			return nil, common.NewAPIError(apiErr.Status, apiErr.Message, fields)
		}
	}

	resp := &dto.BatchEnqueueResponseDTO{}
	var queued []uint
	for i := range req.Jobs {
		ack, err := s.EnqueueJob(ctx, &req.Jobs[i])
		if err != nil {
			return nil, common.NewAPIError(
				http.StatusInternalServerError,
				"batch aborted after partial enqueue",
				map[string]any{
					"total_queued":   len(queued),
					"queued_job_ids": queued,
				},
			)
		}
		queued = append(queued, ack.JobID)
		resp.Jobs = append(resp.Jobs, *ack)
	}
	resp.TotalQueued = len(resp.Jobs)
	return resp, nil
}

func validateCreate(req *dto.JobCreateDTO) error {
	if strings.TrimSpace(req.VideoID) == "" {
		return common.Errf(http.StatusBadRequest, "video_id is required")
	}

	if !slices.Contains(config.AllowedContentTypes, req.ContentType) {
		return common.NewAPIError(
			http.StatusBadRequest,
			"invalid content type",
			map[string]any{
				"provided": req.ContentType,
				"allowed":  config.AllowedContentTypes,
			},
		)
	}
	return nil
}

// GetJobByID retrieves a job by its ID from the repository.
// It maps repository errors to appropriate API errors
// (e.g., not found, timeout, or internal failure).
func (s *JobService) GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}

		if errors.Is(err, gorm.ErrRecordNotFound) ||
			strings.Contains(err.Error(), "job not found") {
			return nil, common.Errf(http.StatusNotFound, "job not found")
		}

		return nil, common.Errf(http.StatusInternalServerError, "failed to get job")
	}

	resp := toResponseDTO(job)
	return &resp, nil
}

// ListJobs retrieves jobs filtered by lifecycle status. An empty status
// returns everything.
func (s *JobService) ListJobs(ctx context.Context, status string) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if status != "" && !config.JobStatus(status).Known() {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid status",
			map[string]any{"provided": status},
		)
	}

	jobs, err := s.repo.List(ctx, status)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		return nil, common.Errf(http.StatusInternalServerError, "failed to list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i := range jobs {
		dtos[i] = toResponseDTO(&jobs[i])
	}
	return dtos, nil
}

// Stats reports queue depth per state alongside the advisory monthly-quota
// projection. The projection never blocks processing.
func (s *JobService) Stats(ctx context.Context) (*dto.StatsDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, common.Errf(http.StatusInternalServerError, "failed to count jobs")
	}

	windowStart, err := s.repo.OldestFinishedAt(ctx)
	if err != nil {
		return nil, common.Errf(http.StatusInternalServerError, "failed to inspect usage window")
	}
	if windowStart.IsZero() {
		windowStart = time.Now()
	}

	completed := counts[string(config.JobStatusCompleted)]
	usage := s.limiter.Usage(completed, windowStart, time.Now())

	queue := dto.QueueCountsDTO{
		Waiting:   counts[string(config.JobStatusWaiting)],
		Active:    counts[string(config.JobStatusActive)],
		Completed: completed,
		Failed:    counts[string(config.JobStatusFailed)],
	}
	queue.Total = queue.Waiting + queue.Active + queue.Completed + queue.Failed

	return &dto.StatsDTO{
		Queue: queue,
		Usage: dto.UsageDTO{
			EstimatedMonthly: usage.EstimatedMonthly,
			RemainingQuota:   usage.RemainingQuota,
			QuotaPercentage:  usage.QuotaPercentage,
			NearingCap:       usage.NearingCap,
		},
		RateLimits: dto.RateLimitsDTO{
			PerMinute:          s.limiter.PerMinute,
			CurrentMinuteUsage: queue.Active,
		},
	}, nil
}

func toResponseDTO(job *models.Job) dto.JobResponseDTO {
	return dto.JobResponseDTO{
		ID:          job.ID,
		VideoID:     job.VideoID,
		ContentType: job.ContentType,
		Title:       job.Title,
		EpisodeID:   job.EpisodeID,
		Priority:    job.Priority,
		Status:      job.Status,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		Progress:    job.Progress,
		Result:      json.RawMessage(job.Result),
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}
