package worker

import (
	"context"
	"errors"
	"time"

	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/events"
	"github.com/podpay/podpay/internal/job"
	"github.com/podpay/podpay/internal/models"
	"github.com/podpay/podpay/internal/retry"
	"github.com/rs/zerolog/log"
)

type Worker struct {
	ID           uint
	repo         job.JobRepoInterface
	pipeline     *Pipeline
	policy       retry.Policy
	lockDuration time.Duration
	events       events.Publisher
	quit         chan struct{}
}

func NewWorker(id uint, repo job.JobRepoInterface, pipeline *Pipeline, policy retry.Policy, lockDuration time.Duration, pub events.Publisher) *Worker {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Worker{
		ID:           id,
		repo:         repo,
		pipeline:     pipeline,
		policy:       policy,
		lockDuration: lockDuration,
		events:       pub,
		quit:         make(chan struct{}),
	}
}

// Start runs the poll loop until Stop or context cancellation. An idle worker
// backs off its polling interval up to a minute; any claimed job resets it.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		currentDelay := 1 * time.Second
		maxDelay := 60 * time.Second

		for {
			j := w.pullJob(ctx)

			if j != nil {
				w.process(ctx, j)
				currentDelay = 1 * time.Second
			} else {
				currentDelay = min(currentDelay*2, maxDelay)
			}

			select {
			case <-time.After(currentDelay):
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Worker) pullJob(ctx context.Context) *models.Job {
	j, err := w.repo.AcquireNext(ctx, w.ID, w.lockDuration)
	if err != nil {
		if !errors.Is(err, job.ErrNoJob) && ctx.Err() == nil {
			log.Error().Err(err).Uint("worker", w.ID).Msg("failed to poll for work")
		}
		return nil
	}
	return j
}

// process runs the pipeline and settles the job: completed on success,
// requeued with backoff on a transient failure, failed once the error is
// terminal or the attempt budget is spent.
func (w *Worker) process(ctx context.Context, j *models.Job) {
	log.Info().Uint("worker", w.ID).Uint("jobId", j.ID).Str("videoId", j.VideoID).
		Int("attempt", j.Attempts).Msg("processing job")

	result, err := w.pipeline.Run(ctx, j)
	if err == nil {
		if err := w.repo.MarkCompleted(ctx, j.ID, result); err != nil {
			log.Error().Err(err).Uint("jobId", j.ID).Msg("failed to mark job completed")
			return
		}
		w.notify(ctx, j, "completed", 100, "")
		log.Info().Uint("jobId", j.ID).Str("videoId", j.VideoID).Msg("job completed")
		return
	}

	maxAttempts := j.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = w.policy.MaxAttempts
	}

	if common.Retryable(err) && j.Attempts < maxAttempts {
		delay := w.policy.Delay(j.Attempts)
		nextRun := time.Now().Add(delay)
		if rErr := w.repo.RetryLater(ctx, j.ID, nextRun, err.Error()); rErr != nil {
			log.Error().Err(rErr).Uint("jobId", j.ID).Msg("failed to requeue job")
			return
		}
		w.notify(ctx, j, "waiting", 0, err.Error())
		log.Warn().Err(err).Uint("jobId", j.ID).Int("attempt", j.Attempts).
			Dur("delay", delay).Msg("job requeued")
		return
	}

	if fErr := w.repo.MarkFailed(ctx, j.ID, err.Error()); fErr != nil {
		log.Error().Err(fErr).Uint("jobId", j.ID).Msg("failed to mark job failed")
		return
	}
	w.notify(ctx, j, "failed", j.Progress, err.Error())
	log.Error().Err(err).Uint("jobId", j.ID).Int("attempts", j.Attempts).Msg("job failed")
}

func (w *Worker) notify(ctx context.Context, j *models.Job, status string, progress int, errMsg string) {
	if err := w.events.Publish(ctx, events.Event{
		JobID:    j.ID,
		VideoID:  j.VideoID,
		Status:   status,
		Progress: progress,
		Error:    errMsg,
	}); err != nil {
		log.Debug().Err(err).Uint("jobId", j.ID).Msg("failed to publish lifecycle event")
	}
}

func (w *Worker) Stop() { close(w.quit) }
