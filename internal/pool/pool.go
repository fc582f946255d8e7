// Package pool runs the worker fleet plus the background maintenance loops:
// stuck-lease recovery, finished-job retention, and periodic queue reporting.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/podpay/podpay/internal/config"
	"github.com/podpay/podpay/internal/events"
	"github.com/podpay/podpay/internal/job"
	"github.com/podpay/podpay/internal/ratelimit"
	"github.com/podpay/podpay/internal/retry"
	"github.com/podpay/podpay/internal/worker"
	"github.com/rs/zerolog/log"
)

const maintenanceInterval = 30 * time.Second

type WorkerPool struct {
	workers   []*worker.Worker
	repo      job.JobRepoInterface
	limiter   ratelimit.Limiter
	retention config.RetentionConfig
	interval  time.Duration
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewWorkerPool(cfg *config.Config, repo job.JobRepoInterface, pipeline *worker.Pipeline, pub events.Publisher) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		repo:      repo,
		limiter:   ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.MonthlyCap),
		retention: cfg.Retention,
		interval:  maintenanceInterval,
		ctx:       ctx,
		cancel:    cancel,
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     retry.Backoff{Kind: retry.KindExponential, BaseDelay: cfg.Retry.BaseDelay},
	}
	for i := 1; i <= cfg.Worker.Concurrency; i++ {
		p.workers = append(p.workers, worker.NewWorker(uint(i), repo, pipeline, policy, cfg.Worker.LockDuration, pub))
	}
	return p
}

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		w.Start(p.ctx)
	}

	p.wg.Add(2)
	go p.janitor()
	go p.monitor()
	log.Info().Int("workers", len(p.workers)).Msg("worker pool started")
}

// janitor recovers jobs whose lease deadline passed (worker crashed mid-run)
// and trims finished jobs down to the retention window. A recovered job gets
// its consumed attempt back.
func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stuck, err := p.repo.ListExpiredLeases(p.ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to list expired leases")
				continue
			}
			for _, j := range stuck {
				log.Warn().Uint("jobId", j.ID).Str("videoId", j.VideoID).Msg("recovering stuck job")
				if err := p.repo.Release(p.ctx, j.ID); err != nil {
					log.Error().Err(err).Uint("jobId", j.ID).Msg("failed to release stuck job")
				}
			}

			if err := p.repo.TrimFinished(p.ctx, p.retention.KeepCompleted, p.retention.KeepFailed); err != nil {
				log.Error().Err(err).Msg("failed to trim finished jobs")
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// monitor logs queue depth per state and warns when the projected monthly
// volume approaches the advisory cap. It never throttles anything.
func (p *WorkerPool) monitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			counts, err := p.repo.CountByStatus(p.ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to count jobs")
				continue
			}
			log.Info().
				Int64("waiting", counts["waiting"]).
				Int64("active", counts["active"]).
				Int64("completed", counts["completed"]).
				Int64("failed", counts["failed"]).
				Msg("queue status")

			windowStart, err := p.repo.OldestFinishedAt(p.ctx)
			if err != nil || windowStart.IsZero() {
				continue
			}
			usage := p.limiter.Usage(counts["completed"], windowStart, time.Now())
			if usage.NearingCap {
				log.Warn().
					Int64("estimatedMonthly", usage.EstimatedMonthly).
					Float64("quotaPct", usage.QuotaPercentage).
					Msg("projected volume is nearing the monthly quota")
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) Stop() {
	p.cancel()
	for _, w := range p.workers {
		w.Stop()
	}
	p.wg.Wait()
	log.Info().Msg("worker pool stopped")
}
