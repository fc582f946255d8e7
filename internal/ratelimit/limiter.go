package ratelimit

import (
	"time"
)

// Limiter spaces out conversion starts against the upstream per-minute quota
// and projects monthly volume against the hard cap. The projection is
// advisory only; nothing here blocks enqueuing.
type Limiter struct {
	PerMinute  int
	MonthlyCap int64
	// WarnThreshold is the fraction of the monthly cap at which Usage
	// flags the projection. Zero means the default of 0.8.
	WarnThreshold float64
}

func New(perMinute int, monthlyCap int64) Limiter {
	return Limiter{PerMinute: perMinute, MonthlyCap: monthlyCap}
}

// StartDelay computes how long a newly admitted job should wait before it may
// start, given the current backlog: every full per-minute budget ahead of it
// adds a minute.
func (l Limiter) StartDelay(queueDepth int) time.Duration {
	if l.PerMinute <= 0 || queueDepth <= 0 {
		return 0
	}
	minutes := (queueDepth + l.PerMinute - 1) / l.PerMinute
	return time.Duration(minutes) * time.Minute
}

type Estimate struct {
	QueuePosition    int
	EstimatedMinutes int
	EstimatedTime    time.Time
}

// EstimatedWait mirrors StartDelay for caller-facing acknowledgments, counting
// both waiting and active jobs ahead in line.
func (l Limiter) EstimatedWait(waiting, active int) Estimate {
	position := waiting + active
	minutes := 0
	if l.PerMinute > 0 && position > 0 {
		minutes = (position + l.PerMinute - 1) / l.PerMinute
	}
	return Estimate{
		QueuePosition:    position,
		EstimatedMinutes: minutes,
		EstimatedTime:    time.Now().Add(time.Duration(minutes) * time.Minute),
	}
}

type Usage struct {
	EstimatedMonthly int64
	RemainingQuota   int64
	QuotaPercentage  float64
	NearingCap       bool
}

// Usage extrapolates the completion rate since windowStart to a 30-day
// projection and compares it against the monthly cap.
func (l Limiter) Usage(completed int64, windowStart, now time.Time) Usage {
	elapsed := now.Sub(windowStart)
	if elapsed <= 0 {
		elapsed = time.Second
	}

	perDay := float64(completed) / (elapsed.Hours() / 24)
	estimated := int64(perDay * 30)

	u := Usage{
		EstimatedMonthly: estimated,
		RemainingQuota:   l.MonthlyCap - estimated,
	}
	if l.MonthlyCap > 0 {
		u.QuotaPercentage = float64(estimated) / float64(l.MonthlyCap) * 100
		threshold := l.WarnThreshold
		if threshold == 0 {
			threshold = 0.8
		}
		u.NearingCap = float64(estimated) >= float64(l.MonthlyCap)*threshold
	}
	return u
}
