package dto

import (
	"encoding/json"
	"time"
)

type JobCreateDTO struct {
	VideoID     string `json:"video_id" validate:"required"`
	ContentType string `json:"content_type" validate:"required,oneof=audio video"`
	Title       string `json:"title"`
	EpisodeID   string `json:"episode_id"`
	Priority    int    `json:"priority" validate:"gte=0,lte=10"`
	MaxAttempts int    `json:"max_attempts" validate:"gte=0,lte=10"`
}

type BatchCreateDTO struct {
	Jobs []JobCreateDTO `json:"jobs" validate:"required,min=1,max=500,dive"`
}

type JobResponseDTO struct {
	ID          uint            `json:"id"`
	VideoID     string          `json:"video_id"`
	ContentType string          `json:"content_type"`
	Title       string          `json:"title,omitempty"`
	EpisodeID   string          `json:"episode_id,omitempty"`
	Priority    int             `json:"priority"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EnqueueResponseDTO is the immediate acknowledgment returned on enqueue.
// Callers poll job status afterwards; there is no push notification.
type EnqueueResponseDTO struct {
	JobID         uint        `json:"job_id"`
	Status        string      `json:"status"`
	EstimatedWait EstimateDTO `json:"estimated_wait"`
}

type BatchEnqueueResponseDTO struct {
	TotalQueued int                  `json:"total_queued"`
	Jobs        []EnqueueResponseDTO `json:"jobs"`
}

type EstimateDTO struct {
	QueuePosition    int       `json:"queue_position"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	EstimatedTime    time.Time `json:"estimated_time"`
}
