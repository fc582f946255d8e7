package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job is one unit of work converting a single video into one podcast episode
// asset. The row doubles as the broker entry: LockedBy/LockedAt/LeaseExpiresAt
// form the lease, AvailableAt delays admission and retries.
type Job struct {
	ID             uint `gorm:"primaryKey"`
	VideoID        string
	ContentType    string
	Title          string
	EpisodeID      string
	Priority       int
	Status         string
	Attempts       int
	MaxAttempts    int
	Progress       int
	Result         datatypes.JSON
	Error          string
	AvailableAt    time.Time
	LockedBy       *uint
	LockedAt       *time.Time
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
