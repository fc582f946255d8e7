package dto

type QueueCountsDTO struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}

type UsageDTO struct {
	EstimatedMonthly int64   `json:"estimated_monthly"`
	RemainingQuota   int64   `json:"remaining_quota"`
	QuotaPercentage  float64 `json:"quota_percentage"`
	NearingCap       bool    `json:"nearing_cap"`
}

type RateLimitsDTO struct {
	PerMinute          int   `json:"per_minute"`
	CurrentMinuteUsage int64 `json:"current_minute_usage"`
}

type StatsDTO struct {
	Queue      QueueCountsDTO `json:"queue"`
	Usage      UsageDTO       `json:"usage"`
	RateLimits RateLimitsDTO  `json:"rate_limits"`
}
