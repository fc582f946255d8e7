package config

type JobStatus string

// Job lifecycle. A job re-enters "waiting" when a transient failure
// leaves attempts below the budget.
var (
	AllowedContentTypes           = []string{"audio", "video"}
	ContentTypeAudio              = "audio"
	ContentTypeVideo              = "video"
	JobStatusWaiting    JobStatus = "waiting"
	JobStatusActive     JobStatus = "active"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Known() bool {
	switch s {
	case JobStatusWaiting, JobStatusActive, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
