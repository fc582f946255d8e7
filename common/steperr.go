package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StepError is raised by the conversion, upload, and episode-update steps.
// It carries enough context (video id, HTTP status) for the worker to decide
// between requeue and final failure. The worker is the sole decision point.
type StepError struct {
	Step      string
	VideoID   string
	Status    int
	Retryable bool
	Err       error
}

func (e *StepError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s failed for %s (status %d): %v", e.Step, e.VideoID, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Step, e.VideoID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError classifies by HTTP status: 429 and 5xx are transient, 404 and
// 403 are terminal. Pass status 0 for non-HTTP failures and set retryable
// explicitly with Terminal.
func NewStepError(step, videoID string, status int, err error) *StepError {
	return &StepError{
		Step:      step,
		VideoID:   videoID,
		Status:    status,
		Retryable: RetryableStatus(status),
		Err:       err,
	}
}

// Terminal marks the error non-retryable regardless of status.
func (e *StepError) Terminal() *StepError {
	e.Retryable = false
	return e
}

func RetryableStatus(status int) bool {
	switch {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	case status == http.StatusNotFound, status == http.StatusForbidden:
		return false
	default:
		return status < 400
	}
}

// Retryable reports whether a pipeline error should be requeued. Timeouts and
// unclassified errors count as transient; only an explicit terminal StepError
// fails the job outright.
func Retryable(err error) bool {
	var step *StepError
	if errors.As(err, &step) {
		return step.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return true
}
