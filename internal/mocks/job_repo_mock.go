package mocks

import (
	"context"
	"time"

	"github.com/podpay/podpay/internal/models"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobRepoMock) Get(ctx context.Context, id uint) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) AcquireNext(ctx context.Context, workerID uint, lockDuration time.Duration) (*models.Job, error) {
	args := m.Called(ctx, workerID, lockDuration)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) UpdateProgress(ctx context.Context, id uint, progress int) error {
	args := m.Called(ctx, id, progress)
	return args.Error(0)
}

func (m *JobRepoMock) MarkCompleted(ctx context.Context, id uint, result datatypes.JSON) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *JobRepoMock) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *JobRepoMock) RetryLater(ctx context.Context, id uint, availableAt time.Time, errMsg string) error {
	args := m.Called(ctx, id, availableAt, errMsg)
	return args.Error(0)
}

func (m *JobRepoMock) Release(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) ListExpiredLeases(ctx context.Context) ([]models.Job, error) {
	args := m.Called(ctx)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, status string) ([]models.Job, error) {
	args := m.Called(ctx, status)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) CountByStatus(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)

	counts, _ := args.Get(0).(map[string]int64)
	return counts, args.Error(1)
}

func (m *JobRepoMock) OldestFinishedAt(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)

	at, _ := args.Get(0).(time.Time)
	return at, args.Error(1)
}

func (m *JobRepoMock) TrimFinished(ctx context.Context, keepCompleted, keepFailed int) error {
	args := m.Called(ctx, keepCompleted, keepFailed)
	return args.Error(0)
}
