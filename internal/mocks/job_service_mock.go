package mocks

import (
	"context"

	"github.com/podpay/podpay/internal/dto"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) EnqueueJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.EnqueueResponseDTO, error) {
	args := m.Called(ctx, req)

	ack, _ := args.Get(0).(*dto.EnqueueResponseDTO)
	return ack, args.Error(1)
}

func (m *JobServiceMock) EnqueueBatch(ctx context.Context, req *dto.BatchCreateDTO) (*dto.BatchEnqueueResponseDTO, error) {
	args := m.Called(ctx, req)

	ack, _ := args.Get(0).(*dto.BatchEnqueueResponseDTO)
	return ack, args.Error(1)
}

func (m *JobServiceMock) GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, status string) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, status)

	jobs, _ := args.Get(0).([]dto.JobResponseDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) Stats(ctx context.Context) (*dto.StatsDTO, error) {
	args := m.Called(ctx)

	stats, _ := args.Get(0).(*dto.StatsDTO)
	return stats, args.Error(1)
}
