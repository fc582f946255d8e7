package job

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/dto"
	"github.com/podpay/podpay/internal/mocks"
	"github.com/podpay/podpay/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestRouter(mockService *mocks.JobServiceMock) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	handler := NewJobHandler(mockService)
	r.POST("/api/jobs", handler.Create)
	r.POST("/api/jobs/batch", handler.CreateBatch)
	r.GET("/api/jobs/:id", handler.Get)
	r.GET("/api/jobs", handler.List)
	r.GET("/api/stats", handler.Stats)
	return r
}

func TestJobHandler_Create(t *testing.T) {
	gin.SetMode(gin.TestMode)

	validAck := &dto.EnqueueResponseDTO{
		JobID:  1,
		Status: "waiting",
		EstimatedWait: dto.EstimateDTO{
			QueuePosition:    1,
			EstimatedMinutes: 1,
		},
	}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*mocks.JobServiceMock)
		expectedStatus int
	}{
		{
			name: "successful enqueue",
			body: `{"video_id":"dQw4w9WgXcQ","content_type":"audio"}`,
			setupMock: func(m *mocks.JobServiceMock) {
				m.On("EnqueueJob", mock.Anything, mock.Anything).Return(validAck, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid request body JSON",
			body:           `{video_id:}`,
			setupMock:      func(m *mocks.JobServiceMock) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing video id fails validation",
			body:           `{"content_type":"audio"}`,
			setupMock:      func(m *mocks.JobServiceMock) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "content type outside allowed set",
			body:           `{"video_id":"abc123","content_type":"text"}`,
			setupMock:      func(m *mocks.JobServiceMock) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "service failure surfaces as 500",
			body: `{"video_id":"abc123","content_type":"video"}`,
			setupMock: func(m *mocks.JobServiceMock) {
				m.On("EnqueueJob", mock.Anything, mock.Anything).
					Return(nil, common.Errf(http.StatusInternalServerError, "failed to add job to database"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.JobServiceMock)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			newTestRouter(mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Status code mismatch for test: %s", tt.name)
			mockService.AssertExpectations(t)
		})
	}
}

func TestJobHandler_CreateBatch(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		body           string
		setupMock      func(*mocks.JobServiceMock)
		expectedStatus int
	}{
		{
			name: "successful batch",
			body: `{"jobs":[{"video_id":"a1","content_type":"audio"},{"video_id":"a2","content_type":"video"}]}`,
			setupMock: func(m *mocks.JobServiceMock) {
				m.On("EnqueueBatch", mock.Anything, mock.Anything).Return(&dto.BatchEnqueueResponseDTO{
					TotalQueued: 2,
					Jobs: []dto.EnqueueResponseDTO{
						{JobID: 1, Status: "waiting"},
						{JobID: 2, Status: "waiting"},
					},
				}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "empty batch fails validation",
			body:           `{"jobs":[]}`,
			setupMock:      func(m *mocks.JobServiceMock) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "entry with bad content type fails validation",
			body:           `{"jobs":[{"video_id":"a1","content_type":"flac"}]}`,
			setupMock:      func(m *mocks.JobServiceMock) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.JobServiceMock)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/jobs/batch", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			newTestRouter(mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestJobHandler_Get(t *testing.T) {
	gin.SetMode(gin.TestMode)

	validJobResponse := &dto.JobResponseDTO{
		ID:          1,
		VideoID:     "dQw4w9WgXcQ",
		ContentType: "audio",
		Status:      "waiting",
		Attempts:    0,
		MaxAttempts: 3,
	}

	tests := []struct {
		name           string
		jobID          string
		setupMock      func(*mocks.JobServiceMock)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:  "successful fetch",
			jobID: "1",
			setupMock: func(m *mocks.JobServiceMock) {
				m.On("GetJobByID", mock.Anything, uint(1)).Return(validJobResponse, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"id":1,"video_id":"dQw4w9WgXcQ","content_type":"audio","priority":0,"status":"waiting","attempts":0,"max_attempts":3,"progress":0,"created_at":"0001-01-01T00:00:00Z","updated_at":"0001-01-01T00:00:00Z"}`,
		},
		{
			name:           "invalid ID param",
			jobID:          "abc",
			setupMock:      func(m *mocks.JobServiceMock) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid ID"}`,
		},
		{
			name:  "job not found",
			jobID: "99",
			setupMock: func(m *mocks.JobServiceMock) {
				m.On("GetJobByID", mock.Anything, uint(99)).Return(nil, common.Errf(http.StatusNotFound, "job not found"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"job not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.JobServiceMock)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+tt.jobID, nil)
			w := httptest.NewRecorder()

			newTestRouter(mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}

func TestJobHandler_List(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		query          string
		setupMock      func(*mocks.JobServiceMock)
		expectedStatus int
	}{
		{
			name:  "list all",
			query: "",
			setupMock: func(m *mocks.JobServiceMock) {
				m.On("ListJobs", mock.Anything, "").Return([]dto.JobResponseDTO{
					{ID: 1, VideoID: "a1", Status: "waiting"},
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "filter by status",
			query: "?status=failed",
			setupMock: func(m *mocks.JobServiceMock) {
				m.On("ListJobs", mock.Anything, "failed").Return([]dto.JobResponseDTO{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "unknown status rejected",
			query: "?status=sleeping",
			setupMock: func(m *mocks.JobServiceMock) {
				m.On("ListJobs", mock.Anything, "sleeping").
					Return(nil, common.Errf(http.StatusBadRequest, "invalid status"))
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.JobServiceMock)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodGet, "/api/jobs"+tt.query, nil)
			w := httptest.NewRecorder()

			newTestRouter(mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestJobHandler_Stats(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(mocks.JobServiceMock)
	mockService.On("Stats", mock.Anything).Return(&dto.StatsDTO{
		Queue: dto.QueueCountsDTO{Waiting: 3, Active: 1, Completed: 10, Failed: 2, Total: 16},
		Usage: dto.UsageDTO{EstimatedMonthly: 300, RemainingQuota: 159_700, QuotaPercentage: 0.1875},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	newTestRouter(mockService).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"waiting":3`)
	assert.Contains(t, w.Body.String(), `"estimated_monthly":300`)
	mockService.AssertExpectations(t)
}
