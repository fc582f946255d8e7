package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/dto"
	"github.com/podpay/podpay/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// Create handles HTTP requests for enqueuing a single conversion job.
// It validates and binds the request body, delegates to the JobService,
// and returns HTTP 201 with the job id and estimated wait.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.JobCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	ack, err := h.service.EnqueueJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, ack)
}

// CreateBatch enqueues many conversion jobs in one request.
func (h *JobHandler) CreateBatch(c *gin.Context) {
	var req dto.BatchCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	ack, err := h.service.EnqueueBatch(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, ack)
}

// Get handles HTTP requests to fetch a job by its ID.
func (h *JobHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "Invalid ID"})
		return
	}

	resp, err := h.service.GetJobByID(c.Request.Context(), uint(id))
	if err != nil {
		if apiErr, ok := err.(common.APIError); ok {
			c.JSON(apiErr.Status, apiErr)
			return
		}
		c.JSON(http.StatusInternalServerError, common.APIError{Message: "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles HTTP requests to retrieve jobs, optionally filtered by the
// status query parameter.
func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.service.ListJobs(c.Request.Context(), c.Query("status"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Stats reports queue counts and the advisory quota projection.
func (h *JobHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
