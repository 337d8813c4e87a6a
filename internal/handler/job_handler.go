package handler

import (
	"strconv"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/dto"
	"quiz-forge/internal/logger"
	"quiz-forge/internal/middleware"
	"quiz-forge/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JobHandler handles generation-job HTTP requests
type JobHandler struct {
	service service.JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(service service.JobService) *JobHandler {
	return &JobHandler{
		service: service,
	}
}

// CreateJob handles POST /api/jobs
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var body dto.CreateJobRequest
	if err := c.BodyParser(&body); err != nil {
		logger.Get().Warn("Failed to parse job creation body", zap.Error(err))
		return domain.NewValidationError("invalid request body")
	}

	job, err := h.service.CreateJob(c.Context(), userID, body.ToDomain())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.NewJobResponse(job))
}

// GetJob handles GET /api/jobs/:id
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	jobID := c.Params("id")
	if jobID == "" {
		return domain.NewValidationError("job ID is required")
	}

	job, err := h.service.GetJob(c.Context(), jobID, userID)
	if err != nil {
		return err
	}

	return c.JSON(dto.NewJobResponse(job))
}

// CancelJob handles DELETE /api/jobs/:id. Cancelling a job that already
// reached a terminal state is a no-op and returns that state.
func (h *JobHandler) CancelJob(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	jobID := c.Params("id")
	if jobID == "" {
		return domain.NewValidationError("job ID is required")
	}

	job, err := h.service.CancelJob(c.Context(), jobID, userID)
	if err != nil {
		return err
	}

	return c.JSON(dto.NewJobResponse(job))
}

// ListJobs handles GET /api/jobs
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	result, err := h.service.ListJobs(c.Context(), userID, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(dto.NewJobListResponse(result))
}

// GetStatistics handles GET /api/jobs/stats
func (h *JobHandler) GetStatistics(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	stats, err := h.service.GetStatistics(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(dto.NewJobStatisticsResponse(stats))
}

// requireUserID extracts the authenticated user from the context locals.
func requireUserID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		return "", domain.NewError(domain.ErrUnauthorized, "Authentication required", nil)
	}
	return userID, nil
}

func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
