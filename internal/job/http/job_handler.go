// Package http provides HTTP handlers for job operations.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/httputil"
	"github.com/SUNET/transcribe-backend/internal/identity"
	"github.com/SUNET/transcribe-backend/internal/job/http/dto"
	"github.com/SUNET/transcribe-backend/internal/job/usecase"
	userDomain "github.com/SUNET/transcribe-backend/internal/user/domain"
	customValidation "github.com/SUNET/transcribe-backend/internal/validation"
)

// JobHandler handles HTTP requests for job operations.
type JobHandler struct {
	jobUseCase usecase.UseCase
	logger     *slog.Logger
}

// NewJobHandler creates a new job handler with required dependencies.
func NewJobHandler(jobUseCase usecase.UseCase, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobUseCase: jobUseCase,
		logger:     logger,
	}
}

// ListHandler returns the caller's jobs, newest first.
// GET /v1/jobs
func (h *JobHandler) ListHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}

	jobs, err := h.jobUseCase.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToJobListResponse(jobs))
}

// GetHandler returns a single job.
// GET /v1/jobs/:id
func (h *JobHandler) GetHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.jobUseCase.Get(c.Request.Context(), jobID, user.ID, user.Admin)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}

// UpdateHandler applies a partial update to a job.
// PUT /v1/jobs/:id
func (h *JobHandler) UpdateHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	job, err := h.jobUseCase.Update(c.Request.Context(), jobID, user.ID, user.Admin, dto.ToUpdateJobInput(req))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}

// DeleteHandler removes a job and its stored objects.
// DELETE /v1/jobs/:id
func (h *JobHandler) DeleteHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	if err := h.jobUseCase.Delete(c.Request.Context(), jobID, user.ID, user.Admin); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *JobHandler) caller(c *gin.Context) (*userDomain.User, bool) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return nil, false
	}
	return user, true
}

func (h *JobHandler) jobID(c *gin.Context) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			apperrors.Wrap(apperrors.ErrInvalidInput, "invalid job id"),
			h.logger,
		)
		return uuid.Nil, false
	}
	return jobID, true
}
