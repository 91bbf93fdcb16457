// Package http provides HTTP handlers for media upload, streaming, download
// and transcript results.
package http

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/httputil"
	"github.com/SUNET/transcribe-backend/internal/identity"
	jobDTO "github.com/SUNET/transcribe-backend/internal/job/http/dto"
	"github.com/SUNET/transcribe-backend/internal/media/http/dto"
	"github.com/SUNET/transcribe-backend/internal/media/usecase"
	userDomain "github.com/SUNET/transcribe-backend/internal/user/domain"
	customValidation "github.com/SUNET/transcribe-backend/internal/validation"
	vaultService "github.com/SUNET/transcribe-backend/internal/vault/service"
)

// PassphraseHeader carries the encryption passphrase on requests that read
// encrypted media. It is never logged.
const PassphraseHeader = "X-Encryption-Passphrase"

// sourceHeader exposes whether a body came from the encrypted container or
// a plaintext fallback, so clients and audits can tell the two apart.
const sourceHeader = "X-Media-Source"

// MediaHandler handles HTTP requests for media operations.
type MediaHandler struct {
	mediaUseCase usecase.UseCase
	logger       *slog.Logger
}

// NewMediaHandler creates a new media handler with required dependencies.
func NewMediaHandler(mediaUseCase usecase.UseCase, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		mediaUseCase: mediaUseCase,
		logger:       logger,
	}
}

// UploadHandler accepts a multipart media upload and creates the job.
// POST /v1/jobs
func (h *MediaHandler) UploadHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}

	var req dto.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			apperrors.Wrap(apperrors.ErrInvalidInput, "missing file form part"),
			h.logger,
		)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer file.Close()

	job, err := h.mediaUseCase.Upload(
		c.Request.Context(),
		user,
		dto.ToUploadInput(req, fileHeader.Filename, fileHeader.Size, file),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, jobDTO.ToJobResponse(job))
}

// UploadResultHandler stores the transcript result for a job.
// PUT /v1/jobs/:id/result
func (h *MediaHandler) UploadResultHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req dto.UploadResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.mediaUseCase.UploadResult(c.Request.Context(), user, jobID, req.Content); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ResultHandler returns the transcript of a completed job as a file download.
// GET /v1/jobs/:id/result
func (h *MediaHandler) ResultHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	result, err := h.mediaUseCase.Result(c.Request.Context(), user, jobID, c.GetHeader(PassphraseHeader))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header(sourceHeader, result.Source)
	c.Data(http.StatusOK, result.ContentType, []byte(result.Content))
}

// StreamHandler serves media bytes, honoring a single-range Range header.
// GET /v1/jobs/:id/stream
func (h *MediaHandler) StreamHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	output, err := h.mediaUseCase.Stream(
		c.Request.Context(),
		user,
		jobID,
		c.GetHeader("Range"),
		c.GetHeader(PassphraseHeader),
	)
	if err != nil {
		h.handleStreamError(c, err)
		return
	}
	defer output.Body.Close()

	h.writeStream(c, output)
}

// DownloadHandler serves the complete media file as an attachment.
// GET /v1/jobs/:id/download
func (h *MediaHandler) DownloadHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	output, err := h.mediaUseCase.Download(c.Request.Context(), user, jobID, c.GetHeader(PassphraseHeader))
	if err != nil {
		h.handleStreamError(c, err)
		return
	}
	defer output.Body.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", output.Job.Filename))
	h.writeStream(c, output)
}

func (h *MediaHandler) writeStream(c *gin.Context, output *usecase.StreamOutput) {
	c.Header("Accept-Ranges", "bytes")
	c.Header(sourceHeader, output.Source)
	if output.ContentRange != "" {
		c.Header("Content-Range", output.ContentRange)
	}
	c.DataFromReader(output.Status, output.ContentLength, output.ContentType, output.Body, nil)
}

// handleStreamError gives unsatisfiable ranges their mandated Content-Range
// and defers everything else to the shared error mapping.
func (h *MediaHandler) handleStreamError(c *gin.Context, err error) {
	var rangeErr *vaultService.RangeNotSatisfiableError
	if stderrors.As(err, &rangeErr) {
		httputil.HandleRangeNotSatisfiableGin(c, rangeErr.AvailableSize, h.logger)
		return
	}
	httputil.HandleErrorGin(c, err, h.logger)
}

func (h *MediaHandler) caller(c *gin.Context) (*userDomain.User, bool) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return nil, false
	}
	return user, true
}

func (h *MediaHandler) jobID(c *gin.Context) (uuid.UUID, bool) {
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
