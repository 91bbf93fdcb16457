// Package http provides HTTP handlers for user and admin operations.
package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/httputil"
	"github.com/SUNET/transcribe-backend/internal/identity"
	"github.com/SUNET/transcribe-backend/internal/user/http/dto"
	"github.com/SUNET/transcribe-backend/internal/user/usecase"
	customValidation "github.com/SUNET/transcribe-backend/internal/validation"
)

// UserHandler handles HTTP requests for user and admin operations.
type UserHandler struct {
	userUseCase usecase.UseCase
	logger      *slog.Logger
}

// NewUserHandler creates a new user handler with required dependencies.
func NewUserHandler(userUseCase usecase.UseCase, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
		logger:      logger,
	}
}

// MeHandler returns the calling user's account.
// GET /v1/me
func (h *UserHandler) MeHandler(c *gin.Context) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// StatsHandler returns usage statistics for the caller's realm.
// GET /v1/admin/stats?days=N - admin only.
func (h *UserHandler) StatsHandler(c *gin.Context) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	days := 0
	if daysStr := c.Query("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 0 {
			httputil.HandleValidationErrorGin(
				c,
				apperrors.Wrap(apperrors.ErrInvalidInput, "days must be a non-negative integer"),
				h.logger,
			)
			return
		}
		days = parsed
	}

	stats, err := h.userUseCase.Stats(c.Request.Context(), user.Realm, days)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToStatsResponse(stats))
}

// UpdateUserHandler updates an account's admin-managed fields.
// PUT /v1/admin/users/:username - admin only.
func (h *UserHandler) UpdateUserHandler(c *gin.Context) {
	username := c.Param("username")

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	user, err := h.userUseCase.UpdateUser(c.Request.Context(), username, dto.ToUpdateUserInput(req))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}
