// Package http provides HTTP handlers for notification operations.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/httputil"
	"github.com/SUNET/transcribe-backend/internal/identity"
	"github.com/SUNET/transcribe-backend/internal/notification/http/dto"
	"github.com/SUNET/transcribe-backend/internal/notification/usecase"
	userDomain "github.com/SUNET/transcribe-backend/internal/user/domain"
)

// NotificationHandler handles HTTP requests for notification operations.
type NotificationHandler struct {
	notificationUseCase usecase.UseCase
	logger              *slog.Logger
}

// NewNotificationHandler creates a new notification handler with required dependencies.
func NewNotificationHandler(notificationUseCase usecase.UseCase, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
		logger:              logger,
	}
}

// ListHandler returns the caller's notifications, newest first.
// GET /v1/notifications
func (h *NotificationHandler) ListHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}

	notifications, err := h.notificationUseCase.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToNotificationListResponse(notifications))
}

// MarkReadHandler flags a notification as read.
// PUT /v1/notifications/:id/read
func (h *NotificationHandler) MarkReadHandler(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			apperrors.Wrap(apperrors.ErrInvalidInput, "invalid notification id"),
			h.logger,
		)
		return
	}

	if err := h.notificationUseCase.MarkRead(c.Request.Context(), notificationID, user.ID, user.Admin); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) caller(c *gin.Context) (*userDomain.User, bool) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return nil, false
	}
	return user, true
}
