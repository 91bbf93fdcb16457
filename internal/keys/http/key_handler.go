// Package http provides HTTP handlers for encryption key management.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/httputil"
	"github.com/SUNET/transcribe-backend/internal/identity"
	"github.com/SUNET/transcribe-backend/internal/keys/http/dto"
	"github.com/SUNET/transcribe-backend/internal/keys/usecase"
)

// KeyHandler handles HTTP requests for encryption key management.
type KeyHandler struct {
	keyUseCase usecase.UseCase
	logger     *slog.Logger
}

// NewKeyHandler creates a new key handler with required dependencies.
func NewKeyHandler(keyUseCase usecase.UseCase, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{
		keyUseCase: keyUseCase,
		logger:     logger,
	}
}

// StatusHandler reports whether encryption is enabled for the caller.
// GET /v1/users/me/encryption
func (h *KeyHandler) StatusHandler(c *gin.Context) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	enabled, err := h.keyUseCase.Status(c.Request.Context(), user.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{Enabled: enabled})
}

// EnableHandler generates a keypair for the caller.
// POST /v1/users/me/encryption
func (h *KeyHandler) EnableHandler(c *gin.Context) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	req, ok := h.bindPassphrase(c)
	if !ok {
		return
	}

	if err := h.keyUseCase.Enable(c.Request.Context(), user.ID, req.Passphrase); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.StatusResponse{Enabled: true})
}

// ValidateHandler checks the caller's passphrase.
// POST /v1/users/me/encryption/validate
func (h *KeyHandler) ValidateHandler(c *gin.Context) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	req, ok := h.bindPassphrase(c)
	if !ok {
		return
	}

	valid, err := h.keyUseCase.Validate(c.Request.Context(), user.ID, req.Passphrase)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ValidateResponse{Valid: valid})
}

// ResetHandler rotates the caller's keypair under a new passphrase.
// Existing encrypted containers are purged.
// POST /v1/users/me/encryption/reset
func (h *KeyHandler) ResetHandler(c *gin.Context) {
	user, ok := identity.GetUser(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	req, ok := h.bindPassphrase(c)
	if !ok {
		return
	}

	if err := h.keyUseCase.Reset(c.Request.Context(), user.ID, req.Passphrase); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{Enabled: true})
}

// bindPassphrase parses and validates the passphrase request body.
func (h *KeyHandler) bindPassphrase(c *gin.Context) (dto.PassphraseRequest, bool) {
	var req dto.PassphraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return req, false
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return req, false
	}
	return req, true
}
