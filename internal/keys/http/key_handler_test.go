package http

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUNET/transcribe-backend/internal/identity"
	"github.com/SUNET/transcribe-backend/internal/keys/domain"
	userDomain "github.com/SUNET/transcribe-backend/internal/user/domain"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeKeyUseCase struct {
	enabled bool
	valid   bool
	err     error

	gotUserID     uuid.UUID
	gotPassphrase string
}

func (f *fakeKeyUseCase) Enable(ctx context.Context, userID uuid.UUID, passphrase string) error {
	f.gotUserID = userID
	f.gotPassphrase = passphrase
	return f.err
}

func (f *fakeKeyUseCase) Status(ctx context.Context, userID uuid.UUID) (bool, error) {
	f.gotUserID = userID
	return f.enabled, f.err
}

func (f *fakeKeyUseCase) Validate(ctx context.Context, userID uuid.UUID, passphrase string) (bool, error) {
	f.gotUserID = userID
	f.gotPassphrase = passphrase
	return f.valid, f.err
}

func (f *fakeKeyUseCase) Reset(ctx context.Context, userID uuid.UUID, passphrase string) error {
	f.gotUserID = userID
	f.gotPassphrase = passphrase
	return f.err
}

func (f *fakeKeyUseCase) PublicKey(ctx context.Context, userID uuid.UUID) (*rsa.PublicKey, error) {
	return nil, f.err
}

func (f *fakeKeyUseCase) PrivateKey(ctx context.Context, userID uuid.UUID, passphrase string) (*rsa.PrivateKey, error) {
	return nil, f.err
}

func newRouter(fake *fakeKeyUseCase, user *userDomain.User) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewKeyHandler(fake, logger)

	router := gin.New()
	if user != nil {
		router.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(identity.WithUser(c.Request.Context(), user))
		})
	}
	router.GET("/v1/users/me/encryption", handler.StatusHandler)
	router.POST("/v1/users/me/encryption", handler.EnableHandler)
	router.POST("/v1/users/me/encryption/validate", handler.ValidateHandler)
	router.POST("/v1/users/me/encryption/reset", handler.ResetHandler)
	return router
}

func postJSON(router *gin.Engine, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func testUser() *userDomain.User {
	return &userDomain.User{ID: uuid.Must(uuid.NewV7()), Username: "alice", Active: true}
}

func TestStatusHandler(t *testing.T) {
	user := testUser()
	fake := &fakeKeyUseCase{enabled: true}
	router := newRouter(fake, user)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/me/encryption", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID, fake.gotUserID)

	var response map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response["enabled"])
}

func TestEnableHandler(t *testing.T) {
	user := testUser()
	fake := &fakeKeyUseCase{}
	router := newRouter(fake, user)

	w := postJSON(router, "/v1/users/me/encryption", map[string]interface{}{
		"passphrase": "correct horse battery",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "correct horse battery", fake.gotPassphrase)
}

func TestEnableHandler_WeakPassphrase(t *testing.T) {
	router := newRouter(&fakeKeyUseCase{}, testUser())

	w := postJSON(router, "/v1/users/me/encryption", map[string]interface{}{
		"passphrase": "short",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEnableHandler_AlreadyEnabled(t *testing.T) {
	fake := &fakeKeyUseCase{err: domain.ErrEncryptionAlreadyEnabled}
	router := newRouter(fake, testUser())

	w := postJSON(router, "/v1/users/me/encryption", map[string]interface{}{
		"passphrase": "correct horse battery",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestValidateHandler(t *testing.T) {
	fake := &fakeKeyUseCase{valid: false}
	router := newRouter(fake, testUser())

	w := postJSON(router, "/v1/users/me/encryption/validate", map[string]interface{}{
		"passphrase": "not the passphrase",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response["valid"])
}

func TestValidateHandler_NotEnabled(t *testing.T) {
	fake := &fakeKeyUseCase{err: domain.ErrEncryptionNotEnabled}
	router := newRouter(fake, testUser())

	w := postJSON(router, "/v1/users/me/encryption/validate", map[string]interface{}{
		"passphrase": "whatever passphrase",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetHandler(t *testing.T) {
	fake := &fakeKeyUseCase{}
	router := newRouter(fake, testUser())

	w := postJSON(router, "/v1/users/me/encryption/reset", map[string]interface{}{
		"passphrase": "brand new passphrase",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "brand new passphrase", fake.gotPassphrase)
}

func TestHandlers_NoUserReturns401(t *testing.T) {
	router := newRouter(&fakeKeyUseCase{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/me/encryption", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(router, "/v1/users/me/encryption", map[string]interface{}{
		"passphrase": "correct horse battery",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
