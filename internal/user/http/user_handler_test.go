package http

import (
	"bytes"
	"context"
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
	"github.com/SUNET/transcribe-backend/internal/user/domain"
	"github.com/SUNET/transcribe-backend/internal/user/usecase"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeUserUseCase struct {
	user  *domain.User
	stats *domain.Stats
	err   error

	gotUsername string
	gotInput    usecase.UpdateUserInput
	gotDays     int
}

func (f *fakeUserUseCase) GetOrCreate(ctx context.Context, identity usecase.Identity) (*domain.User, error) {
	return f.user, f.err
}

func (f *fakeUserUseCase) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return f.user, f.err
}

func (f *fakeUserUseCase) UpdateUser(ctx context.Context, username string, input usecase.UpdateUserInput) (*domain.User, error) {
	f.gotUsername = username
	f.gotInput = input
	return f.user, f.err
}

func (f *fakeUserUseCase) AddTranscribedSeconds(ctx context.Context, id uuid.UUID, seconds int64) error {
	return f.err
}

func (f *fakeUserUseCase) Stats(ctx context.Context, realm string, days int) (*domain.Stats, error) {
	f.gotDays = days
	return f.stats, f.err
}

func newHandlerWithUser(fake *fakeUserUseCase, user *domain.User) (*UserHandler, *gin.Engine) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewUserHandler(fake, logger)

	router := gin.New()
	if user != nil {
		router.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(identity.WithUser(c.Request.Context(), user))
		})
	}
	router.GET("/v1/me", handler.MeHandler)
	router.GET("/v1/admin/stats", handler.StatsHandler)
	router.PUT("/v1/admin/users/:username", handler.UpdateUserHandler)

	return handler, router
}

func TestMeHandler_ReturnsUser(t *testing.T) {
	user := &domain.User{
		ID:                uuid.Must(uuid.NewV7()),
		Username:          "alice",
		Realm:             "example.org",
		Active:            true,
		EncryptionEnabled: true,
	}
	_, router := newHandlerWithUser(&fakeUserUseCase{}, user)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "alice", response["username"])
	assert.Equal(t, true, response["encryption_enabled"])
	// Key material must never leak through the API
	assert.NotContains(t, response, "private_key_pem")
	assert.NotContains(t, response, "public_key_pem")
}

func TestMeHandler_NoUserReturns401(t *testing.T) {
	_, router := newHandlerWithUser(&fakeUserUseCase{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatsHandler_ReturnsStats(t *testing.T) {
	admin := &domain.User{ID: uuid.Must(uuid.NewV7()), Realm: "example.org", Admin: true, Active: true}
	fake := &fakeUserUseCase{stats: &domain.Stats{
		TotalUsers:                2,
		TotalTranscribedSeconds:   300,
		TranscribedSecondsPerUser: map[string]int64{"alice": 200, "bob": 100},
	}}
	_, router := newHandlerWithUser(fake, admin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats?days=7", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, fake.gotDays)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(2), response["total_users"])
	assert.Equal(t, float64(300), response["total_transcribed_seconds"])
}

func TestStatsHandler_InvalidDays(t *testing.T) {
	admin := &domain.User{ID: uuid.Must(uuid.NewV7()), Realm: "example.org", Admin: true, Active: true}
	_, router := newHandlerWithUser(&fakeUserUseCase{}, admin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats?days=nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpdateUserHandler_AppliesUpdate(t *testing.T) {
	admin := &domain.User{ID: uuid.Must(uuid.NewV7()), Admin: true, Active: true}
	updated := &domain.User{ID: uuid.Must(uuid.NewV7()), Username: "bob", Active: false}
	fake := &fakeUserUseCase{user: updated}
	_, router := newHandlerWithUser(fake, admin)

	body, err := json.Marshal(map[string]interface{}{
		"active":                  false,
		"add_transcribed_seconds": 60,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/users/bob", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", fake.gotUsername)
	require.NotNil(t, fake.gotInput.Active)
	assert.False(t, *fake.gotInput.Active)
	assert.Equal(t, int64(60), fake.gotInput.AddTranscribedSeconds)
}

func TestUpdateUserHandler_RejectsNegativeSeconds(t *testing.T) {
	admin := &domain.User{ID: uuid.Must(uuid.NewV7()), Admin: true, Active: true}
	_, router := newHandlerWithUser(&fakeUserUseCase{}, admin)

	body := []byte(`{"add_transcribed_seconds": -5}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/users/bob", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpdateUserHandler_UnknownUser(t *testing.T) {
	admin := &domain.User{ID: uuid.Must(uuid.NewV7()), Admin: true, Active: true}
	fake := &fakeUserUseCase{err: domain.ErrUserNotFound}
	_, router := newHandlerWithUser(fake, admin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/users/ghost", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
