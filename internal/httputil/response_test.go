package httputil_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/httputil"
)

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestHandleErrorGin(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"not found", apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{"conflict", apperrors.ErrConflict, http.StatusConflict, "conflict"},
		{
			"range not satisfiable",
			apperrors.Wrap(apperrors.ErrRangeNotSatisfiable, "bytes=100-"),
			http.StatusRequestedRangeNotSatisfiable,
			"range_not_satisfiable",
		},
		{"invalid input", apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", apperrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"unknown error", apperrors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(t)

			httputil.HandleErrorGin(c, tt.err, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp httputil.ErrorResponse
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCode, resp.Error)
		})
	}

	t.Run("nil error writes nothing", func(t *testing.T) {
		c, w := newTestContext(t)
		httputil.HandleErrorGin(c, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestHandleRangeNotSatisfiableGin(t *testing.T) {
	c, w := newTestContext(t)

	httputil.HandleRangeNotSatisfiableGin(c, 1024, nil)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
	assert.Equal(t, "bytes */1024", w.Header().Get("Content-Range"))
}

func TestHandleValidationErrorGin(t *testing.T) {
	c, w := newTestContext(t)

	httputil.HandleValidationErrorGin(c, apperrors.New("field is required"), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp httputil.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
	assert.Contains(t, resp.Message, "field is required")
}

func TestMakeJSONResponse(t *testing.T) {
	w := httptest.NewRecorder()

	httputil.MakeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
