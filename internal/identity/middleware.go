package identity

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/httputil"
	userUseCase "github.com/SUNET/transcribe-backend/internal/user/usecase"
)

// HeaderConfig names the trusted headers set by the front proxy after
// OIDC authentication. The API never validates credentials itself.
type HeaderConfig struct {
	UserHeader     string
	RealmHeader    string
	UsernameHeader string
}

// Middleware resolves the calling user from trusted proxy headers.
//
// The middleware:
//  1. Reads the external user ID, realm and username headers
//  2. Resolves (or provisions) the account via the user use case
//  3. Stores the user in the request context for downstream handlers
//
// Error handling:
//   - Missing user or realm header → 401 Unauthorized
//   - Inactive account → 403 Forbidden
//   - Other errors → 500 Internal Server Error
func Middleware(
	users userUseCase.UseCase,
	cfg HeaderConfig,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		externalID := strings.TrimSpace(c.GetHeader(cfg.UserHeader))
		realm := strings.TrimSpace(c.GetHeader(cfg.RealmHeader))
		username := strings.TrimSpace(c.GetHeader(cfg.UsernameHeader))

		if externalID == "" || realm == "" {
			logger.Debug("identity resolution failed: missing identity headers",
				slog.String("path", c.Request.URL.Path))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		user, err := users.GetOrCreate(c.Request.Context(), userUseCase.Identity{
			ExternalID: externalID,
			Realm:      realm,
			Username:   username,
		})
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// AdminOnly rejects requests from non-admin users.
// MUST be used after Middleware.
func AdminOnly(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c.Request.Context())
		if !ok || user == nil {
			logger.Error("admin check: no resolved user in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !user.Admin {
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}
