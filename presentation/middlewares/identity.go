package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/security"
	"go.uber.org/zap"
)

const (
	UserContextKey = "userID"
	UserIDHeader   = "X-User-ID"

	// browsers cannot set headers on a websocket handshake
	accessTokenParam = "access_token"
)

// IdentityMiddleware resolves the caller's user id from a bearer token issued
// by the identity provider. When allowHeader is set, an X-User-ID header is
// accepted as well; that mode is meant for local development only.
func IdentityMiddleware(verifier *security.TokenVerifier, allowHeader bool, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" && verifier != nil {
			userID, _, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected access token", zap.Error(err), zap.String("path", c.Request.URL.Path))
				abortUnauthenticated(c, "invalid or expired access token")
				return
			}
			c.Set(UserContextKey, userID)
			c.Next()
			return
		}

		if allowHeader {
			if userID := strings.TrimSpace(c.GetHeader(UserIDHeader)); userID != "" {
				c.Set(UserContextKey, userID)
				c.Next()
				return
			}
		}

		abortUnauthenticated(c, "authentication required")
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query(accessTokenParam)
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthenticated",
		"message": message,
	})
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return "", false
	}

	userID, ok := value.(string)
	return userID, ok && userID != ""
}

// RequireUserID is GetUserIDFromContext for handlers; it writes the 401 itself.
func RequireUserID(c *gin.Context) (string, bool) {
	userID, ok := GetUserIDFromContext(c)
	if !ok {
		abortUnauthenticated(c, "authentication required")
	}
	return userID, ok
}
