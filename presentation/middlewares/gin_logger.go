package middlewares

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"go.uber.org/zap"
)

func GinLogger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", redactToken(query)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if userID, ok := GetUserIDFromContext(c); ok {
			fields = append(fields, zap.String("userID", userID))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("Request error", append(fields, zap.String("errors", c.Errors.String()))...)
		case len(c.Errors) > 0:
			logger.Warn("Request failed", append(fields, zap.String("errors", c.Errors.String()))...)
		default:
			logger.Info("Request", fields...)
		}
	}
}

// redactToken keeps websocket access tokens out of the request log.
func redactToken(query string) string {
	if query == "" {
		return query
	}
	values, err := url.ParseQuery(query)
	if err != nil || !values.Has(accessTokenParam) {
		return query
	}
	values.Set(accessTokenParam, "REDACTED")
	return values.Encode()
}
