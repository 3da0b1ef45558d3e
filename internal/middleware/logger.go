package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"rentals/internal/pkg/logger"
	"rentals/internal/pkg/response"
)

// RequestLogger logs every request and recovers from panics.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Errorw("request panic",
					append(requestFields(c, start), "error", fmt.Sprintf("%v", recovered), "stack", string(debug.Stack()))...)
				response.Abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}

			fields := requestFields(c, start)
			for _, err := range c.Errors {
				fields = append(fields, "error", err.Error())
			}

			switch status := c.Writer.Status(); {
			case status >= http.StatusInternalServerError:
				log.Errorw("request failed", fields...)
			case status >= http.StatusBadRequest:
				log.Warnw("request rejected", fields...)
			default:
				log.Infow("request", fields...)
			}
		}()

		c.Next()
	}
}

func requestFields(c *gin.Context, start time.Time) []interface{} {
	return []interface{}{
		"status", c.Writer.Status(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"query", c.Request.URL.RawQuery,
		"client_ip", c.ClientIP(),
		"user_id", c.GetInt64("user_id"),
		"role", c.GetString("role"),
		"request_id", c.GetHeader("X-Request-ID"),
		"latency", time.Since(start),
	}
}
