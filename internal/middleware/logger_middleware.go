package middleware

import (
	"time"

	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger - Gin middleware для логирования запросов.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.Request.URL.Path
		if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
			path = path + "?" + rawQuery
		}

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"status_code", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if userID := c.GetString(string(ContextUserIDKey)); userID != "" {
			fields = append(fields, "user_id", userID)
		}

		if status >= 500 {
			log.Errorw("Request handled", fields...)
			return
		}
		log.Infow("Request handled", fields...)
	}
}

// RequestMetrics записывает метрики запроса по шаблону маршрута.
func RequestMetrics(m metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
