package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mutter0815/Announcer/pkg/logx"
	"github.com/Mutter0815/Announcer/pkg/metrics"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// requestID returns the id Observability attached to the request.
func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// Observability tags every request with an id, records request metrics and
// writes one access log line. Unmatched routes share a single path label.
func Observability() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(headerRequestID, rid)
		c.Set(ctxRequestID, rid)

		c.Next()

		lat := time.Since(start).Seconds()
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, route).Observe(lat)

		fields := []any{
			"rid", rid,
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", lat,
			"client_ip", c.ClientIP(),
		}
		if status >= 500 {
			logx.L().Warnw("http_access", fields...)
			return
		}
		logx.L().Infow("http_access", fields...)
	}
}
