package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-Id"

	requestIDKey = "request_id"
)

// RequestID generates or forwards X-Request-Id, stores it in the gin context
// and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// requestID returns the id set by RequestID.
func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger writes one structured access log entry per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		dur := time.Since(start)

		entry := log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(dur) / float64(time.Millisecond),
			"bytes":       c.Writer.Size(),
			"ip":          c.ClientIP(),
			"request_id":  requestID(c),
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Warn("request completed with errors")
		} else {
			entry.Info("request completed")
		}
	}
}

// RateLimit rejects requests above the limiter's rate with 429. A nil
// limiter lets everything through.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limiter.Allow() {
			c.Next()
			return
		}
		retry := time.Second
		if l := limiter.Limit(); l > 0 && l != rate.Inf {
			retry = time.Duration(float64(time.Second) / float64(l))
		}
		c.Header("Retry-After", strconv.Itoa(int(max(1, retry.Round(time.Second)/time.Second))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "rate_limited",
			"request_id": requestID(c),
		})
	}
}
