package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	flashCookie = "plantid_flash"
	flashSIDKey = "flashSessionID"
)

// RequestLogger logs each request's method, path, status, client and latency.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("request", fields...)
	}
}

// flashSession gives every browser a stable id to queue flash messages under.
func (h *Handler) flashSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(flashCookie)
		if err != nil || sid == "" {
			sid = uuid.NewString()
			c.SetSameSite(h.sameSite)
			c.SetCookie(flashCookie, sid, 0, "/", "", h.secureCookies, true)
		}
		c.Set(flashSIDKey, sid)
		c.Next()
	}
}
