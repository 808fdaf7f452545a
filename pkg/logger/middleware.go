package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinLogger returns a middleware for logging HTTP requests
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Process request
		c.Next()

		duration := time.Since(startTime)
		statusCode := c.Writer.Status()

		Logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.RequestURI),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Int("status", statusCode),
			zap.Duration("duration", duration),
			zap.Int("body_size", c.Writer.Size()),
		)
	}
}
