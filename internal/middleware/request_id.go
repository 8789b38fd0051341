package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/melodix/backend/internal/logger"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID so one request's log
// lines can be pulled out of the stream. A caller-supplied X-Request-ID
// is honoured, which lets the frontend correlate its own traces;
// otherwise a fresh UUID is minted. The ID is echoed on the response
// and stored in the gin context under "request_id".
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		withRequestID := logger.WithRequestID(requestID)
		method := c.Request.Method
		path := c.Request.URL.Path

		logger.Log.Debug("request started",
			withRequestID,
			logger.WithIP(c.ClientIP()),
			zap.String("method", method),
			zap.String("path", path),
		)

		c.Next()

		logger.Log.Debug("request completed",
			withRequestID,
			logger.WithStatus(c.Writer.Status()),
			zap.String("method", method),
			zap.String("path", path),
		)
	}
}
