package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	HeaderSession       = "X-Session-ID"
	HeaderRequestID     = "X-Request-ID"
	contextSessionKey   = "payment_session"
	contextRequestIDKey = "request_id"

	// Single-user deployments never send a session header; they all share
	// one in-process session.
	defaultSessionID = "default"
)

// RequestID propagates or generates a per-request correlation id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rid == "" {
			rid = ulid.Make().String()
		}
		c.Set(contextRequestIDKey, rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetString(contextRequestIDKey)),
		)
	}
}

// SessionContext resolves the logical payment session for the request.
func SessionContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := strings.TrimSpace(c.GetHeader(HeaderSession))
		if sid == "" {
			sid = defaultSessionID
		}
		c.Set(contextSessionKey, sid)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	if sid := c.GetString(contextSessionKey); sid != "" {
		return sid
	}
	return defaultSessionID
}
