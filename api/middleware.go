package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/medbooking/internal/auth"
	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger logs one line per request and propagates a request id.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		if err := c.Errors.Last(); err != nil {
			event = event.Err(err.Err)
		}
		if actor, ok := auth.ActorFrom(c); ok {
			event = event.Str("user_id", actor.ID.String()).Str("role", string(actor.Role))
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// caller returns the authenticated actor or writes 401.
func caller(c *gin.Context) (domain.Actor, bool) {
	a, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Code: "unauthenticated"})
		return domain.Actor{}, false
	}
	return a, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, domain.Errorf(domain.ErrInvalidInput, "%s must be a uuid", name))
		return uuid.Nil, false
	}
	return id, true
}
