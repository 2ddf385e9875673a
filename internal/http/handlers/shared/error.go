package shared

import (
	"errors"

	"github.com/sportfabrik/bonuscard/internal/http/response"
	"github.com/sportfabrik/bonuscard/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog returns a sugared logger scoped to the current request.
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok && s != "" {
			return logger.SW("request_id", s)
		}
	}
	return logger.S()
}

// ErrorMapping pairs a service sentinel with the code and message the
// handler responds with.
type ErrorMapping struct {
	Target  error
	Code    int
	Message string
}

// RespondMappedError walks the mapping table for a matching sentinel
// and falls back to an internal error. Unmapped errors are logged with
// the request id, mapped ones only at debug level.
func RespondMappedError(c *gin.Context, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Target) {
			msg := m.Message
			if msg == "" {
				msg = m.Target.Error()
			}
			RequestLog(c).Debugw("handler_error", "code", m.Code, "error", err)
			response.Error(c, m.Code, msg)
			return
		}
	}
	RequestLog(c).Errorw("handler_error", "error", err)
	response.Error(c, response.CodeInternal, "internal error")
}

// RespondError responds with a coded message and logs the cause.
func RespondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		RequestLog(c).Errorw("handler_error", "code", code, "msg", msg, "error", err)
	}
	response.Error(c, code, msg)
}
