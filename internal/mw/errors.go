package mw

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ErrorHandler translates the last error recorded on the context, or a
// panic raised further down the chain, into an ErrorBody response. It must
// wrap every route so that no handler formats errors on its own.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("%v", v)
				}
				c.Abort()
				writeError(c, log, fmt.Errorf("panic: %w", err))
			}
		}()

		c.Next()

		if last := c.Errors.Last(); last != nil {
			writeError(c, log, last.Err)
		}
	}
}

func writeError(c *gin.Context, log *zap.Logger, err error) {
	status := apperr.StatusOf(err)

	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", c.GetString(RequestIDKey)),
		zap.Error(err),
		zap.Stack("stack"),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request rejected", fields...)
	}

	if c.Writer.Written() {
		return
	}
	c.JSON(status, ErrorBody{
		Message:   errorMessage(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func errorMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return err.Error()
}
