package middleware

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Status  string            `json:"status"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Details []ValidationError `json:"details,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("trace_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last().Err
		status := http.StatusInternalServerError
		message := "internal server error"

		var appErr *errors.AppError
		if stderrors.As(lastErr, &appErr) {
			status = appErr.StatusCode()
			if status != http.StatusInternalServerError {
				message = appErr.Message
			}
		}

		c.JSON(status, ErrorResponse{
			Status:  "error",
			Code:    status,
			Message: message,
			Details: validationDetails(lastErr),
			TraceID: traceID,
		})
	}
}

// abort stops the chain with an error envelope. Used by middleware that runs
// before ErrorHandler has anything to render.
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:  "error",
		Code:    status,
		Message: message,
		TraceID: c.GetString(ContextRequestID),
	})
}
