package apiutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceID returns the request's trace ID, generating and echoing one when the
// client did not supply an X-Trace-ID header.
func TraceID(c *gin.Context) string {
	traceID := c.GetHeader("X-Trace-ID")
	if traceID == "" {
		traceID = uuid.New().String()
		c.Header("X-Trace-ID", traceID)
	}
	return traceID
}

// Error writes the standard error envelope {error, message, trace_id}.
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error":    code,
		"message":  message,
		"trace_id": TraceID(c),
	})
}

// BindError writes a 400 envelope for a request binding failure.
func BindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":    "INVALID_REQUEST",
		"message":  "Invalid request format",
		"details":  err.Error(),
		"trace_id": TraceID(c),
	})
}
