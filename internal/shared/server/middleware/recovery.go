package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/shared/server/respond"
	"resumind-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. The stack goes to the
// log only; clients never see it.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				fields := map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      fmt.Sprint(rec),
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
				}
				if id, ok := c.Get("analysisId"); ok {
					fields["analysis_id"] = id
				}
				telemetry.Error("panic", fields)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
			}
		}()
		c.Next()
	}
}
