package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit caps the number of request body bytes a handler may read.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
