package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Health handles GET /. It never touches the database.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"nodeVersion": runtime.Version(),
		"time":        time.Now().UTC().Format(time.RFC3339),
		"environment": string(h.mode),
	})
}
