package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/apperr"
)

// Module is one route family mounted under a common prefix.
type Module struct {
	Name     string
	Prefix   string
	Register func(rg *gin.RouterGroup)
}

// notImplemented answers every request of a route family that this build
// does not serve, so the request still passes through logging and error
// translation.
func notImplemented(name string) func(rg *gin.RouterGroup) {
	return func(rg *gin.RouterGroup) {
		rg.Any("/*path", func(c *gin.Context) {
			fail(c, apperr.New(http.StatusNotImplemented, name+" routes are not available"))
		})
	}
}
