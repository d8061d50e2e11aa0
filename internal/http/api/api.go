package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maosquran/miqat/internal/http/middleware"
	"github.com/maosquran/miqat/internal/model"
)

type APIError struct {
	Code    int
	Message string
}

// Controller is the gin group a Module mounts its endpoints on.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h gin.HandlerFunc)    { c.Group.GET(path, h) }
func (c *Controller) POST(path string, h gin.HandlerFunc)   { c.Group.POST(path, h) }
func (c *Controller) PUT(path string, h gin.HandlerFunc)    { c.Group.PUT(path, h) }
func (c *Controller) DELETE(path string, h gin.HandlerFunc) { c.Group.DELETE(path, h) }

type HandlerFuncWithDevice func(ctx *gin.Context, device *model.Device) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

// ResolveEndpointWithDevice adapts a device-scoped handler: the device
// is taken from context (set by the JWT middleware), errors become JSON.
func ResolveEndpointWithDevice(h HandlerFuncWithDevice) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		device, ok := middleware.GetCurrentDevice(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		result, apiErr := h(ctx, device)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}
