package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers checkout hold routes. Holds are owned by an
// anonymous session id, so no authentication is required.
func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	group := g.Group("/holds")
	{
		group.POST("", h.Place)
		group.GET("/:id", h.Get)
		group.DELETE("/:id", h.Release)
	}
}
