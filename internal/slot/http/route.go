package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the public slot listing.
func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	g.GET("/services/:id/slots", h.List)
}
