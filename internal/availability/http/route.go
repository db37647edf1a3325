package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers availability rule and blackout routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	// === Public Routes ===
	g.GET("/services/:id/availability-rules", h.ListRules)

	// === Admin Routes ===
	admin := g.Group("", authMiddleware, adminMiddleware)
	{
		admin.POST("/services/:id/availability-rules", h.CreateRule)
		admin.GET("/availability-rules/:id", h.GetRule)
		admin.PATCH("/availability-rules/:id", h.UpdateRule)
		admin.DELETE("/availability-rules/:id", h.DeleteRule)

		admin.GET("/blackouts", h.ListBlackouts)
		admin.POST("/blackouts", h.CreateBlackout)
		admin.GET("/blackouts/:id", h.GetBlackout)
		admin.PATCH("/blackouts/:id", h.UpdateBlackout)
		admin.DELETE("/blackouts/:id", h.DeleteBlackout)
	}
}
