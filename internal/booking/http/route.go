package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers booking routes. Creation, lookup and the
// cancel/reschedule actions accept guests; listing requires a login.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, optionalAuth, authMiddleware, adminMiddleware gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Guest-friendly Routes ===
	guest := group.Group("", optionalAuth)
	{
		guest.POST("", h.Create)
		guest.GET("/:id", h.Get)
		guest.GET("/:id/policy", h.Policy)
		guest.POST("/:id/cancel", h.Cancel)
		guest.POST("/:id/reschedule", h.Reschedule)
	}

	// === Authenticated Routes ===
	group.GET("", authMiddleware, h.List)
	g.GET("/me/bookings", authMiddleware, h.Mine)

	// === Admin Routes ===
	group.GET("/:id/audit", authMiddleware, adminMiddleware, h.Audit)
}
