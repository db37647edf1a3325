package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers checkout, capture and webhook routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	// === Public Routes ===
	g.POST("/bookings/:id/checkout", h.StartCheckout)
	g.POST("/payments/capture", h.Capture)
	g.POST("/payments/webhooks/:provider", h.Webhook)

	// === Admin Routes ===
	g.GET("/bookings/:id/payments", authMiddleware, adminMiddleware, h.ListForBooking)
}
