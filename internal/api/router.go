package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/auth"
	"github.com/bookease/bookease-backend/internal/availability"
	availabilityHttp "github.com/bookease/bookease-backend/internal/availability/http"
	"github.com/bookease/bookease-backend/internal/booking"
	bookingHttp "github.com/bookease/bookease-backend/internal/booking/http"
	"github.com/bookease/bookease-backend/internal/hold"
	holdHttp "github.com/bookease/bookease-backend/internal/hold/http"
	"github.com/bookease/bookease-backend/internal/offering"
	offeringHttp "github.com/bookease/bookease-backend/internal/offering/http"
	"github.com/bookease/bookease-backend/internal/payment"
	paymentHttp "github.com/bookease/bookease-backend/internal/payment/http"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
	"github.com/bookease/bookease-backend/internal/pkg/logger"
	"github.com/bookease/bookease-backend/internal/pkg/request"
	"github.com/bookease/bookease-backend/internal/slot"
	slotHttp "github.com/bookease/bookease-backend/internal/slot/http"
	"github.com/bookease/bookease-backend/internal/user"
	userHttp "github.com/bookease/bookease-backend/internal/user/http"
)

// Config holds the services and settings the router is assembled from.
type Config struct {
	IsProduction       bool
	ProdOrigins        string
	RateLimitPerMinute int
	DefaultTimezone    string

	Logger *zap.Logger
	Clock  clock.Clock

	UserService         user.Service
	OfferingService     offering.Service
	AvailabilityService availability.Service
	SlotService         slot.Service
	HoldService         hold.Service
	BookingService      booking.Service
	PaymentService      payment.Service
	JWTManager          *auth.JWTManager
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	request.RegisterValidators()

	r := gin.New()

	// Global Middleware:
	// - Logger: one structured zap line per request.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	// - RateLimit: per client IP token bucket.
	r.Use(logger.GinMiddleware(cfg.Logger), gin.Recovery(), RateLimit(cfg.RateLimitPerMinute, cfg.Logger))

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:3000", // Web client
		"http://localhost:8081", // Swagger
	}
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		corsConfig.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// optionalAuth: identifies logged-in callers and lets guests through.
	optionalAuth := auth.OptionalAuth(cfg.JWTManager)
	// sysAdminMiddleware: Further checks if the authenticated user has System Admin privileges.
	sysAdminMiddleware := RequireSystemAdmin(cfg.UserService)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	userHandler := userHttp.NewHandler(cfg.UserService, cfg.JWTManager)
	offeringHandler := offeringHttp.NewHandler(cfg.OfferingService)
	availabilityHandler := availabilityHttp.NewHandler(cfg.AvailabilityService)
	slotHandler := slotHttp.NewHandler(cfg.SlotService, cfg.Clock, cfg.DefaultTimezone)
	holdHandler := holdHttp.NewHandler(cfg.HoldService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService, cfg.UserService, cfg.DefaultTimezone)
	paymentHandler := paymentHttp.NewHandler(cfg.PaymentService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware, sysAdminMiddleware)
		offeringHttp.RegisterRoutes(v1, offeringHandler, authMiddleware, sysAdminMiddleware)
		availabilityHttp.RegisterRoutes(v1, availabilityHandler, authMiddleware, sysAdminMiddleware)
		slotHttp.RegisterRoutes(v1, slotHandler)
		holdHttp.RegisterRoutes(v1, holdHandler)
		bookingHttp.RegisterRoutes(v1, bookingHandler, optionalAuth, authMiddleware, sysAdminMiddleware)
		paymentHttp.RegisterRoutes(v1, paymentHandler, authMiddleware, sysAdminMiddleware)
	}

	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
