package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/api"
	"github.com/bookease/bookease-backend/internal/auth"
	"github.com/bookease/bookease-backend/internal/availability"
	"github.com/bookease/bookease-backend/internal/booking"
	"github.com/bookease/bookease-backend/internal/config"
	"github.com/bookease/bookease-backend/internal/events"
	"github.com/bookease/bookease-backend/internal/hold"
	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/payment"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
	"github.com/bookease/bookease-backend/internal/slot"
	"github.com/bookease/bookease-backend/internal/user"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	Settings *config.Config
	DBPool   *pgxpool.Pool
	Logger   *zap.Logger
	Clock    clock.Clock
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	// Sweeper drops expired holds. Redis sets are swept as well, since a
	// busy service keeps extending the TTL of its set.
	Sweeper *hold.Sweeper

	closers []func() error
}

// NewContainer initializes all modules and returns the container.
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	s := cfg.Settings
	log := cfg.Logger
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	c := &Container{}

	// Init Components
	passwordHasher := auth.NewBcryptPasswordHasherWithCost(s.BcryptCost)
	jwtManager := auth.NewJWTManager(s.JWTSecret, s.JWTAccessTokenTTL)

	// User Module
	userRepo := user.NewPgxRepository(cfg.DBPool)
	userService := user.NewService(userRepo, passwordHasher, clk, log)

	// Service Catalogue Module
	offeringRepo := offering.NewPgxRepository(cfg.DBPool)
	offeringService := offering.NewService(offeringRepo)

	// Availability Module
	availabilityRepo := availability.NewPgxRepository(cfg.DBPool)
	availabilityService := availability.NewService(availabilityRepo, offeringService, s.Booking.DefaultTimezone)

	// Hold Store
	holdStore, err := c.newHoldStore(ctx, s, log)
	if err != nil {
		return nil, err
	}
	c.Sweeper = hold.NewSweeper(holdStore, clk, s.HoldSweepInterval, log)

	// Slot Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool)
	slotService := slot.NewService(offeringService, availabilityService, bookingRepo, holdStore, slot.Config{
		MinLeadTime:     s.Booking.MinLeadTime,
		MaxAdvanceDays:  s.Booking.MaxAdvanceDays,
		DefaultTimezone: s.Booking.DefaultTimezone,
	}, clk, log)

	// Hold Module
	holdService := hold.NewService(holdStore, slotService, clk, s.Booking.HoldDuration, log)

	// Domain Events
	publisher := events.NewPublisher(events.SplitBrokers(s.KafkaBrokers), s.KafkaTopic, log)
	c.closers = append(c.closers, publisher.Close)

	// Booking Module
	bookingService := booking.NewService(booking.Deps{
		Repo:      bookingRepo,
		Slots:     slotService,
		Holds:     holdService,
		Publisher: publisher,
		Policy: booking.Policy{
			CancelWindow:     s.Booking.CancelWindow,
			RescheduleWindow: s.Booking.RescheduleWindow,
		},
		Clock: clk,
		Log:   log,
	})

	// Payment Module
	paymentService := payment.NewService(payment.Deps{
		Repo:       payment.NewPgxRepository(cfg.DBPool),
		Bookings:   bookingService,
		Offerings:  offeringService,
		Processor:  newProcessor(s.Payment, log),
		Currency:   s.Payment.Currency,
		SuccessURL: s.Payment.SuccessURL,
		CancelURL:  s.Payment.CancelURL,
		Clock:      clk,
		Log:        log,
	})

	// Router
	c.Router = api.NewRouter(api.Config{
		IsProduction:        s.IsProduction,
		ProdOrigins:         s.ProdOrigins,
		RateLimitPerMinute:  s.RateLimitPerMinute,
		DefaultTimezone:     s.Booking.DefaultTimezone,
		Logger:              log,
		Clock:               clk,
		UserService:         userService,
		OfferingService:     offeringService,
		AvailabilityService: availabilityService,
		SlotService:         slotService,
		HoldService:         holdService,
		BookingService:      bookingService,
		PaymentService:      paymentService,
		JWTManager:          jwtManager,
	})
	c.JWTManager = jwtManager

	return c, nil
}

// newHoldStore picks Redis when REDIS_ADDR is set, otherwise an in-process
// store.
func (c *Container) newHoldStore(ctx context.Context, s *config.Config, log *zap.Logger) (hold.Store, error) {
	if s.RedisAddr == "" {
		log.Info("holds kept in process memory")
		return hold.NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     s.RedisAddr,
		Password: s.RedisPassword,
		DB:       s.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.closers = append(c.closers, rdb.Close)
	log.Info("holds kept in redis", zap.String("addr", s.RedisAddr))
	return hold.NewRedisStore(rdb, "bookease"), nil
}

func newProcessor(p config.PaymentConfig, log *zap.Logger) payment.Processor {
	if p.Provider == config.ProviderStripe {
		return payment.NewStripeProcessor(payment.StripeConfig{
			SecretKey:     p.StripeSecretKey,
			WebhookSecret: p.StripeWebhookKey,
		}, log)
	}
	return payment.NewPayPalProcessor(payment.PayPalConfig{
		ClientID:     p.PayPalClientID,
		ClientSecret: p.PayPalClientSecret,
		BaseURL:      p.PayPalAPIURL,
		WebhookID:    p.PayPalWebhookID,
	}, log)
}

// Close releases the connections the container opened, in reverse order.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
