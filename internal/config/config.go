package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

const (
	ProviderPayPal = "paypal"
	ProviderStripe = "stripe"
)

// BookingPolicy groups the knobs that shape slot generation and the booking lifecycle.
type BookingPolicy struct {
	DefaultTimezone  string
	MinLeadTime      time.Duration
	HoldDuration     time.Duration
	MaxAdvanceDays   int
	CancelWindow     time.Duration
	RescheduleWindow time.Duration
}

// PaymentConfig selects and configures the payment processor.
type PaymentConfig struct {
	Provider           string
	Currency           string
	SuccessURL         string
	CancelURL          string
	PayPalClientID     string
	PayPalClientSecret string
	PayPalAPIURL       string
	PayPalWebhookID    string
	StripeSecretKey    string
	StripeWebhookKey   string
}

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	LogLevel          string
	DBDSN             string
	DBAutoMigrate     bool
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	BcryptCost        int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers string
	KafkaTopic   string

	RateLimitPerMinute int
	HoldSweepInterval  time.Duration

	Booking BookingPolicy
	Payment PaymentConfig

	// Warnings collects non-fatal problems found while loading, for the caller to log.
	Warnings []string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("failed to load .env file: %v", err))
	}

	return load(cfg)
}

func load(cfg *Config) (*Config, error) {
	var err error

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}
	if cfg.DBAutoMigrate, err = getEnvAsBool("DB_AUTO_MIGRATE", false); err != nil {
		return nil, err
	}

	// JWT secret is required for signing tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// JWT access token TTL, parse as time.Duration (e.g. "15m", "1h").
	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}

	// Bcrypt cost for password hashing (default: 12)
	if cfg.BcryptCost, err = getEnvAsInt("BCRYPT_COST", 12); err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	// Empty REDIS_ADDR keeps holds in process memory.
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	// Empty KAFKA_BROKERS disables domain events.
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", "")
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "bookease.bookings")

	if cfg.RateLimitPerMinute, err = getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}
	if cfg.HoldSweepInterval, err = getEnvAsDuration("HOLD_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if err := loadBooking(&cfg.Booking); err != nil {
		return nil, err
	}
	if err := loadPayment(&cfg.Payment); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBooking(p *BookingPolicy) error {
	var err error

	p.DefaultTimezone = getEnv("BOOKING_DEFAULT_TIMEZONE", "America/New_York")
	if _, err := time.LoadLocation(p.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid BOOKING_DEFAULT_TIMEZONE: %w", err)
	}
	if p.MinLeadTime, err = getEnvAsDuration("BOOKING_MIN_LEAD_TIME", 2*time.Hour); err != nil {
		return err
	}
	if p.HoldDuration, err = getEnvAsDuration("BOOKING_HOLD_DURATION", 10*time.Minute); err != nil {
		return err
	}
	if p.HoldDuration <= 0 {
		return fmt.Errorf("BOOKING_HOLD_DURATION must be positive")
	}
	if p.MaxAdvanceDays, err = getEnvAsInt("BOOKING_MAX_ADVANCE_DAYS", 90); err != nil {
		return fmt.Errorf("invalid BOOKING_MAX_ADVANCE_DAYS: %w", err)
	}
	if p.MaxAdvanceDays <= 0 {
		return fmt.Errorf("BOOKING_MAX_ADVANCE_DAYS must be positive")
	}
	if p.CancelWindow, err = getEnvAsDuration("BOOKING_CANCEL_WINDOW", 2*time.Hour); err != nil {
		return err
	}
	if p.RescheduleWindow, err = getEnvAsDuration("BOOKING_RESCHEDULE_WINDOW", 24*time.Hour); err != nil {
		return err
	}
	return nil
}

func loadPayment(p *PaymentConfig) error {
	p.Provider = strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderPayPal))
	switch p.Provider {
	case ProviderPayPal, ProviderStripe:
	default:
		return fmt.Errorf("invalid PAYMENT_PROVIDER %q: must be %s or %s", p.Provider, ProviderPayPal, ProviderStripe)
	}

	p.Currency = strings.ToUpper(getEnv("PAYMENT_CURRENCY", "USD"))
	p.SuccessURL = getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success")
	p.CancelURL = getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel")

	p.PayPalClientID = getEnv("PAYPAL_CLIENT_ID", "")
	p.PayPalClientSecret = getEnv("PAYPAL_CLIENT_SECRET", "")
	p.PayPalAPIURL = getEnv("PAYPAL_API_URL", "https://api-m.sandbox.paypal.com")
	p.PayPalWebhookID = getEnv("PAYPAL_WEBHOOK_ID", "")

	p.StripeSecretKey = getEnv("STRIPE_SECRET_KEY", "")
	p.StripeWebhookKey = getEnv("STRIPE_WEBHOOK_SECRET", "")

	if p.Provider == ProviderStripe && p.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe")
	}
	return nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		// Return 0 and a wrapped error to provide context
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses values such as "90m" or "2h".
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return val, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("env %s value %q is not a valid boolean: %w", key, valStr, err)
	}
	return val, nil
}
