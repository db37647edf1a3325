package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/bookease")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := load(&Config{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.IsProduction)
	assert.False(t, cfg.DBAutoMigrate)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "bookease.bookings", cfg.KafkaTopic)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, time.Minute, cfg.HoldSweepInterval)

	assert.Equal(t, BookingPolicy{
		DefaultTimezone:  "America/New_York",
		MinLeadTime:      2 * time.Hour,
		HoldDuration:     10 * time.Minute,
		MaxAdvanceDays:   90,
		CancelWindow:     2 * time.Hour,
		RescheduleWindow: 24 * time.Hour,
	}, cfg.Booking)

	assert.Equal(t, ProviderPayPal, cfg.Payment.Provider)
	assert.Equal(t, "USD", cfg.Payment.Currency)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("BOOKING_DEFAULT_TIMEZONE", "Europe/Berlin")
	t.Setenv("BOOKING_MIN_LEAD_TIME", "90m")
	t.Setenv("BOOKING_MAX_ADVANCE_DAYS", "30")
	t.Setenv("PAYMENT_PROVIDER", "Stripe")
	t.Setenv("PAYMENT_CURRENCY", "eur")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg, err := load(&Config{})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction)
	assert.True(t, cfg.DBAutoMigrate)
	assert.Equal(t, "Europe/Berlin", cfg.Booking.DefaultTimezone)
	assert.Equal(t, 90*time.Minute, cfg.Booking.MinLeadTime)
	assert.Equal(t, 30, cfg.Booking.MaxAdvanceDays)
	assert.Equal(t, ProviderStripe, cfg.Payment.Provider)
	assert.Equal(t, "EUR", cfg.Payment.Currency)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing dsn", map[string]string{"DB_DSN": ""}},
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"bad duration", map[string]string{"BOOKING_MIN_LEAD_TIME": "two hours"}},
		{"negative duration", map[string]string{"BOOKING_CANCEL_WINDOW": "-1h"}},
		{"zero hold duration", map[string]string{"BOOKING_HOLD_DURATION": "0s"}},
		{"bad int", map[string]string{"BOOKING_MAX_ADVANCE_DAYS": "many"}},
		{"zero horizon", map[string]string{"BOOKING_MAX_ADVANCE_DAYS": "0"}},
		{"unknown timezone", map[string]string{"BOOKING_DEFAULT_TIMEZONE": "Mars/Olympus"}},
		{"unknown provider", map[string]string{"PAYMENT_PROVIDER": "cash"}},
		{"stripe without key", map[string]string{"PAYMENT_PROVIDER": "stripe"}},
		{"bad bool", map[string]string{"DB_AUTO_MIGRATE": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := load(&Config{})
			assert.Error(t, err)
		})
	}
}
