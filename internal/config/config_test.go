package config_test

import (
	"testing"
	"time"

	"cryoclean_backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "08:00", cfg.Slots.DayStart)
	assert.Equal(t, "16:00", cfg.Slots.DayEnd)
	assert.Equal(t, 120, cfg.Slots.WindowMinutes)
	assert.Equal(t, 3, cfg.Booking.MaxActiveAppointments)
	assert.Equal(t, 3, cfg.Booking.HorizonMonths)
	assert.Equal(t, 1000, cfg.Pricing.BasicPrice)
	assert.Equal(t, 1500, cfg.Pricing.DeluxePrice)

	// Danish fixed holidays recur every year.
	assert.True(t, cfg.Pricing.IsHoliday(time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cfg.Pricing.IsHoliday(time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, cfg.Pricing.IsHoliday(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BOOKING_MAX_ACTIVE", "5")
	t.Setenv("PRICE_BASIC", "1200")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")

	cfg := config.Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5, cfg.Booking.MaxActiveAppointments)
	assert.Equal(t, 1200, cfg.Pricing.BasicPrice)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
}

func TestHolidayFormats(t *testing.T) {
	pricing := config.NewPricingConfig(1000, 1500, "1.5", "2.0",
		[]string{"12-24", "2026-04-06", " 06-05 ", "garbage"})

	// Recurring entries match every year.
	assert.True(t, pricing.IsHoliday(time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)))
	assert.True(t, pricing.IsHoliday(time.Date(2027, 12, 24, 0, 0, 0, 0, time.UTC)))
	assert.True(t, pricing.IsHoliday(time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC)))

	// Specific dates match only that year.
	assert.True(t, pricing.IsHoliday(time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)))
	assert.False(t, pricing.IsHoliday(time.Date(2027, 4, 6, 0, 0, 0, 0, time.UTC)))

	// Unparsable entries are ignored.
	assert.False(t, pricing.IsHoliday(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestDSN(t *testing.T) {
	cfg := config.Load()
	assert.Contains(t, cfg.DSN(), "host=localhost")
	assert.Contains(t, cfg.DSN(), "dbname=cryoclean_db")
	assert.Contains(t, cfg.DSN(), "sslmode=disable")
}
