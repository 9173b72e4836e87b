package config

import (
	"fmt"
	"strings"
	"time"

	"cryoclean_backend/pkg/utils"
)

// SlotGridConfig describes how a service day is divided into bookable windows.
// The crew serves one appointment per window, so the grid is global per day.
type SlotGridConfig struct {
	DayStart      string // "HH:MM", inclusive
	DayEnd        string // "HH:MM", exclusive
	WindowMinutes int
}

// BookingConfig holds the booking-policy knobs.
type BookingConfig struct {
	MaxActiveAppointments int // cap on pending/confirmed/in_progress appointments per user
	HorizonMonths         int // bookings allowed at most this far ahead
}

// PricingConfig holds service base prices (in points), surcharge multipliers
// and the holiday calendar.
type PricingConfig struct {
	BasicPrice        int
	DeluxePrice       int
	WeekendMultiplier string          // decimal string, e.g. "1.5"
	HolidayMultiplier string          // decimal string, e.g. "2.0"
	holidayRecurring  map[string]bool // "MM-DD"
	holidaySpecific   map[string]bool // "YYYY-MM-DD"
}

// IsHoliday reports whether the given calendar date is a configured holiday.
func (p PricingConfig) IsHoliday(date time.Time) bool {
	if p.holidaySpecific[date.Format("2006-01-02")] {
		return true
	}
	return p.holidayRecurring[date.Format("01-02")]
}

// Config is the full application configuration, loaded from the environment.
type Config struct {
	Port         string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	DBSchemaPath string

	JWTSecret   string
	CORSOrigins []string

	Slots   SlotGridConfig
	Booking BookingConfig
	Pricing PricingConfig
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		Port:         utils.Getenv("PORT", "8080"),
		DBHost:       utils.Getenv("DB_HOST", "localhost"),
		DBPort:       utils.Getenv("DB_PORT", "5432"),
		DBUser:       utils.Getenv("DB_USER", "cryoclean_user"),
		DBPassword:   utils.Getenv("DB_PASSWORD", "cryoclean_password"),
		DBName:       utils.Getenv("DB_NAME", "cryoclean_db"),
		DBSSLMode:    utils.Getenv("DB_SSLMODE", "disable"),
		DBSchemaPath: utils.Getenv("DB_SCHEMA_PATH", ""),

		JWTSecret: utils.Getenv("JWT_SECRET", "dev-only-insecure-secret"),

		Slots: SlotGridConfig{
			DayStart:      utils.Getenv("SLOT_DAY_START", "08:00"),
			DayEnd:        utils.Getenv("SLOT_DAY_END", "16:00"),
			WindowMinutes: utils.GetenvInt("SLOT_WINDOW_MINUTES", 120),
		},
		Booking: BookingConfig{
			MaxActiveAppointments: utils.GetenvInt("BOOKING_MAX_ACTIVE", 3),
			HorizonMonths:         utils.GetenvInt("BOOKING_HORIZON_MONTHS", 3),
		},
		Pricing: PricingConfig{
			BasicPrice:        utils.GetenvInt("PRICE_BASIC", 1000),
			DeluxePrice:       utils.GetenvInt("PRICE_DELUXE", 1500),
			WeekendMultiplier: utils.Getenv("PRICE_WEEKEND_MULTIPLIER", "1.5"),
			HolidayMultiplier: utils.Getenv("PRICE_HOLIDAY_MULTIPLIER", "2.0"),
		},
	}

	corsEnv := utils.Getenv("CORS_ALLOWED_ORIGINS", "")
	if corsEnv != "" {
		cfg.CORSOrigins = strings.Split(corsEnv, ",")
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	// Fixed Danish public holidays (recurring). Moveable feasts such as Easter
	// must be supplied per-year via HOLIDAYS as full dates.
	defaultHolidays := "01-01,06-05,12-24,12-25,12-26,12-31"
	cfg.Pricing.holidayRecurring, cfg.Pricing.holidaySpecific = parseHolidays(
		utils.Getenv("HOLIDAYS", defaultHolidays))

	return cfg
}

// NewPricingConfig builds a PricingConfig with an explicit holiday list.
// Entries are "MM-DD" (recurring yearly) or "YYYY-MM-DD" (specific date).
func NewPricingConfig(basic, deluxe int, weekendMult, holidayMult string, holidays []string) PricingConfig {
	p := PricingConfig{
		BasicPrice:        basic,
		DeluxePrice:       deluxe,
		WeekendMultiplier: weekendMult,
		HolidayMultiplier: holidayMult,
	}
	p.holidayRecurring, p.holidaySpecific = parseHolidays(strings.Join(holidays, ","))
	return p
}

func parseHolidays(raw string) (recurring, specific map[string]bool) {
	recurring = make(map[string]bool)
	specific = make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", entry); err == nil {
			specific[entry] = true
			continue
		}
		if _, err := time.Parse("01-02", entry); err == nil {
			recurring[entry] = true
		}
	}
	return recurring, specific
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
