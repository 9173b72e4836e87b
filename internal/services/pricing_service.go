package services

import (
	"errors"
	"fmt"
	"time"

	"cryoclean_backend/internal/config"
	"cryoclean_backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidServiceType = errors.New("invalid service type")
)

// Surcharge kinds, in order of precedence: a holiday surcharge overrides the
// weekend surcharge (they never stack, even for holidays on a Saturday).
const (
	SurchargeNone    = "none"
	SurchargeWeekend = "weekend"
	SurchargeHoliday = "holiday"
)

// PriceBreakdown describes how an appointment price was computed.
type PriceBreakdown struct {
	BasePrice       int    `json:"basePrice"`
	Surcharge       string `json:"surcharge"`
	SurchargeAmount int    `json:"surchargeAmount"`
	TotalPrice      int    `json:"totalPrice"`
}

// PricingEngine computes appointment prices in points. Pure and
// deterministic: no I/O, no clock access, only the given date.
type PricingEngine interface {
	Quote(serviceType string, date time.Time) (*PriceBreakdown, error)
}

type pricingEngine struct {
	cfg        config.PricingConfig
	weekendMul decimal.Decimal
	holidayMul decimal.Decimal
}

// NewPricingEngine creates a PricingEngine from pricing configuration.
func NewPricingEngine(cfg config.PricingConfig) (PricingEngine, error) {
	weekendMul, err := decimal.NewFromString(cfg.WeekendMultiplier)
	if err != nil {
		return nil, fmt.Errorf("invalid weekend multiplier %q: %w", cfg.WeekendMultiplier, err)
	}
	holidayMul, err := decimal.NewFromString(cfg.HolidayMultiplier)
	if err != nil {
		return nil, fmt.Errorf("invalid holiday multiplier %q: %w", cfg.HolidayMultiplier, err)
	}
	return &pricingEngine{cfg: cfg, weekendMul: weekendMul, holidayMul: holidayMul}, nil
}

func (e *pricingEngine) Quote(serviceType string, date time.Time) (*PriceBreakdown, error) {
	var base int
	switch serviceType {
	case models.ServiceTypeBasic:
		base = e.cfg.BasicPrice
	case models.ServiceTypeDeluxe:
		base = e.cfg.DeluxePrice
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidServiceType, serviceType)
	}

	surcharge := SurchargeNone
	multiplier := decimal.NewFromInt(1)
	switch {
	case e.cfg.IsHoliday(date):
		surcharge = SurchargeHoliday
		multiplier = e.holidayMul
	case date.Weekday() == time.Saturday || date.Weekday() == time.Sunday:
		surcharge = SurchargeWeekend
		multiplier = e.weekendMul
	}

	// Round(0) rounds half away from zero, i.e. round-half-up for prices.
	total := int(decimal.NewFromInt(int64(base)).Mul(multiplier).Round(0).IntPart())

	return &PriceBreakdown{
		BasePrice:       base,
		Surcharge:       surcharge,
		SurchargeAmount: total - base,
		TotalPrice:      total,
	}, nil
}
