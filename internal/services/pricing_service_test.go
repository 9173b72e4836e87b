package services_test

import (
	"errors"
	"testing"
	"time"

	"cryoclean_backend/internal/config"
	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPricingEngine(t *testing.T, holidays []string) services.PricingEngine {
	t.Helper()
	engine, err := services.NewPricingEngine(config.NewPricingConfig(1000, 1500, "1.5", "2.0", holidays))
	require.NoError(t, err)
	return engine
}

func TestQuoteWeekday(t *testing.T) {
	engine := newTestPricingEngine(t, nil)

	// 2026-03-10 is a Tuesday.
	breakdown, err := engine.Quote(models.ServiceTypeBasic, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 1000, breakdown.BasePrice)
	assert.Equal(t, services.SurchargeNone, breakdown.Surcharge)
	assert.Equal(t, 0, breakdown.SurchargeAmount)
	assert.Equal(t, 1000, breakdown.TotalPrice)
}

func TestQuoteWeekendSurcharge(t *testing.T) {
	engine := newTestPricingEngine(t, nil)

	// 2026-03-07 is a Saturday.
	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	basic, err := engine.Quote(models.ServiceTypeBasic, saturday)
	require.NoError(t, err)
	assert.Equal(t, services.SurchargeWeekend, basic.Surcharge)
	assert.Equal(t, 1500, basic.TotalPrice)

	deluxe, err := engine.Quote(models.ServiceTypeDeluxe, saturday)
	require.NoError(t, err)
	assert.Equal(t, 2250, deluxe.TotalPrice)
	assert.Equal(t, 750, deluxe.SurchargeAmount)
}

func TestQuoteHolidayOverridesWeekend(t *testing.T) {
	// 2026-01-03 is a Saturday; configured as a recurring holiday, the
	// holiday multiplier wins and the multipliers do not stack.
	engine := newTestPricingEngine(t, []string{"01-03"})

	breakdown, err := engine.Quote(models.ServiceTypeBasic, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, services.SurchargeHoliday, breakdown.Surcharge)
	assert.Equal(t, 2000, breakdown.TotalPrice)
	assert.Equal(t, 1000, breakdown.SurchargeAmount)
}

func TestQuoteSpecificDateHoliday(t *testing.T) {
	engine := newTestPricingEngine(t, []string{"2026-04-06"})

	// The specific date is a holiday only in that year.
	hit, err := engine.Quote(models.ServiceTypeDeluxe, time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, services.SurchargeHoliday, hit.Surcharge)
	assert.Equal(t, 3000, hit.TotalPrice)

	// Same calendar day next year is a Tuesday with no surcharge.
	miss, err := engine.Quote(models.ServiceTypeDeluxe, time.Date(2027, 4, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, services.SurchargeNone, miss.Surcharge)
	assert.Equal(t, 1500, miss.TotalPrice)
}

func TestQuoteRoundsHalfUp(t *testing.T) {
	engine, err := services.NewPricingEngine(config.NewPricingConfig(1001, 1500, "1.5", "2.0", nil))
	require.NoError(t, err)

	// 1001 * 1.5 = 1501.5, rounded half-up to 1502.
	breakdown, err := engine.Quote(models.ServiceTypeBasic, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1502, breakdown.TotalPrice)
}

func TestQuoteRejectsUnknownServiceType(t *testing.T) {
	engine := newTestPricingEngine(t, nil)

	_, err := engine.Quote("platinum", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.True(t, errors.Is(err, services.ErrInvalidServiceType))
}

func TestNewPricingEngineRejectsBadMultiplier(t *testing.T) {
	_, err := services.NewPricingEngine(config.NewPricingConfig(1000, 1500, "one-and-a-half", "2.0", nil))
	assert.Error(t, err)
}
