package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase statuses.
const (
	PurchaseStatusPending = "pending"
	PurchaseStatusPaid    = "paid"
	PurchaseStatusFailed  = "failed"
)

// FreeService is a complimentary cleaning included in a pack.
type FreeService struct {
	ServiceType string `json:"serviceType"`
	Quantity    int    `json:"quantity"`
}

// FreeServiceList maps to a JSONB column.
type FreeServiceList []FreeService

func (l FreeServiceList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal free services: %w", err)
	}
	return string(b), nil
}

func (l *FreeServiceList) Scan(src interface{}) error {
	if src == nil {
		*l = FreeServiceList{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for free services", src)
	}
	return json.Unmarshal(data, l)
}

// Pack is a purchasable bundle of points. PriceDKK is the VAT-inclusive
// price shown to customers.
type Pack struct {
	ID             int64           `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Description    string          `json:"description" db:"description"`
	PriceExclVAT   decimal.Decimal `json:"priceExcludingVAT" db:"price_excl_vat"`
	PriceDKK       decimal.Decimal `json:"priceInDKK" db:"price_dkk"`
	VATRate        decimal.Decimal `json:"vatRate" db:"vat_rate"`
	PointsIncluded int             `json:"pointsIncluded" db:"points_included"`
	BonusPoints    int             `json:"bonusPoints" db:"bonus_points"`
	FreeServices   FreeServiceList `json:"freeServices" db:"free_services"`
	IsActive       bool            `json:"isActive" db:"is_active"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// TotalPoints is the number of points credited when the pack is purchased.
func (p *Pack) TotalPoints() int {
	return p.PointsIncluded + p.BonusPoints
}

// VATAmount is the VAT portion of the customer-facing price.
func (p *Pack) VATAmount() decimal.Decimal {
	return p.PriceDKK.Sub(p.PriceExclVAT)
}

// Purchase records one Stripe-settled pack purchase. Points are credited
// exactly once, when the purchase transitions from pending to paid.
type Purchase struct {
	ID              int64           `json:"id" db:"id"`
	Reference       string          `json:"reference" db:"reference"` // uuid
	UserID          int64           `json:"userId" db:"user_id"`
	PackID          int64           `json:"packId" db:"pack_id"`
	AmountDKK       decimal.Decimal `json:"amountDKK" db:"amount_dkk"`
	PointsCredited  int             `json:"pointsCredited" db:"points_credited"`
	StripeSessionID *string         `json:"stripeSessionId,omitempty" db:"stripe_session_id"`
	Status          string          `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
	Pack            *Pack           `json:"pack,omitempty"` // populated on listings
}
