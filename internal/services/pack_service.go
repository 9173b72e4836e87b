package services

import (
	"errors"
	"fmt"

	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPackNotFound       = errors.New("pack not found")
	ErrPackInactive       = errors.New("pack is no longer available")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrNotPurchaseOwner   = errors.New("purchase belongs to another user")
	ErrPurchaseSettled    = errors.New("purchase is already settled")
	ErrInvalidPackPricing = errors.New("invalid pack pricing")
)

// Ledger reason for settled purchases.
const reasonPackPurchase = "pack purchase"

// --- Pack DTOs ---

// PackRequest is the admin payload for creating or updating a pack.
// PriceInDKK is derived from PriceExcludingVAT and VATRate, never supplied.
type PackRequest struct {
	Name              string                 `json:"name" binding:"required"`
	Description       string                 `json:"description" binding:"required"`
	PriceExcludingVAT string                 `json:"priceExcludingVAT" binding:"required"` // decimal string
	VATRate           string                 `json:"vatRate"`                              // decimal string, default "0.25"
	PointsIncluded    int                    `json:"pointsIncluded" binding:"min=0"`
	BonusPoints       int                    `json:"bonusPoints" binding:"min=0"`
	FreeServices      models.FreeServiceList `json:"freeServices"`
}

// ConfirmPurchaseRequest carries the settlement signal. The payment provider
// is trusted once it reports success; this endpoint only credits points.
type ConfirmPurchaseRequest struct {
	StripeSessionID *string `json:"stripeSessionId"`
}

// PackService manages the pack catalog and the purchase flow that feeds the
// points ledger.
type PackService interface {
	GetPacks(activeOnly bool) ([]models.Pack, error)
	CreatePack(req PackRequest) (*models.Pack, error)
	UpdatePack(packID int64, req PackRequest) (*models.Pack, error)
	DeactivatePack(packID int64) error

	CreatePurchase(userID, packID int64) (*models.Purchase, error)
	ConfirmPurchase(purchaseID, callerID int64, asAdmin bool, req ConfirmPurchaseRequest) (*models.Purchase, error)
	GetUserPurchases(userID int64) ([]models.Purchase, error)
}

type packService struct {
	packRepo  repositories.PackRepository
	ledger    PointsLedger
	txManager repositories.TxManager
}

// NewPackService creates a new instance of PackService.
func NewPackService(pr repositories.PackRepository, ledger PointsLedger, txm repositories.TxManager) PackService {
	return &packService{packRepo: pr, ledger: ledger, txManager: txm}
}

func (s *packService) GetPacks(activeOnly bool) ([]models.Pack, error) {
	packs, err := s.packRepo.GetPacks(activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	return packs, nil
}

func buildPack(req PackRequest) (*models.Pack, error) {
	priceExclVAT, err := decimal.NewFromString(req.PriceExcludingVAT)
	if err != nil || priceExclVAT.IsNegative() {
		return nil, fmt.Errorf("%w: priceExcludingVAT %q", ErrInvalidPackPricing, req.PriceExcludingVAT)
	}
	vatRateStr := req.VATRate
	if vatRateStr == "" {
		vatRateStr = "0.25"
	}
	vatRate, err := decimal.NewFromString(vatRateStr)
	if err != nil || vatRate.IsNegative() {
		return nil, fmt.Errorf("%w: vatRate %q", ErrInvalidPackPricing, req.VATRate)
	}
	for _, fs := range req.FreeServices {
		if !models.IsValidServiceType(fs.ServiceType) || fs.Quantity < 1 {
			return nil, fmt.Errorf("%w: free service %q x%d", ErrInvalidPackPricing, fs.ServiceType, fs.Quantity)
		}
	}

	freeServices := req.FreeServices
	if freeServices == nil {
		freeServices = models.FreeServiceList{}
	}

	// Customer-facing price is VAT-inclusive, rounded to whole øre.
	priceDKK := priceExclVAT.Mul(decimal.NewFromInt(1).Add(vatRate)).Round(2)

	return &models.Pack{
		Name:           req.Name,
		Description:    req.Description,
		PriceExclVAT:   priceExclVAT,
		PriceDKK:       priceDKK,
		VATRate:        vatRate,
		PointsIncluded: req.PointsIncluded,
		BonusPoints:    req.BonusPoints,
		FreeServices:   freeServices,
		IsActive:       true,
	}, nil
}

func (s *packService) CreatePack(req PackRequest) (*models.Pack, error) {
	pack, err := buildPack(req)
	if err != nil {
		return nil, err
	}
	err = s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		_, createErr := s.packRepo.CreatePack(tx, pack)
		return createErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pack: %w", err)
	}
	return pack, nil
}

func (s *packService) UpdatePack(packID int64, req PackRequest) (*models.Pack, error) {
	existing, err := s.packRepo.GetPackByID(packID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: ID %d", ErrPackNotFound, packID)
		}
		return nil, fmt.Errorf("failed to load pack %d: %w", packID, err)
	}

	pack, err := buildPack(req)
	if err != nil {
		return nil, err
	}
	pack.ID = existing.ID
	pack.IsActive = existing.IsActive
	pack.CreatedAt = existing.CreatedAt

	err = s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		return s.packRepo.UpdatePack(tx, pack)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update pack %d: %w", packID, err)
	}
	return pack, nil
}

func (s *packService) DeactivatePack(packID int64) error {
	err := s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		return s.packRepo.SetPackActive(tx, packID, false)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: ID %d", ErrPackNotFound, packID)
		}
		return fmt.Errorf("failed to deactivate pack %d: %w", packID, err)
	}
	return nil
}

func (s *packService) CreatePurchase(userID, packID int64) (*models.Purchase, error) {
	pack, err := s.packRepo.GetPackByID(packID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: ID %d", ErrPackNotFound, packID)
		}
		return nil, fmt.Errorf("failed to load pack %d: %w", packID, err)
	}
	if !pack.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrPackInactive, pack.Name)
	}

	purchase := &models.Purchase{
		Reference: uuid.NewString(),
		UserID:    userID,
		PackID:    pack.ID,
		AmountDKK: pack.PriceDKK,
		Status:    models.PurchaseStatusPending,
	}
	err = s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		_, createErr := s.packRepo.CreatePurchase(tx, purchase)
		return createErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}
	purchase.Pack = pack
	return purchase, nil
}

// ConfirmPurchase marks a pending purchase paid and credits its points.
// The purchase row is locked so a duplicate settle signal credits at most
// once; the second caller gets ErrPurchaseSettled.
func (s *packService) ConfirmPurchase(purchaseID, callerID int64, asAdmin bool, req ConfirmPurchaseRequest) (*models.Purchase, error) {
	var confirmed *models.Purchase
	err := s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		purchase, err := s.packRepo.GetPurchaseForUpdate(tx, purchaseID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: ID %d", ErrPurchaseNotFound, purchaseID)
			}
			return fmt.Errorf("failed to load purchase %d: %w", purchaseID, err)
		}
		if !asAdmin && purchase.UserID != callerID {
			return ErrNotPurchaseOwner
		}
		if purchase.Status != models.PurchaseStatusPending {
			return fmt.Errorf("%w: status %s", ErrPurchaseSettled, purchase.Status)
		}

		pack, err := s.packRepo.GetPackByID(purchase.PackID)
		if err != nil {
			return fmt.Errorf("failed to load pack %d: %w", purchase.PackID, err)
		}

		points := pack.TotalPoints()
		if points > 0 {
			if _, err := s.ledger.MutateInTx(tx, purchase.UserID, models.PointsOpAdd, points, reasonPackPurchase, nil); err != nil {
				return fmt.Errorf("failed to credit purchase %d: %w", purchaseID, err)
			}
		}
		if err := s.packRepo.SettlePurchase(tx, purchaseID, models.PurchaseStatusPaid, points, req.StripeSessionID); err != nil {
			return fmt.Errorf("failed to settle purchase %d: %w", purchaseID, err)
		}

		purchase.Status = models.PurchaseStatusPaid
		purchase.PointsCredited = points
		if req.StripeSessionID != nil {
			purchase.StripeSessionID = req.StripeSessionID
		}
		purchase.Pack = pack
		confirmed = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *packService) GetUserPurchases(userID int64) ([]models.Purchase, error) {
	purchases, err := s.packRepo.GetPurchasesByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}
