package services_test

import (
	"errors"
	"testing"

	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type packFixture struct {
	store   *memStore
	service services.PackService
	ledger  services.PointsLedger
}

func newPackFixture(t *testing.T) *packFixture {
	t.Helper()
	store := newMemStore()
	txManager := &fakeTxManager{store: store}
	ledger := services.NewPointsLedger(&fakeUserRepo{store: store}, &fakePointsRepo{store: store}, txManager)
	service := services.NewPackService(&fakePackRepo{store: store}, ledger, txManager)
	return &packFixture{store: store, service: service, ledger: ledger}
}

func starterPackRequest() services.PackRequest {
	return services.PackRequest{
		Name:              "Starter",
		Description:       "Entry points pack",
		PriceExcludingVAT: "400.00",
		VATRate:           "0.25",
		PointsIncluded:    4000,
		BonusPoints:       500,
	}
}

func TestCreatePackDerivesVATInclusivePrice(t *testing.T) {
	f := newPackFixture(t)

	pack, err := f.service.CreatePack(starterPackRequest())
	require.NoError(t, err)

	assert.True(t, pack.PriceDKK.Equal(decimal.RequireFromString("500.00")),
		"got %s", pack.PriceDKK)
	assert.True(t, pack.VATAmount().Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, 4500, pack.TotalPoints())
	assert.True(t, pack.IsActive)
}

func TestCreatePackDefaultsDanishVAT(t *testing.T) {
	f := newPackFixture(t)

	req := starterPackRequest()
	req.VATRate = ""
	pack, err := f.service.CreatePack(req)
	require.NoError(t, err)
	assert.True(t, pack.VATRate.Equal(decimal.RequireFromString("0.25")))
}

func TestCreatePackRejectsBadPricing(t *testing.T) {
	f := newPackFixture(t)

	req := starterPackRequest()
	req.PriceExcludingVAT = "-10"
	_, err := f.service.CreatePack(req)
	assert.True(t, errors.Is(err, services.ErrInvalidPackPricing))

	req = starterPackRequest()
	req.FreeServices = models.FreeServiceList{{ServiceType: "platinum", Quantity: 1}}
	_, err = f.service.CreatePack(req)
	assert.True(t, errors.Is(err, services.ErrInvalidPackPricing))
}

func TestPurchaseLifecycle(t *testing.T) {
	f := newPackFixture(t)
	user := f.store.addUser(models.User{Email: "anna@example.com", TotalPoints: 100, IsActive: true})

	pack, err := f.service.CreatePack(starterPackRequest())
	require.NoError(t, err)

	purchase, err := f.service.CreatePurchase(user.ID, pack.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, purchase.Status)
	assert.True(t, purchase.AmountDKK.Equal(pack.PriceDKK))
	assert.NotEmpty(t, purchase.Reference)

	// Pending purchases credit nothing.
	assert.Equal(t, 100, f.store.balance(user.ID))

	sessionID := "cs_test_123"
	confirmed, err := f.service.ConfirmPurchase(purchase.ID, user.ID, false, services.ConfirmPurchaseRequest{StripeSessionID: &sessionID})
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPaid, confirmed.Status)
	assert.Equal(t, 4500, confirmed.PointsCredited)
	assert.Equal(t, 4600, f.store.balance(user.ID))

	txns := f.store.transactionsFor(user.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, "pack purchase", txns[0].Reason)
	assert.Equal(t, 4500, txns[0].PointsChanged)
}

func TestConfirmPurchaseIsCreditedOnce(t *testing.T) {
	f := newPackFixture(t)
	user := f.store.addUser(models.User{Email: "anna@example.com", TotalPoints: 0, IsActive: true})

	pack, err := f.service.CreatePack(starterPackRequest())
	require.NoError(t, err)
	purchase, err := f.service.CreatePurchase(user.ID, pack.ID)
	require.NoError(t, err)

	_, err = f.service.ConfirmPurchase(purchase.ID, user.ID, false, services.ConfirmPurchaseRequest{})
	require.NoError(t, err)

	_, err = f.service.ConfirmPurchase(purchase.ID, user.ID, false, services.ConfirmPurchaseRequest{})
	assert.True(t, errors.Is(err, services.ErrPurchaseSettled))

	assert.Equal(t, 4500, f.store.balance(user.ID))
	assert.Len(t, f.store.transactionsFor(user.ID), 1)
}

func TestConfirmPurchaseOwnership(t *testing.T) {
	f := newPackFixture(t)
	owner := f.store.addUser(models.User{Email: "owner@example.com", IsActive: true})
	intruder := f.store.addUser(models.User{Email: "intruder@example.com", IsActive: true})
	admin := f.store.addUser(models.User{Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true})

	pack, err := f.service.CreatePack(starterPackRequest())
	require.NoError(t, err)
	purchase, err := f.service.CreatePurchase(owner.ID, pack.ID)
	require.NoError(t, err)

	_, err = f.service.ConfirmPurchase(purchase.ID, intruder.ID, false, services.ConfirmPurchaseRequest{})
	assert.True(t, errors.Is(err, services.ErrNotPurchaseOwner))

	// An admin can settle on the user's behalf; the points land with the
	// purchase owner.
	_, err = f.service.ConfirmPurchase(purchase.ID, admin.ID, true, services.ConfirmPurchaseRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4500, f.store.balance(owner.ID))
	assert.Equal(t, 0, f.store.balance(admin.ID))
}

func TestCreatePurchaseOnInactivePack(t *testing.T) {
	f := newPackFixture(t)
	user := f.store.addUser(models.User{Email: "anna@example.com", IsActive: true})

	pack, err := f.service.CreatePack(starterPackRequest())
	require.NoError(t, err)
	require.NoError(t, f.service.DeactivatePack(pack.ID))

	_, err = f.service.CreatePurchase(user.ID, pack.ID)
	assert.True(t, errors.Is(err, services.ErrPackInactive))
}

func TestDeactivatePackHidesItFromCatalog(t *testing.T) {
	f := newPackFixture(t)

	pack, err := f.service.CreatePack(starterPackRequest())
	require.NoError(t, err)
	_, err = f.service.CreatePack(services.PackRequest{
		Name:              "Pro",
		Description:       "Bigger pack",
		PriceExcludingVAT: "800.00",
		PointsIncluded:    9000,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.DeactivatePack(pack.ID))

	active, err := f.service.GetPacks(true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := f.service.GetPacks(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdatePackKeepsIdentity(t *testing.T) {
	f := newPackFixture(t)

	pack, err := f.service.CreatePack(starterPackRequest())
	require.NoError(t, err)

	req := starterPackRequest()
	req.Name = "Starter Plus"
	req.BonusPoints = 1000
	updated, err := f.service.UpdatePack(pack.ID, req)
	require.NoError(t, err)

	assert.Equal(t, pack.ID, updated.ID)
	assert.Equal(t, "Starter Plus", updated.Name)
	assert.Equal(t, 5000, updated.TotalPoints())

	_, err = f.service.UpdatePack(999, req)
	assert.True(t, errors.Is(err, services.ErrPackNotFound))
}
