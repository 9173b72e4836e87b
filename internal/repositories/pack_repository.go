package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cryoclean_backend/internal/models"

	"github.com/lib/pq"
)

// PackRepository defines database operations for point packs and purchases.
type PackRepository interface {
	CreatePack(executor SQLExecutor, pack *models.Pack) (int64, error)
	GetPackByID(id int64) (*models.Pack, error)
	GetPacks(activeOnly bool) ([]models.Pack, error)
	UpdatePack(executor SQLExecutor, pack *models.Pack) error
	SetPackActive(executor SQLExecutor, id int64, active bool) error

	CreatePurchase(executor SQLExecutor, purchase *models.Purchase) (int64, error)
	GetPurchaseByID(id int64) (*models.Purchase, error)
	GetPurchaseForUpdate(executor SQLExecutor, id int64) (*models.Purchase, error)
	GetPurchasesByUser(userID int64) ([]models.Purchase, error)
	SettlePurchase(executor SQLExecutor, id int64, status string, pointsCredited int, stripeSessionID *string) error
}

type packRepository struct {
	db *sql.DB
}

// NewPackRepository creates a new instance of PackRepository.
func NewPackRepository(db *sql.DB) PackRepository {
	return &packRepository{db: db}
}

const packColumns = `id, name, description, price_excl_vat, price_dkk, vat_rate,
	points_included, bonus_points, free_services, is_active, created_at, updated_at`

func scanPack(s interface{ Scan(...interface{}) error }, p *models.Pack) error {
	return s.Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceExclVAT, &p.PriceDKK, &p.VATRate,
		&p.PointsIncluded, &p.BonusPoints, &p.FreeServices, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *packRepository) CreatePack(executor SQLExecutor, pack *models.Pack) (int64, error) {
	query := `INSERT INTO packs
	            (name, description, price_excl_vat, price_dkk, vat_rate,
	             points_included, bonus_points, free_services, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id`
	now := time.Now()
	pack.CreatedAt = now
	pack.UpdatedAt = now

	err := executor.QueryRow(query,
		pack.Name, pack.Description, pack.PriceExclVAT, pack.PriceDKK, pack.VATRate,
		pack.PointsIncluded, pack.BonusPoints, pack.FreeServices, pack.IsActive,
		pack.CreatedAt, pack.UpdatedAt,
	).Scan(&pack.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: pack name '%s' already exists", ErrDuplicateKey, pack.Name)
		}
		return 0, fmt.Errorf("%w: creating pack: %v", ErrDatabaseError, err)
	}
	return pack.ID, nil
}

func (r *packRepository) GetPackByID(id int64) (*models.Pack, error) {
	pack := &models.Pack{}
	query := `SELECT ` + packColumns + ` FROM packs WHERE id = $1`
	err := scanPack(r.db.QueryRow(query, id), pack)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting pack by ID %d: %v", ErrDatabaseError, id, err)
	}
	return pack, nil
}

func (r *packRepository) GetPacks(activeOnly bool) ([]models.Pack, error) {
	packs := []models.Pack{}
	query := `SELECT ` + packColumns + ` FROM packs`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY price_dkk ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: listing packs: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Pack
		if err := scanPack(rows, &p); err != nil {
			return nil, fmt.Errorf("%w: scanning pack row: %v", ErrDatabaseError, err)
		}
		packs = append(packs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating pack rows: %v", ErrDatabaseError, err)
	}
	return packs, nil
}

func (r *packRepository) UpdatePack(executor SQLExecutor, pack *models.Pack) error {
	query := `UPDATE packs
	          SET name = $1, description = $2, price_excl_vat = $3, price_dkk = $4,
	              vat_rate = $5, points_included = $6, bonus_points = $7,
	              free_services = $8, is_active = $9, updated_at = $10
	          WHERE id = $11`
	result, err := executor.Exec(query,
		pack.Name, pack.Description, pack.PriceExclVAT, pack.PriceDKK,
		pack.VATRate, pack.PointsIncluded, pack.BonusPoints,
		pack.FreeServices, pack.IsActive, time.Now(), pack.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: pack name '%s' already exists", ErrDuplicateKey, pack.Name)
		}
		return fmt.Errorf("%w: updating pack %d: %v", ErrDatabaseError, pack.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking pack update %d: %v", ErrDatabaseError, pack.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *packRepository) SetPackActive(executor SQLExecutor, id int64, active bool) error {
	query := `UPDATE packs SET is_active = $1, updated_at = $2 WHERE id = $3`
	result, err := executor.Exec(query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: setting active flag for pack %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking pack active update %d: %v", ErrDatabaseError, id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

const purchaseColumns = `id, reference, user_id, pack_id, amount_dkk, points_credited,
	stripe_session_id, status, created_at, updated_at`

func scanPurchase(s interface{ Scan(...interface{}) error }, p *models.Purchase) error {
	return s.Scan(
		&p.ID, &p.Reference, &p.UserID, &p.PackID, &p.AmountDKK, &p.PointsCredited,
		&p.StripeSessionID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *packRepository) CreatePurchase(executor SQLExecutor, purchase *models.Purchase) (int64, error) {
	query := `INSERT INTO purchases
	            (reference, user_id, pack_id, amount_dkk, points_credited,
	             stripe_session_id, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id`
	now := time.Now()
	purchase.CreatedAt = now
	purchase.UpdatedAt = now

	err := executor.QueryRow(query,
		purchase.Reference, purchase.UserID, purchase.PackID, purchase.AmountDKK,
		purchase.PointsCredited, purchase.StripeSessionID, purchase.Status,
		purchase.CreatedAt, purchase.UpdatedAt,
	).Scan(&purchase.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating purchase: %v", ErrDatabaseError, err)
	}
	return purchase.ID, nil
}

func (r *packRepository) GetPurchaseByID(id int64) (*models.Purchase, error) {
	purchase := &models.Purchase{}
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`
	err := scanPurchase(r.db.QueryRow(query, id), purchase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting purchase by ID %d: %v", ErrDatabaseError, id, err)
	}
	return purchase, nil
}

func (r *packRepository) GetPurchaseForUpdate(executor SQLExecutor, id int64) (*models.Purchase, error) {
	purchase := &models.Purchase{}
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1 FOR UPDATE`
	err := scanPurchase(executor.QueryRow(query, id), purchase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking purchase %d: %v", ErrDatabaseError, id, err)
	}
	return purchase, nil
}

func (r *packRepository) GetPurchasesByUser(userID int64) ([]models.Purchase, error) {
	purchases := []models.Purchase{}
	query := `SELECT p.id, p.reference, p.user_id, p.pack_id, p.amount_dkk, p.points_credited,
	                 p.stripe_session_id, p.status, p.created_at, p.updated_at,
	                 k.name, k.points_included, k.bonus_points
	          FROM purchases p
	          JOIN packs k ON p.pack_id = k.id
	          WHERE p.user_id = $1
	          ORDER BY p.created_at DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing purchases for user %d: %v", ErrDatabaseError, userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Purchase
		var packName string
		var pointsIncluded, bonusPoints int
		err := rows.Scan(
			&p.ID, &p.Reference, &p.UserID, &p.PackID, &p.AmountDKK, &p.PointsCredited,
			&p.StripeSessionID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
			&packName, &pointsIncluded, &bonusPoints,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning purchase row: %v", ErrDatabaseError, err)
		}
		p.Pack = &models.Pack{ID: p.PackID, Name: packName, PointsIncluded: pointsIncluded, BonusPoints: bonusPoints}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating purchase rows: %v", ErrDatabaseError, err)
	}
	return purchases, nil
}

func (r *packRepository) SettlePurchase(executor SQLExecutor, id int64, status string, pointsCredited int, stripeSessionID *string) error {
	query := `UPDATE purchases
	          SET status = $1, points_credited = $2,
	              stripe_session_id = COALESCE($3, stripe_session_id), updated_at = $4
	          WHERE id = $5`
	result, err := executor.Exec(query, status, pointsCredited, stripeSessionID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: settling purchase %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking purchase settlement %d: %v", ErrDatabaseError, id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
