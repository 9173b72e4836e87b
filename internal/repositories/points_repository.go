package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"cryoclean_backend/internal/models"
)

// PointsRepository persists the append-only points audit trail.
// Transactions are never updated or deleted.
type PointsRepository interface {
	CreateTransaction(executor SQLExecutor, txn *models.PointsTransaction) (int64, error)
	GetTransactionsByUser(userID int64, page, pageSize int) ([]models.PointsTransaction, int, error)
}

type pointsRepository struct {
	db *sql.DB
}

// NewPointsRepository creates a new instance of PointsRepository.
func NewPointsRepository(db *sql.DB) PointsRepository {
	return &pointsRepository{db: db}
}

func (r *pointsRepository) CreateTransaction(executor SQLExecutor, txn *models.PointsTransaction) (int64, error) {
	query := `INSERT INTO points_transactions
	            (reference, user_id, operation, points_changed, reason,
	             previous_balance, new_balance, performed_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id`
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	err := executor.QueryRow(query,
		txn.Reference, txn.UserID, txn.Operation, txn.PointsChanged, txn.Reason,
		txn.PreviousBalance, txn.NewBalance, txn.PerformedBy, txn.CreatedAt,
	).Scan(&txn.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating points transaction: %v", ErrDatabaseError, err)
	}
	return txn.ID, nil
}

func (r *pointsRepository) GetTransactionsByUser(userID int64, page, pageSize int) ([]models.PointsTransaction, int, error) {
	transactions := []models.PointsTransaction{}
	totalCount := 0

	query := `SELECT id, reference, user_id, operation, points_changed, reason,
	                 previous_balance, new_balance, performed_by, created_at,
	                 COUNT(*) OVER() AS total_count
	          FROM points_transactions
	          WHERE user_id = $1
	          ORDER BY created_at DESC, id DESC
	          LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing points transactions for user %d: %v", ErrDatabaseError, userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.PointsTransaction
		err := rows.Scan(
			&t.ID, &t.Reference, &t.UserID, &t.Operation, &t.PointsChanged, &t.Reason,
			&t.PreviousBalance, &t.NewBalance, &t.PerformedBy, &t.CreatedAt,
			&totalCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning points transaction row: %v", ErrDatabaseError, err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating points transaction rows: %v", ErrDatabaseError, err)
	}
	return transactions, totalCount, nil
}
