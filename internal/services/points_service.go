package services

import (
	"errors"
	"fmt"

	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/repositories"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidAmount      = errors.New("invalid points amount")
	ErrInvalidOperation   = errors.New("invalid points operation")
	ErrInsufficientPoints = errors.New("insufficient points")
)

// InsufficientPointsError reports a balance shortage with the numbers the
// caller needs for display.
type InsufficientPointsError struct {
	Required  int `json:"required"`
	Available int `json:"available"`
	Shortfall int `json:"shortfall"`
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: required %d, available %d, shortfall %d",
		e.Required, e.Available, e.Shortfall)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// PointsLedger maintains user balances. Every mutation updates the balance
// and appends one immutable audit row in the same transaction; the balance
// never goes negative.
type PointsLedger interface {
	// MutateInTx applies one operation inside the caller's transaction.
	// The user row is locked FOR UPDATE, which serializes all balance
	// mutations per user.
	MutateInTx(tx repositories.SQLExecutor, userID int64, operation string, amount int, reason string, performedBy *int64) (*models.PointsTransaction, error)

	// Mutate runs MutateInTx in its own transaction. Used by callers that
	// have no surrounding saga (e.g. admin point adjustments).
	Mutate(userID int64, operation string, amount int, reason string, performedBy *int64) (*models.PointsTransaction, error)

	GetBalance(userID int64) (int, error)
	History(userID int64, page, pageSize int) ([]models.PointsTransaction, int, error)
}

type pointsLedger struct {
	userRepo   repositories.UserRepository
	pointsRepo repositories.PointsRepository
	txManager  repositories.TxManager
}

// NewPointsLedger creates a new instance of PointsLedger.
func NewPointsLedger(ur repositories.UserRepository, pr repositories.PointsRepository, txm repositories.TxManager) PointsLedger {
	return &pointsLedger{userRepo: ur, pointsRepo: pr, txManager: txm}
}

func (l *pointsLedger) MutateInTx(tx repositories.SQLExecutor, userID int64, operation string, amount int, reason string, performedBy *int64) (*models.PointsTransaction, error) {
	switch operation {
	case models.PointsOpAdd, models.PointsOpSubtract:
		if amount <= 0 {
			return nil, fmt.Errorf("%w: %s requires a positive amount, got %d", ErrInvalidAmount, operation, amount)
		}
	case models.PointsOpSet:
		if amount < 0 {
			return nil, fmt.Errorf("%w: set requires a non-negative amount, got %d", ErrInvalidAmount, amount)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, operation)
	}

	user, err := l.userRepo.GetUserForUpdate(tx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: ID %d", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to lock user for points mutation: %w", err)
	}

	previous := user.TotalPoints
	var newBalance int
	switch operation {
	case models.PointsOpAdd:
		newBalance = previous + amount
	case models.PointsOpSubtract:
		newBalance = previous - amount
		if newBalance < 0 {
			return nil, &InsufficientPointsError{
				Required:  amount,
				Available: previous,
				Shortfall: amount - previous,
			}
		}
	case models.PointsOpSet:
		newBalance = amount
	}

	if err := l.userRepo.UpdateBalance(tx, userID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to update balance for user %d: %w", userID, err)
	}

	txn := &models.PointsTransaction{
		Reference:       uuid.NewString(),
		UserID:          userID,
		Operation:       operation,
		PointsChanged:   newBalance - previous,
		Reason:          reason,
		PreviousBalance: previous,
		NewBalance:      newBalance,
		PerformedBy:     performedBy,
	}
	if _, err := l.pointsRepo.CreateTransaction(tx, txn); err != nil {
		return nil, fmt.Errorf("failed to record points transaction: %w", err)
	}
	return txn, nil
}

func (l *pointsLedger) Mutate(userID int64, operation string, amount int, reason string, performedBy *int64) (*models.PointsTransaction, error) {
	var txn *models.PointsTransaction
	err := l.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		var mutateErr error
		txn, mutateErr = l.MutateInTx(tx, userID, operation, amount, reason, performedBy)
		return mutateErr
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (l *pointsLedger) GetBalance(userID int64) (int, error) {
	user, err := l.userRepo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, fmt.Errorf("%w: ID %d", ErrUserNotFound, userID)
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return user.TotalPoints, nil
}

func (l *pointsLedger) History(userID int64, page, pageSize int) ([]models.PointsTransaction, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	transactions, totalCount, err := l.pointsRepo.GetTransactionsByUser(userID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get points history: %w", err)
	}
	return transactions, totalCount, nil
}
