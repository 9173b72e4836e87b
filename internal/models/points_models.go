package models

import "time"

// Ledger operations.
const (
	PointsOpAdd      = "add"
	PointsOpSubtract = "subtract"
	PointsOpSet      = "set"
)

// IsValidPointsOperation checks if the provided operation string is a valid ledger operation.
func IsValidPointsOperation(op string) bool {
	return op == PointsOpAdd || op == PointsOpSubtract || op == PointsOpSet
}

// PointsTransaction is an immutable audit entry for a single balance
// mutation. Rows are append-only: replaying PointsChanged from zero must
// reproduce the user's current balance.
type PointsTransaction struct {
	ID              int64     `json:"id" db:"id"`
	Reference       string    `json:"reference" db:"reference"` // uuid
	UserID          int64     `json:"userId" db:"user_id"`
	Operation       string    `json:"operation" db:"operation"`
	PointsChanged   int       `json:"pointsChanged" db:"points_changed"` // signed delta applied to the balance
	Reason          string    `json:"reason" db:"reason"`
	PreviousBalance int       `json:"previousBalance" db:"previous_balance"`
	NewBalance      int       `json:"newBalance" db:"new_balance"`
	PerformedBy     *int64    `json:"performedBy,omitempty" db:"performed_by"` // admin user, when not self-service
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
