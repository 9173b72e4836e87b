package models

import "time"

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a customer (or admin) of the cleaning service.
// TotalPoints is mutated only through the points ledger; every change
// produces a PointsTransaction row.
type User struct {
	ID           int64     `json:"id" db:"id"`
	FullName     string    `json:"fullName" db:"full_name"`
	Email        string    `json:"email" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	TotalPoints  int       `json:"totalPoints" db:"total_points"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// IsValidRole checks if the provided role string is a known role.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
