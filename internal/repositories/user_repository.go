package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cryoclean_backend/internal/models"

	"github.com/lib/pq"
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	CreateUser(executor SQLExecutor, user *models.User) (int64, error)
	GetUserByID(id int64) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUsers(page, pageSize int) ([]models.User, int, error)

	// GetUserForUpdate loads the user row with a FOR UPDATE lock. All
	// per-user serialization (balance mutation, booking-cap check) hinges
	// on this lock.
	GetUserForUpdate(executor SQLExecutor, id int64) (*models.User, error)
	UpdateBalance(executor SQLExecutor, id int64, newBalance int) error
	SetActive(executor SQLExecutor, id int64, active bool) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, full_name, email, phone, password_hash, role, total_points, is_active, created_at, updated_at`

func scanUser(s interface{ Scan(...interface{}) error }, u *models.User) error {
	return s.Scan(
		&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PasswordHash,
		&u.Role, &u.TotalPoints, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
}

func (r *userRepository) CreateUser(executor SQLExecutor, user *models.User) (int64, error) {
	query := `INSERT INTO users (full_name, email, phone, password_hash, role, total_points, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id`
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := executor.QueryRow(query,
		user.FullName, user.Email, user.Phone, user.PasswordHash,
		user.Role, user.TotalPoints, user.IsActive, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: email '%s' already registered", ErrDuplicateKey, user.Email)
		}
		return 0, fmt.Errorf("%w: creating user: %v", ErrDatabaseError, err)
	}
	return user.ID, nil
}

func (r *userRepository) GetUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := scanUser(r.db.QueryRow(query, id), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting user by ID %d: %v", ErrDatabaseError, id, err)
	}
	return user, nil
}

func (r *userRepository) GetUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	err := scanUser(r.db.QueryRow(query, email), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting user by email: %v", ErrDatabaseError, err)
	}
	return user, nil
}

func (r *userRepository) GetUsers(page, pageSize int) ([]models.User, int, error) {
	users := []models.User{}
	totalCount := 0

	query := `SELECT ` + userColumns + `, COUNT(*) OVER() AS total_count
	          FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing users: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		err := rows.Scan(
			&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PasswordHash,
			&u.Role, &u.TotalPoints, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
			&totalCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning user row: %v", ErrDatabaseError, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating user rows: %v", ErrDatabaseError, err)
	}
	return users, totalCount, nil
}

func (r *userRepository) GetUserForUpdate(executor SQLExecutor, id int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	err := scanUser(executor.QueryRow(query, id), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking user %d: %v", ErrDatabaseError, id, err)
	}
	return user, nil
}

func (r *userRepository) UpdateBalance(executor SQLExecutor, id int64, newBalance int) error {
	query := `UPDATE users SET total_points = $1, updated_at = $2 WHERE id = $3`
	result, err := executor.Exec(query, newBalance, time.Now(), id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "check_violation" {
			return fmt.Errorf("%w: balance for user %d would go negative", ErrCheckViolation, id)
		}
		return fmt.Errorf("%w: updating balance for user %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking balance update for user %d: %v", ErrDatabaseError, id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) SetActive(executor SQLExecutor, id int64, active bool) error {
	query := `UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`
	result, err := executor.Exec(query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: setting active flag for user %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking active update for user %d: %v", ErrDatabaseError, id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
