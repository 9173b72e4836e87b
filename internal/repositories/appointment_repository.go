package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cryoclean_backend/internal/models"

	"github.com/lib/pq"
)

// AppointmentRepository defines the interface for appointment-related
// database operations.
type AppointmentRepository interface {
	// CreateAppointment inserts the appointment row. The partial unique
	// index on (appointment_date, time_slot) makes this the atomic slot
	// reservation: a racing insert for the same slot fails with
	// ErrDuplicateKey.
	CreateAppointment(executor SQLExecutor, appt *models.Appointment) (int64, error)

	GetAppointmentByID(id int64) (*models.Appointment, error)
	GetAppointmentForUpdate(executor SQLExecutor, id int64) (*models.Appointment, error)
	GetAppointmentsByUser(userID int64) ([]models.Appointment, error)
	GetAppointments(filters models.AppointmentFilters) ([]models.Appointment, int, error)

	// CountActiveByUser counts pending/confirmed/in_progress appointments.
	// Callers must hold the user's row lock so the count stays valid until
	// their insert commits.
	CountActiveByUser(executor SQLExecutor, userID int64) (int, error)

	// ListBookedSlots returns the time_slot labels occupied by non-cancelled
	// appointments on the given date.
	ListBookedSlots(date time.Time) ([]string, error)

	UpdateStatus(executor SQLExecutor, id int64, status string) error
	CancelAppointment(executor SQLExecutor, id int64, reason *string, cancelledBy int64) error
}

type appointmentRepository struct {
	db *sql.DB
}

// NewAppointmentRepository creates a new instance of AppointmentRepository.
func NewAppointmentRepository(db *sql.DB) AppointmentRepository {
	return &appointmentRepository{db: db}
}

const appointmentColumns = `id, user_id, service_type, appointment_date, time_slot, start_time, end_time,
	location, status, price, notes, cancellation_reason, cancelled_by, created_at, updated_at`

func scanAppointment(s interface{ Scan(...interface{}) error }, a *models.Appointment) error {
	return s.Scan(
		&a.ID, &a.UserID, &a.ServiceType, &a.AppointmentDate, &a.TimeSlot,
		&a.StartTime, &a.EndTime, &a.Location, &a.Status, &a.Price,
		&a.Notes, &a.CancellationReason, &a.CancelledBy, &a.CreatedAt, &a.UpdatedAt,
	)
}

func (r *appointmentRepository) CreateAppointment(executor SQLExecutor, appt *models.Appointment) (int64, error) {
	query := `INSERT INTO appointments
	            (user_id, service_type, appointment_date, time_slot, start_time, end_time,
	             location, status, price, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id`
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now

	err := executor.QueryRow(query,
		appt.UserID, appt.ServiceType, appt.AppointmentDate, appt.TimeSlot,
		appt.StartTime, appt.EndTime, appt.Location, appt.Status, appt.Price,
		appt.Notes, appt.CreatedAt, appt.UpdatedAt,
	).Scan(&appt.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: slot %s on %s already reserved",
				ErrDuplicateKey, appt.TimeSlot, appt.AppointmentDate.Format("2006-01-02"))
		}
		return 0, fmt.Errorf("%w: creating appointment: %v", ErrDatabaseError, err)
	}
	return appt.ID, nil
}

func (r *appointmentRepository) GetAppointmentByID(id int64) (*models.Appointment, error) {
	appt := &models.Appointment{}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	err := scanAppointment(r.db.QueryRow(query, id), appt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting appointment by ID %d: %v", ErrDatabaseError, id, err)
	}
	return appt, nil
}

func (r *appointmentRepository) GetAppointmentForUpdate(executor SQLExecutor, id int64) (*models.Appointment, error) {
	appt := &models.Appointment{}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 FOR UPDATE`
	err := scanAppointment(executor.QueryRow(query, id), appt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking appointment %d: %v", ErrDatabaseError, id, err)
	}
	return appt, nil
}

func (r *appointmentRepository) GetAppointmentsByUser(userID int64) ([]models.Appointment, error) {
	appointments := []models.Appointment{}
	query := `SELECT ` + appointmentColumns + ` FROM appointments
	          WHERE user_id = $1 ORDER BY appointment_date DESC, time_slot DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing appointments for user %d: %v", ErrDatabaseError, userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Appointment
		if err := scanAppointment(rows, &a); err != nil {
			return nil, fmt.Errorf("%w: scanning appointment row: %v", ErrDatabaseError, err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating appointment rows: %v", ErrDatabaseError, err)
	}
	return appointments, nil
}

func (r *appointmentRepository) GetAppointments(filters models.AppointmentFilters) ([]models.Appointment, int, error) {
	appointments := []models.Appointment{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
        SELECT
            a.id, a.user_id, a.service_type, a.appointment_date, a.time_slot,
            a.start_time, a.end_time, a.location, a.status, a.price,
            a.notes, a.cancellation_reason, a.cancelled_by, a.created_at, a.updated_at,
            u.full_name, u.email,
            COUNT(*) OVER() AS total_count
        FROM appointments a
        JOIN users u ON a.user_id = u.id
    `)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("a.user_id = $%d", argCounter))
		args = append(args, *filters.UserID)
		argCounter++
	}
	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.ServiceType != nil && *filters.ServiceType != "" {
		conditions = append(conditions, fmt.Sprintf("a.service_type = $%d", argCounter))
		args = append(args, *filters.ServiceType)
		argCounter++
	}
	if filters.Date != nil {
		conditions = append(conditions, fmt.Sprintf("a.appointment_date = $%d", argCounter))
		args = append(args, *filters.Date)
		argCounter++
	}
	if filters.WeekOf != nil {
		// Monday..Sunday week containing the given day.
		day := *filters.WeekOf
		offset := (int(day.Weekday()) + 6) % 7
		weekStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).AddDate(0, 0, -offset)
		weekEnd := weekStart.AddDate(0, 0, 6)
		conditions = append(conditions, fmt.Sprintf("a.appointment_date BETWEEN $%d AND $%d", argCounter, argCounter+1))
		args = append(args, weekStart, weekEnd)
		argCounter += 2
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY a.appointment_date ASC, a.time_slot ASC")

	if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filters.PageSize)
		argCounter++
		if filters.Page > 1 {
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCounter))
			args = append(args, (filters.Page-1)*filters.PageSize)
		}
	}

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing appointments: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Appointment
		var userName, userEmail string
		err := rows.Scan(
			&a.ID, &a.UserID, &a.ServiceType, &a.AppointmentDate, &a.TimeSlot,
			&a.StartTime, &a.EndTime, &a.Location, &a.Status, &a.Price,
			&a.Notes, &a.CancellationReason, &a.CancelledBy, &a.CreatedAt, &a.UpdatedAt,
			&userName, &userEmail, &totalCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning appointment row: %v", ErrDatabaseError, err)
		}
		a.User = &models.User{ID: a.UserID, FullName: userName, Email: userEmail}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating appointment rows: %v", ErrDatabaseError, err)
	}
	return appointments, totalCount, nil
}

func (r *appointmentRepository) CountActiveByUser(executor SQLExecutor, userID int64) (int, error) {
	count := 0
	query := `SELECT COUNT(*) FROM appointments
	          WHERE user_id = $1 AND status = ANY($2)`
	err := executor.QueryRow(query, userID, pq.Array(models.ActiveAppointmentStatuses)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting active appointments for user %d: %v", ErrDatabaseError, userID, err)
	}
	return count, nil
}

func (r *appointmentRepository) ListBookedSlots(date time.Time) ([]string, error) {
	slots := []string{}
	query := `SELECT time_slot FROM appointments
	          WHERE appointment_date = $1 AND status = ANY($2)`
	rows, err := r.db.Query(query, date, pq.Array(models.ActiveAppointmentStatuses))
	if err != nil {
		return nil, fmt.Errorf("%w: listing booked slots for %s: %v",
			ErrDatabaseError, date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("%w: scanning booked slot: %v", ErrDatabaseError, err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating booked slots: %v", ErrDatabaseError, err)
	}
	return slots, nil
}

func (r *appointmentRepository) UpdateStatus(executor SQLExecutor, id int64, status string) error {
	query := `UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := executor.Exec(query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: updating status for appointment %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking status update for appointment %d: %v", ErrDatabaseError, id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) CancelAppointment(executor SQLExecutor, id int64, reason *string, cancelledBy int64) error {
	query := `UPDATE appointments
	          SET status = $1, cancellation_reason = $2, cancelled_by = $3, updated_at = $4
	          WHERE id = $5`
	result, err := executor.Exec(query, models.AppointmentStatusCancelled, reason, cancelledBy, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: cancelling appointment %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking cancellation for appointment %d: %v", ErrDatabaseError, id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
