package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"cryoclean_backend/internal/config"
	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/repositories"

	"cryoclean_backend/pkg/utils"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNotAppointmentOwner = errors.New("appointment belongs to another user")
	ErrUserInactive        = errors.New("user account is deactivated")
	ErrAppointmentLimit    = errors.New("active appointment limit reached")
	ErrInvalidTransition   = errors.New("invalid appointment status transition")
	ErrAlreadyCancelled    = errors.New("appointment is already cancelled")
)

// Ledger reasons written by the booking saga. "booking rollback" is the
// compensation entry: it appears whenever a debit had to be refunded because
// a later saga step failed.
const (
	reasonBooking            = "appointment booking"
	reasonBookingRollback    = "booking rollback"
	reasonCancellationRefund = "cancellation refund"
)

const dateLayout = "2006-01-02"

const (
	minLocationLen = 5
	maxLocationLen = 200
	maxNotesLen    = 500
)

// AppointmentLimitError reports that the user is at the active-appointment cap.
type AppointmentLimitError struct {
	Limit  int `json:"limit"`
	Active int `json:"active"`
}

func (e *AppointmentLimitError) Error() string {
	return fmt.Sprintf("active appointment limit reached: %d of %d", e.Active, e.Limit)
}

func (e *AppointmentLimitError) Unwrap() error {
	return ErrAppointmentLimit
}

// ValidationError lists every violated field of a request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// --- Appointment DTOs ---

// CreateAppointmentRequest is the booking payload. TimeSlot is optional:
// when empty, the earliest open window of the day is allocated.
type CreateAppointmentRequest struct {
	ServiceType     string  `json:"serviceType" binding:"required"`
	AppointmentDate string  `json:"appointmentDate" binding:"required"` // YYYY-MM-DD
	TimeSlot        string  `json:"timeSlot"`
	Location        string  `json:"location" binding:"required"`
	Notes           *string `json:"notes"`
}

// CreateAppointmentResult is returned on a successful booking.
type CreateAppointmentResult struct {
	Appointment     *models.Appointment `json:"appointment"`
	PointsRemaining int                 `json:"userPointsRemaining"`
	PriceBreakdown  *PriceBreakdown     `json:"priceBreakdown"`
}

// CancelAppointmentResult is returned on a successful cancellation.
type CancelAppointmentResult struct {
	Appointment    *models.Appointment `json:"appointment"`
	RefundedPoints int                 `json:"refundedPoints"`
}

// DayAvailability lists the open windows for one date.
type DayAvailability struct {
	Date           string     `json:"date"`
	AvailableSlots []TimeSlot `json:"availableSlots"`
}

// AppointmentService orchestrates the appointment lifecycle: booking (as a
// saga of forward steps with compensating refunds), cancellation with
// refund, and status progression.
type AppointmentService interface {
	CreateAppointment(userID int64, req CreateAppointmentRequest) (*CreateAppointmentResult, error)
	GetUserAppointments(userID int64) ([]models.Appointment, error)
	GetAppointments(filters models.AppointmentFilters) ([]models.Appointment, int, error)
	GetAvailability(dateStr string) (*DayAvailability, error)

	// CancelAppointment cancels on behalf of the owner, or of any user when
	// asAdmin is set. Fully succeeds (status flipped and refund posted in
	// one transaction) or fully fails.
	CancelAppointment(appointmentID, callerID int64, asAdmin bool, reason *string) (*CancelAppointmentResult, error)

	// UpdateStatus drives the forward progression pending -> confirmed ->
	// in_progress -> completed. Cancellation goes through CancelAppointment
	// because it refunds.
	UpdateStatus(appointmentID int64, newStatus string) (*models.Appointment, error)
}

type appointmentService struct {
	apptRepo  repositories.AppointmentRepository
	userRepo  repositories.UserRepository
	pricing   PricingEngine
	slots     SlotAllocator
	ledger    PointsLedger
	txManager repositories.TxManager
	cfg       config.BookingConfig
	now       func() time.Time
}

// NewAppointmentService creates a new instance of AppointmentService.
// now is injected so date-bound validation is testable; pass time.Now in
// production.
func NewAppointmentService(
	ar repositories.AppointmentRepository,
	ur repositories.UserRepository,
	pricing PricingEngine,
	slots SlotAllocator,
	ledger PointsLedger,
	txm repositories.TxManager,
	cfg config.BookingConfig,
	now func() time.Time,
) AppointmentService {
	return &appointmentService{
		apptRepo:  ar,
		userRepo:  ur,
		pricing:   pricing,
		slots:     slots,
		ledger:    ledger,
		txManager: txm,
		cfg:       cfg,
		now:       now,
	}
}

// validateCreate checks every field and collects all violations so the
// caller sees the complete list at once.
func (s *appointmentService) validateCreate(req CreateAppointmentRequest) (time.Time, error) {
	fields := make(map[string]string)

	if !models.IsValidServiceType(req.ServiceType) {
		fields["serviceType"] = fmt.Sprintf("must be %q or %q", models.ServiceTypeBasic, models.ServiceTypeDeluxe)
	}

	var date time.Time
	parsed, err := time.Parse(dateLayout, req.AppointmentDate)
	if err != nil {
		fields["appointmentDate"] = "must be a date in YYYY-MM-DD format"
	} else {
		date = parsed
		today := s.today()
		horizon := today.AddDate(0, s.cfg.HorizonMonths, 0)
		if !date.After(today) {
			fields["appointmentDate"] = "must be strictly in the future"
		} else if date.After(horizon) {
			fields["appointmentDate"] = fmt.Sprintf("must be within %d months from today", s.cfg.HorizonMonths)
		}
	}

	// Limits are in characters, matching the char_length checks in the
	// database, so multibyte addresses count the same in both places.
	location := strings.TrimSpace(req.Location)
	if n := utf8.RuneCountInString(location); n < minLocationLen || n > maxLocationLen {
		fields["location"] = fmt.Sprintf("must be between %d and %d characters", minLocationLen, maxLocationLen)
	}

	if req.Notes != nil && utf8.RuneCountInString(*req.Notes) > maxNotesLen {
		fields["notes"] = fmt.Sprintf("must be at most %d characters", maxNotesLen)
	}

	if req.TimeSlot != "" && !date.IsZero() {
		if _, err := s.slots.Resolve(date, req.TimeSlot); err != nil {
			fields["timeSlot"] = "is not a valid time slot for the service day"
		}
	}

	if len(fields) > 0 {
		return time.Time{}, &ValidationError{Fields: fields}
	}
	return date, nil
}

func (s *appointmentService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateAppointment implements the booking saga:
//
//  1. validate input
//  2. tx A: lock user, check capacity, debit the quoted price
//  3. tx B: relock user, re-check capacity, insert the appointment
//     (the partial unique index is the atomic slot reservation)
//  4. on any tx B failure: compensate by refunding the debit
//
// The capacity re-check in tx B runs under the same user-row lock as the
// insert, which closes the race where two concurrent bookings both pass the
// pre-check.
func (s *appointmentService) CreateAppointment(userID int64, req CreateAppointmentRequest) (*CreateAppointmentResult, error) {
	date, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	// Pick the slot. A requested slot is trusted optimistically: the insert
	// decides who wins a race. An omitted slot gets the earliest open window.
	var slot *TimeSlot
	if req.TimeSlot != "" {
		slot, err = s.slots.Resolve(date, req.TimeSlot)
	} else {
		slot, err = s.slots.FirstAvailable(date)
	}
	if err != nil {
		return nil, err
	}

	breakdown, err := s.pricing.Quote(req.ServiceType, date)
	if err != nil {
		return nil, err
	}

	// Forward step: debit. Capacity is pre-checked here so users at the cap
	// are rejected before their balance is touched.
	var debit *models.PointsTransaction
	err = s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		user, lockErr := s.userRepo.GetUserForUpdate(tx, userID)
		if lockErr != nil {
			if errors.Is(lockErr, repositories.ErrNotFound) {
				return fmt.Errorf("%w: ID %d", ErrUserNotFound, userID)
			}
			return fmt.Errorf("failed to lock user for booking: %w", lockErr)
		}
		if !user.IsActive {
			return ErrUserInactive
		}

		active, countErr := s.apptRepo.CountActiveByUser(tx, userID)
		if countErr != nil {
			return fmt.Errorf("failed to count active appointments: %w", countErr)
		}
		if active >= s.cfg.MaxActiveAppointments {
			return &AppointmentLimitError{Limit: s.cfg.MaxActiveAppointments, Active: active}
		}

		var debitErr error
		debit, debitErr = s.ledger.MutateInTx(tx, userID, models.PointsOpSubtract, breakdown.TotalPrice, reasonBooking, nil)
		return debitErr
	})
	if err != nil {
		return nil, err
	}

	// Forward step: reserve the slot by inserting the appointment.
	appt := &models.Appointment{
		UserID:          userID,
		ServiceType:     req.ServiceType,
		AppointmentDate: date,
		TimeSlot:        slot.Label,
		StartTime:       slot.Start,
		EndTime:         slot.End,
		Location:        strings.TrimSpace(req.Location),
		Status:          models.AppointmentStatusConfirmed,
		Price:           breakdown.TotalPrice,
		Notes:           req.Notes,
	}
	err = s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		if _, lockErr := s.userRepo.GetUserForUpdate(tx, userID); lockErr != nil {
			return fmt.Errorf("failed to relock user for reservation: %w", lockErr)
		}
		active, countErr := s.apptRepo.CountActiveByUser(tx, userID)
		if countErr != nil {
			return fmt.Errorf("failed to recount active appointments: %w", countErr)
		}
		if active >= s.cfg.MaxActiveAppointments {
			return &AppointmentLimitError{Limit: s.cfg.MaxActiveAppointments, Active: active}
		}

		if _, insertErr := s.apptRepo.CreateAppointment(tx, appt); insertErr != nil {
			if errors.Is(insertErr, repositories.ErrDuplicateKey) {
				return fmt.Errorf("%w: %s on %s", ErrSlotTaken, slot.Label, req.AppointmentDate)
			}
			return fmt.Errorf("failed to persist appointment: %w", insertErr)
		}
		return nil
	})
	if err != nil {
		// Compensate: refund the debit so a failed booking leaves the
		// balance exactly as it was.
		s.refundDebit(userID, breakdown.TotalPrice)
		return nil, err
	}

	return &CreateAppointmentResult{
		Appointment:     appt,
		PointsRemaining: debit.NewBalance,
		PriceBreakdown:  breakdown,
	}, nil
}

// refundRetries bounds how often a failed compensation is retried before
// the failure is escalated to the log.
const refundRetries = 3

// refundDebit posts the compensation entry for a failed booking. The refund
// must land, so transient failures are retried with a short backoff; only
// after every attempt fails is the inconsistency logged loudly. The original
// booking error is still what the caller sees.
func (s *appointmentService) refundDebit(userID int64, amount int) {
	var err error
	for attempt := 1; attempt <= refundRetries; attempt++ {
		err = s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
			_, refundErr := s.ledger.MutateInTx(tx, userID, models.PointsOpAdd, amount, reasonBookingRollback, nil)
			return refundErr
		})
		if err == nil {
			return
		}
		if attempt < refundRetries {
			time.Sleep(time.Duration(attempt) * 25 * time.Millisecond)
		}
	}
	utils.LogError(err, fmt.Sprintf("booking compensation failed after %d attempts: user %d still owed %d points", refundRetries, userID, amount))
}

func (s *appointmentService) GetUserAppointments(userID int64) ([]models.Appointment, error) {
	appointments, err := s.apptRepo.GetAppointmentsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointments: %w", err)
	}
	return appointments, nil
}

func (s *appointmentService) GetAppointments(filters models.AppointmentFilters) ([]models.Appointment, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 50
	}
	appointments, totalCount, err := s.apptRepo.GetAppointments(filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get appointments: %w", err)
	}
	return appointments, totalCount, nil
}

func (s *appointmentService) GetAvailability(dateStr string) (*DayAvailability, error) {
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"date": "must be a date in YYYY-MM-DD format"}}
	}
	available, err := s.slots.ListAvailableSlots(date)
	if err != nil {
		return nil, err
	}
	return &DayAvailability{Date: dateStr, AvailableSlots: available}, nil
}

func (s *appointmentService) CancelAppointment(appointmentID, callerID int64, asAdmin bool, reason *string) (*CancelAppointmentResult, error) {
	var result *CancelAppointmentResult
	err := s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		appt, err := s.apptRepo.GetAppointmentForUpdate(tx, appointmentID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrAppointmentNotFound
			}
			return fmt.Errorf("failed to load appointment for cancellation: %w", err)
		}

		if !asAdmin && appt.UserID != callerID {
			return ErrNotAppointmentOwner
		}
		switch appt.Status {
		case models.AppointmentStatusCancelled:
			return ErrAlreadyCancelled
		case models.AppointmentStatusCompleted:
			return fmt.Errorf("%w: completed appointments cannot be cancelled", ErrInvalidTransition)
		}

		if err := s.apptRepo.CancelAppointment(tx, appointmentID, reason, callerID); err != nil {
			return fmt.Errorf("failed to cancel appointment %d: %w", appointmentID, err)
		}

		refunded := 0
		if appt.Price > 0 {
			var performedBy *int64
			if asAdmin {
				performedBy = &callerID
			}
			if _, err := s.ledger.MutateInTx(tx, appt.UserID, models.PointsOpAdd, appt.Price, reasonCancellationRefund, performedBy); err != nil {
				return fmt.Errorf("failed to refund appointment %d: %w", appointmentID, err)
			}
			refunded = appt.Price
		}

		appt.Status = models.AppointmentStatusCancelled
		appt.CancellationReason = reason
		appt.CancelledBy = &callerID
		result = &CancelAppointmentResult{Appointment: appt, RefundedPoints: refunded}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// forwardTransitions is the legal non-cancellation progression.
var forwardTransitions = map[string]string{
	models.AppointmentStatusPending:    models.AppointmentStatusConfirmed,
	models.AppointmentStatusConfirmed:  models.AppointmentStatusInProgress,
	models.AppointmentStatusInProgress: models.AppointmentStatusCompleted,
}

func (s *appointmentService) UpdateStatus(appointmentID int64, newStatus string) (*models.Appointment, error) {
	if !models.IsValidAppointmentStatus(newStatus) {
		return nil, &ValidationError{Fields: map[string]string{"status": "is not a valid appointment status"}}
	}
	if newStatus == models.AppointmentStatusCancelled {
		return nil, fmt.Errorf("%w: cancellation must go through the cancel endpoint", ErrInvalidTransition)
	}

	var updated *models.Appointment
	err := s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		appt, err := s.apptRepo.GetAppointmentForUpdate(tx, appointmentID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrAppointmentNotFound
			}
			return fmt.Errorf("failed to load appointment for status update: %w", err)
		}

		if forwardTransitions[appt.Status] != newStatus {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, newStatus)
		}

		if err := s.apptRepo.UpdateStatus(tx, appointmentID, newStatus); err != nil {
			return fmt.Errorf("failed to update appointment %d status: %w", appointmentID, err)
		}
		appt.Status = newStatus
		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
