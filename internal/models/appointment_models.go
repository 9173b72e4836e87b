package models

import "time"

// Appointment statuses. pending, confirmed and in_progress count as active
// (they hold a slot and count toward the per-user booking cap); completed
// and cancelled are terminal.
const (
	AppointmentStatusPending    = "pending"
	AppointmentStatusConfirmed  = "confirmed"
	AppointmentStatusInProgress = "in_progress"
	AppointmentStatusCompleted  = "completed"
	AppointmentStatusCancelled  = "cancelled"
)

// Service types offered by the mobile crew.
const (
	ServiceTypeBasic  = "basic"
	ServiceTypeDeluxe = "deluxe"
)

// IsValidAppointmentStatus checks if the provided status string is a valid appointment status.
func IsValidAppointmentStatus(status string) bool {
	switch status {
	case AppointmentStatusPending,
		AppointmentStatusConfirmed,
		AppointmentStatusInProgress,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidServiceType checks if the provided service type is offered.
func IsValidServiceType(serviceType string) bool {
	return serviceType == ServiceTypeBasic || serviceType == ServiceTypeDeluxe
}

// ActiveAppointmentStatuses lists the statuses that occupy a slot and count
// toward the booking cap.
var ActiveAppointmentStatuses = []string{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusInProgress,
}

// Appointment represents a booked cleaning visit. AppointmentDate carries
// the calendar date; StartTime/EndTime are the absolute instants derived
// from the date and the reserved time slot.
type Appointment struct {
	ID                 int64     `json:"id" db:"id"`
	UserID             int64     `json:"userId" db:"user_id"`
	ServiceType        string    `json:"serviceType" db:"service_type"`
	AppointmentDate    time.Time `json:"appointmentDate" db:"appointment_date"`
	TimeSlot           string    `json:"timeSlot" db:"time_slot"`
	StartTime          time.Time `json:"startTime" db:"start_time"`
	EndTime            time.Time `json:"endTime" db:"end_time"`
	Location           string    `json:"location" db:"location"`
	Status             string    `json:"status" db:"status"`
	Price              int       `json:"price" db:"price"`
	Notes              *string   `json:"notes,omitempty" db:"notes"`
	CancellationReason *string   `json:"cancellationReason,omitempty" db:"cancellation_reason"`
	CancelledBy        *int64    `json:"cancelledBy,omitempty" db:"cancelled_by"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
	User               *User     `json:"user,omitempty"` // populated on admin listings
}

// AppointmentFilters defines the available filters for querying appointments.
type AppointmentFilters struct {
	UserID      *int64
	Status      *string
	ServiceType *string
	Date        *time.Time // exact calendar day
	WeekOf      *time.Time // any day inside the wanted Monday-Sunday week
	Page        int
	PageSize    int
}
