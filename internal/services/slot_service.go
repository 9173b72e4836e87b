package services

import (
	"errors"
	"fmt"
	"time"

	"cryoclean_backend/internal/config"
	"cryoclean_backend/internal/repositories"
)

var (
	ErrNoSlotsAvailable = errors.New("no slots available on the requested date")
	ErrSlotTaken        = errors.New("the requested time slot is already reserved")
	ErrUnknownSlot      = errors.New("time slot is not on the service-day grid")
)

// TimeSlot is one bookable window of the service day.
type TimeSlot struct {
	Label string    `json:"label"` // "HH:MM-HH:MM"
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlotAllocator computes the slot grid for a date and which windows remain
// open. The actual reservation is the appointment insert hitting the partial
// unique index; the allocator only reads.
type SlotAllocator interface {
	// Grid returns every window of the service day for the given date.
	Grid(date time.Time) []TimeSlot

	// ListAvailableSlots returns the windows not occupied by a non-cancelled
	// appointment on the given date.
	ListAvailableSlots(date time.Time) ([]TimeSlot, error)

	// Resolve maps a slot label to its window on the given date, or
	// ErrUnknownSlot.
	Resolve(date time.Time, label string) (*TimeSlot, error)

	// FirstAvailable picks the earliest open window, or ErrNoSlotsAvailable.
	FirstAvailable(date time.Time) (*TimeSlot, error)
}

type slotAllocator struct {
	startMinute   int // minutes from midnight
	endMinute     int
	windowMinutes int
	apptRepo      repositories.AppointmentRepository
}

// NewSlotAllocator validates the grid configuration and creates an allocator.
func NewSlotAllocator(cfg config.SlotGridConfig, apptRepo repositories.AppointmentRepository) (SlotAllocator, error) {
	start, err := parseClock(cfg.DayStart)
	if err != nil {
		return nil, fmt.Errorf("invalid day start %q: %w", cfg.DayStart, err)
	}
	end, err := parseClock(cfg.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid day end %q: %w", cfg.DayEnd, err)
	}
	if cfg.WindowMinutes <= 0 {
		return nil, fmt.Errorf("window minutes must be positive, got %d", cfg.WindowMinutes)
	}
	if end <= start {
		return nil, fmt.Errorf("day end %q must be after day start %q", cfg.DayEnd, cfg.DayStart)
	}
	if (end-start)%cfg.WindowMinutes != 0 {
		return nil, fmt.Errorf("service day %q-%q is not divisible into %d-minute windows",
			cfg.DayStart, cfg.DayEnd, cfg.WindowMinutes)
	}
	return &slotAllocator{
		startMinute:   start,
		endMinute:     end,
		windowMinutes: cfg.WindowMinutes,
		apptRepo:      apptRepo,
	}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func clockLabel(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func (a *slotAllocator) Grid(date time.Time) []TimeSlot {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	var slots []TimeSlot
	for m := a.startMinute; m < a.endMinute; m += a.windowMinutes {
		slots = append(slots, TimeSlot{
			Label: clockLabel(m) + "-" + clockLabel(m+a.windowMinutes),
			Start: day.Add(time.Duration(m) * time.Minute),
			End:   day.Add(time.Duration(m+a.windowMinutes) * time.Minute),
		})
	}
	return slots
}

func (a *slotAllocator) ListAvailableSlots(date time.Time) ([]TimeSlot, error) {
	booked, err := a.apptRepo.ListBookedSlots(date)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked slots: %w", err)
	}
	taken := make(map[string]bool, len(booked))
	for _, label := range booked {
		taken[label] = true
	}

	available := []TimeSlot{}
	for _, slot := range a.Grid(date) {
		if !taken[slot.Label] {
			available = append(available, slot)
		}
	}
	return available, nil
}

func (a *slotAllocator) Resolve(date time.Time, label string) (*TimeSlot, error) {
	for _, slot := range a.Grid(date) {
		if slot.Label == label {
			return &slot, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, label)
}

func (a *slotAllocator) FirstAvailable(date time.Time) (*TimeSlot, error) {
	available, err := a.ListAvailableSlots(date)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, ErrNoSlotsAvailable
	}
	return &available[0], nil
}
