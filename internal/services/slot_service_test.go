package services_test

import (
	"errors"
	"testing"
	"time"

	"cryoclean_backend/internal/config"
	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardGrid() config.SlotGridConfig {
	return config.SlotGridConfig{DayStart: "08:00", DayEnd: "16:00", WindowMinutes: 120}
}

func newTestSlotAllocator(t *testing.T, store *memStore) services.SlotAllocator {
	t.Helper()
	allocator, err := services.NewSlotAllocator(standardGrid(), &fakeAppointmentRepo{store: store})
	require.NoError(t, err)
	return allocator
}

func TestSlotGrid(t *testing.T) {
	allocator := newTestSlotAllocator(t, newMemStore())

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	grid := allocator.Grid(date)

	require.Len(t, grid, 4)
	assert.Equal(t, "08:00-10:00", grid[0].Label)
	assert.Equal(t, "10:00-12:00", grid[1].Label)
	assert.Equal(t, "12:00-14:00", grid[2].Label)
	assert.Equal(t, "14:00-16:00", grid[3].Label)

	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), grid[0].Start)
	assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), grid[0].End)
}

func TestListAvailableSlotsSkipsBookedWindows(t *testing.T) {
	store := newMemStore()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store.addAppointment(models.Appointment{
		UserID:          1,
		AppointmentDate: date,
		TimeSlot:        "10:00-12:00",
		Status:          models.AppointmentStatusConfirmed,
	})
	// Cancelled appointments release their window.
	store.addAppointment(models.Appointment{
		UserID:          2,
		AppointmentDate: date,
		TimeSlot:        "08:00-10:00",
		Status:          models.AppointmentStatusCancelled,
	})
	allocator := newTestSlotAllocator(t, store)

	available, err := allocator.ListAvailableSlots(date)
	require.NoError(t, err)

	labels := make([]string, len(available))
	for i, slot := range available {
		labels[i] = slot.Label
	}
	assert.Equal(t, []string{"08:00-10:00", "12:00-14:00", "14:00-16:00"}, labels)
}

func TestResolveKnownAndUnknownSlots(t *testing.T) {
	allocator := newTestSlotAllocator(t, newMemStore())
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	slot, err := allocator.Resolve(date, "12:00-14:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), slot.Start)

	_, err = allocator.Resolve(date, "07:00-09:00")
	assert.True(t, errors.Is(err, services.ErrUnknownSlot))
}

func TestFirstAvailable(t *testing.T) {
	store := newMemStore()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, label := range []string{"08:00-10:00", "10:00-12:00"} {
		store.addAppointment(models.Appointment{
			UserID:          1,
			AppointmentDate: date,
			TimeSlot:        label,
			Status:          models.AppointmentStatusConfirmed,
		})
	}
	allocator := newTestSlotAllocator(t, store)

	slot, err := allocator.FirstAvailable(date)
	require.NoError(t, err)
	assert.Equal(t, "12:00-14:00", slot.Label)
}

func TestFirstAvailableFullDay(t *testing.T) {
	store := newMemStore()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	allocator := newTestSlotAllocator(t, store)
	for _, slot := range allocator.Grid(date) {
		store.addAppointment(models.Appointment{
			UserID:          1,
			AppointmentDate: date,
			TimeSlot:        slot.Label,
			Status:          models.AppointmentStatusConfirmed,
		})
	}

	_, err := allocator.FirstAvailable(date)
	assert.True(t, errors.Is(err, services.ErrNoSlotsAvailable))
}

func TestNewSlotAllocatorRejectsBadGrids(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.SlotGridConfig
	}{
		{"unparsable start", config.SlotGridConfig{DayStart: "8am", DayEnd: "16:00", WindowMinutes: 120}},
		{"end before start", config.SlotGridConfig{DayStart: "16:00", DayEnd: "08:00", WindowMinutes: 120}},
		{"zero window", config.SlotGridConfig{DayStart: "08:00", DayEnd: "16:00", WindowMinutes: 0}},
		{"indivisible day", config.SlotGridConfig{DayStart: "08:00", DayEnd: "16:00", WindowMinutes: 90}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := services.NewSlotAllocator(tc.cfg, &fakeAppointmentRepo{store: newMemStore()})
			assert.Error(t, err)
		})
	}
}
