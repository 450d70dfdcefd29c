// Package slots is the appointment calendar. A booking holds one
// occupancy unit of a service's capacity for a time window; occupancy
// counts held and committed bookings, never released ones.
package slots

import (
	"errors"
	"time"
)

var (
	ErrSlotUnavailable = errors.New("slots: time slot unavailable")
	ErrServiceNotFound = errors.New("slots: service not found")
	ErrInvalidWindow   = errors.New("slots: window end must be after start")
)

type BookingStatus string

const (
	BookingHeld      BookingStatus = "HELD"
	BookingCommitted BookingStatus = "COMMITTED"
	BookingReleased  BookingStatus = "RELEASED"
)

type Booking struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"order_id"`
	ServiceID string        `json:"service_id"`
	UserID    string        `json:"user_id"`
	StartsAt  time.Time     `json:"starts_at"`
	EndsAt    time.Time     `json:"ends_at"`
	Status    BookingStatus `json:"status"`
}

// BusyWindow is the public view of an occupied slot, stripped of the
// owning user.
type BusyWindow struct {
	ServiceID string    `json:"service_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}
