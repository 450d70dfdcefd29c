package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sunucuics/ics-commerce-core/internal/slots"
)

type memBooking struct {
	slots.Booking
	expiresAt time.Time
}

// Calendar is the in-memory slot calendar with per-service capacity.
type Calendar struct {
	mu       sync.Mutex
	capacity map[string]int
	bookings map[string]*memBooking // by booking id
}

func NewCalendar() *Calendar {
	return &Calendar{capacity: map[string]int{}, bookings: map[string]*memBooking{}}
}

func (c *Calendar) SetCapacity(serviceID string, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity[serviceID] = capacity
}

func (c *Calendar) Book(ctx context.Context, orderID, userID, serviceID string, start, end time.Time, holdFor time.Duration) (slots.Booking, error) {
	if !end.After(start) {
		return slots.Booking{}, slots.ErrInvalidWindow
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	capacity, ok := c.capacity[serviceID]
	if !ok {
		return slots.Booking{}, slots.ErrServiceNotFound
	}
	occupancy := 0
	for _, b := range c.bookings {
		if b.ServiceID == serviceID && b.Status != slots.BookingReleased &&
			b.StartsAt.Before(end) && b.EndsAt.After(start) {
			occupancy++
		}
	}
	if occupancy >= capacity {
		return slots.Booking{}, slots.ErrSlotUnavailable
	}

	b := &memBooking{
		Booking: slots.Booking{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ServiceID: serviceID,
			UserID:    userID,
			StartsAt:  start.UTC(),
			EndsAt:    end.UTC(),
			Status:    slots.BookingHeld,
		},
		expiresAt: time.Now().UTC().Add(holdFor),
	}
	c.bookings[b.ID] = b
	return b.Booking, nil
}

func (c *Calendar) Commit(ctx context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.bookings {
		if b.OrderID == orderID && b.Status == slots.BookingHeld {
			b.Status = slots.BookingCommitted
		}
	}
	return nil
}

func (c *Calendar) Cancel(ctx context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.bookings {
		if b.OrderID == orderID && b.Status != slots.BookingReleased {
			b.Status = slots.BookingReleased
		}
	}
	return nil
}

func (c *Calendar) ReleaseHeld(ctx context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.bookings {
		if b.OrderID == orderID && b.Status == slots.BookingHeld {
			b.Status = slots.BookingReleased
		}
	}
	return nil
}

func (c *Calendar) ExpiredOrders(ctx context.Context, now time.Time, limit int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, b := range c.bookings {
		if b.Status == slots.BookingHeld && b.expiresAt.Before(now) && !seen[b.OrderID] {
			seen[b.OrderID] = true
			out = append(out, b.OrderID)
			if len(out) == limit {
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (c *Calendar) BookingsFor(orderID string) []slots.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []slots.Booking
	for _, b := range c.bookings {
		if b.OrderID == orderID {
			out = append(out, b.Booking)
		}
	}
	return out
}
