package application

import (
	"context"
	"time"
)

// Repositories captures the persistence operations needed by the services.
// Implementations return persistence sentinel errors, which the services map.
type Repositories interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error

	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	ListOverlappingBookings(ctx context.Context, roomID string, start, end time.Time) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// Store adds serialized transactions to Repositories. A check made inside fn
// still holds when fn writes.
type Store interface {
	Repositories
	WithinTransaction(ctx context.Context, fn func(repos Repositories) error) error
}
