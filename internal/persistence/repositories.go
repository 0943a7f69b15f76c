package persistence

import (
	"context"
	"time"
)

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	// DeleteRoom removes the room together with all of its bookings.
	DeleteRoom(ctx context.Context, id string) error
}

// BookingFilter narrows booking queries. Empty fields match everything.
type BookingFilter struct {
	UserID string
	RoomID string
}

// BookingRepository stores room bookings. Listings are ordered by start time, then ID.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// ListOverlappingBookings returns bookings on the room whose interval intersects [start, end).
	ListOverlappingBookings(ctx context.Context, roomID string, start, end time.Time) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// Repositories groups the repositories that participate in a single transaction.
type Repositories interface {
	RoomRepository
	BookingRepository
}

// Store is a transactional backend for rooms and bookings.
//
// WithinTransaction runs fn with repositories bound to one transaction. Concurrent
// writers are serialized, so a check performed inside fn still holds when fn writes.
// The transaction commits when fn returns nil and rolls back otherwise.
type Store interface {
	Repositories
	WithinTransaction(ctx context.Context, fn func(repos Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
