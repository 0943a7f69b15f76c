// Package adapter maps a persistence.Store onto the application.Store port.
package adapter

import (
	"context"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
)

// Store exposes a persistence.Store through application types.
type Store struct {
	repositories
	backend persistence.Store
}

// New wraps backend.
func New(backend persistence.Store) *Store {
	return &Store{repositories: repositories{repos: backend}, backend: backend}
}

// WithinTransaction implements application.Store.
func (s *Store) WithinTransaction(ctx context.Context, fn func(repos application.Repositories) error) error {
	return s.backend.WithinTransaction(ctx, func(repos persistence.Repositories) error {
		return fn(repositories{repos: repos})
	})
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// repositories adapts persistence.Repositories, transactional or not.
type repositories struct {
	repos persistence.Repositories
}

func (r repositories) CreateRoom(ctx context.Context, room application.Room) error {
	return r.repos.CreateRoom(ctx, toPersistenceRoom(room))
}

func (r repositories) UpdateRoom(ctx context.Context, room application.Room) error {
	return r.repos.UpdateRoom(ctx, toPersistenceRoom(room))
}

func (r repositories) GetRoom(ctx context.Context, id string) (application.Room, error) {
	model, err := r.repos.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(model), nil
}

func (r repositories) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := r.repos.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

func (r repositories) DeleteRoom(ctx context.Context, id string) error {
	return r.repos.DeleteRoom(ctx, id)
}

func (r repositories) CreateBooking(ctx context.Context, booking application.Booking) error {
	return r.repos.CreateBooking(ctx, toPersistenceBooking(booking))
}

func (r repositories) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	model, err := r.repos.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(model), nil
}

func (r repositories) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	models, err := r.repos.ListBookings(ctx, persistence.BookingFilter{UserID: filter.UserID, RoomID: filter.RoomID})
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (r repositories) ListOverlappingBookings(ctx context.Context, roomID string, start, end time.Time) ([]application.Booking, error) {
	models, err := r.repos.ListOverlappingBookings(ctx, roomID, start, end)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (r repositories) DeleteBooking(ctx context.Context, id string) error {
	return r.repos.DeleteBooking(ctx, id)
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:        model.ID,
		Name:      model.Name,
		Capacity:  model.Capacity,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  room.Capacity,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:        model.ID,
		RoomID:    model.RoomID,
		UserID:    model.UserID,
		Start:     model.Start,
		End:       model.End,
		CreatedAt: model.CreatedAt,
	}
}

func toApplicationBookings(models []persistence.Booking) []application.Booking {
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:        booking.ID,
		RoomID:    booking.RoomID,
		UserID:    booking.UserID,
		Start:     booking.Start,
		End:       booking.End,
		CreatedAt: booking.CreatedAt,
	}
}

var (
	_ application.Store        = (*Store)(nil)
	_ application.Repositories = repositories{}
)
