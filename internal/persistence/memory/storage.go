// Package memory provides a map-backed persistence.Store for tests and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// Storage keeps rooms and bookings in process memory.
type Storage struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	rooms    map[string]persistence.Room
	bookings map[string]persistence.Booking
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{state: newState()}
}

func newState() *state {
	return &state{
		rooms:    make(map[string]persistence.Room),
		bookings: make(map[string]persistence.Booking),
	}
}

func (st *state) clone() *state {
	return &state{rooms: maps.Clone(st.rooms), bookings: maps.Clone(st.bookings)}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// WithinTransaction runs fn against a private copy of the data while holding the
// write lock. The copy replaces the live data only when fn succeeds.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(repos persistence.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateRoom(ctx, room)
}

// UpdateRoom replaces an existing room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateRoom(ctx, room)
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetRoom(ctx, id)
}

// ListRooms returns all rooms ordered by name.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListRooms(ctx)
}

// DeleteRoom removes a room and its bookings.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteRoom(ctx, id)
}

// --- BookingRepository implementation ---

// CreateBooking stores a new booking.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateBooking(ctx, booking)
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetBooking(ctx, id)
}

// ListBookings returns bookings matching the filter ordered by start time.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListBookings(ctx, filter)
}

// ListOverlappingBookings returns bookings on the room that intersect [start, end).
func (s *Storage) ListOverlappingBookings(ctx context.Context, roomID string, start, end time.Time) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListOverlappingBookings(ctx, roomID, start, end)
}

// DeleteBooking removes a booking by ID.
func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteBooking(ctx, id)
}

// The state methods assume the caller holds the appropriate lock.

func (st *state) CreateRoom(_ context.Context, room persistence.Room) error {
	if room.ID == "" || strings.TrimSpace(room.Name) == "" || room.Capacity < 1 {
		return persistence.ErrConstraintViolation
	}
	if _, ok := st.rooms[room.ID]; ok {
		return fmt.Errorf("memory: room %s: %w", room.ID, persistence.ErrDuplicate)
	}
	st.rooms[room.ID] = room
	return nil
}

func (st *state) UpdateRoom(_ context.Context, room persistence.Room) error {
	if strings.TrimSpace(room.Name) == "" || room.Capacity < 1 {
		return persistence.ErrConstraintViolation
	}
	existing, ok := st.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	room.CreatedAt = existing.CreatedAt
	st.rooms[room.ID] = room
	return nil
}

func (st *state) GetRoom(_ context.Context, id string) (persistence.Room, error) {
	room, ok := st.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (st *state) ListRooms(context.Context) ([]persistence.Room, error) {
	rooms := make([]persistence.Room, 0, len(st.rooms))
	for _, room := range st.rooms {
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})

	return rooms, nil
}

func (st *state) DeleteRoom(_ context.Context, id string) error {
	if _, ok := st.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(st.rooms, id)
	for bookingID, booking := range st.bookings {
		if booking.RoomID == id {
			delete(st.bookings, bookingID)
		}
	}
	return nil
}

func (st *state) CreateBooking(_ context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	window := scheduler.Interval{Start: booking.Start, End: booking.End}
	if err := scheduler.ValidateWindow(window, 0); err != nil {
		return fmt.Errorf("memory: %v: %w", err, persistence.ErrConstraintViolation)
	}
	if _, ok := st.rooms[booking.RoomID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if _, ok := st.bookings[booking.ID]; ok {
		return fmt.Errorf("memory: booking %s: %w", booking.ID, persistence.ErrDuplicate)
	}
	if len(scheduler.DetectConflicts(st.reservations(), booking.RoomID, window)) > 0 {
		return persistence.ErrOverlap
	}
	st.bookings[booking.ID] = booking
	return nil
}

func (st *state) GetBooking(_ context.Context, id string) (persistence.Booking, error) {
	booking, ok := st.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

func (st *state) ListBookings(_ context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	bookings := make([]persistence.Booking, 0)
	for _, booking := range st.bookings {
		if filter.UserID != "" && booking.UserID != filter.UserID {
			continue
		}
		if filter.RoomID != "" && booking.RoomID != filter.RoomID {
			continue
		}
		bookings = append(bookings, booking)
	}
	sortBookings(bookings)
	return bookings, nil
}

func (st *state) ListOverlappingBookings(_ context.Context, roomID string, start, end time.Time) ([]persistence.Booking, error) {
	conflicts := scheduler.DetectConflicts(st.reservations(), roomID, scheduler.Interval{Start: start, End: end})
	bookings := make([]persistence.Booking, 0, len(conflicts))
	for _, c := range conflicts {
		bookings = append(bookings, st.bookings[c.ID])
	}
	return bookings, nil
}

func (st *state) DeleteBooking(_ context.Context, id string) error {
	if _, ok := st.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(st.bookings, id)
	return nil
}

func (st *state) reservations() []scheduler.Reservation {
	out := make([]scheduler.Reservation, 0, len(st.bookings))
	for _, b := range st.bookings {
		out = append(out, scheduler.Reservation{
			ID:       b.ID,
			RoomID:   b.RoomID,
			Interval: scheduler.Interval{Start: b.Start, End: b.End},
		})
	}
	return out
}

func sortBookings(bookings []persistence.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
}

var _ persistence.Store = (*Storage)(nil)
