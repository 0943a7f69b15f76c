package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// fakeStore is a minimal Store used by the service unit tests. Transactions are
// serialized and discarded on error.
type fakeStore struct {
	mu       sync.Mutex
	rooms    map[string]Room
	bookings map[string]Booking

	failWith error
	// skipOverlapQuery hides existing bookings from ListOverlappingBookings.
	skipOverlapQuery bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: map[string]Room{}, bookings: map[string]Booking{}}
}

func (f *fakeStore) WithinTransaction(ctx context.Context, fn func(repos Repositories) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	working := &fakeStore{
		rooms:            make(map[string]Room, len(f.rooms)),
		bookings:         make(map[string]Booking, len(f.bookings)),
		failWith:         f.failWith,
		skipOverlapQuery: f.skipOverlapQuery,
	}
	for k, v := range f.rooms {
		working.rooms[k] = v
	}
	for k, v := range f.bookings {
		working.bookings[k] = v
	}
	if err := fn(working); err != nil {
		return err
	}
	f.rooms = working.rooms
	f.bookings = working.bookings
	return nil
}

func (f *fakeStore) CreateRoom(_ context.Context, room Room) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.rooms[room.ID]; ok {
		return persistence.ErrDuplicate
	}
	room.Bookings = nil
	f.rooms[room.ID] = room
	return nil
}

func (f *fakeStore) UpdateRoom(_ context.Context, room Room) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.rooms[room.ID]; !ok {
		return persistence.ErrNotFound
	}
	room.Bookings = nil
	f.rooms[room.ID] = room
	return nil
}

func (f *fakeStore) GetRoom(_ context.Context, id string) (Room, error) {
	if f.failWith != nil {
		return Room{}, f.failWith
	}
	room, ok := f.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (f *fakeStore) ListRooms(context.Context) ([]Room, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) DeleteRoom(_ context.Context, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.rooms, id)
	for bid, b := range f.bookings {
		if b.RoomID == id {
			delete(f.bookings, bid)
		}
	}
	return nil
}

func (f *fakeStore) CreateBooking(_ context.Context, booking Booking) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.rooms[booking.RoomID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	for _, existing := range f.bookings {
		if existing.RoomID == booking.RoomID && existing.Start.Before(booking.End) && booking.Start.Before(existing.End) {
			return persistence.ErrOverlap
		}
	}
	booking.Room = nil
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, id string) (Booking, error) {
	if f.failWith != nil {
		return Booking{}, f.failWith
	}
	booking, ok := f.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

func (f *fakeStore) ListBookings(_ context.Context, filter BookingFilter) ([]Booking, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	// Reverse ID order so the services' own ordering is exercised.
	out := make([]Booking, 0, len(f.bookings))
	for _, b := range f.bookings {
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.RoomID != "" && b.RoomID != filter.RoomID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) ListOverlappingBookings(_ context.Context, roomID string, start, end time.Time) ([]Booking, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.skipOverlapQuery {
		return nil, nil
	}
	var out []Booking
	for _, b := range f.bookings {
		if b.RoomID == roomID && b.Start.Before(end) && start.Before(b.End) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteBooking(_ context.Context, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.bookings, id)
	return nil
}

func (f *fakeStore) seedRoom(room Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = room
}

func (f *fakeStore) seedBooking(booking Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[booking.ID] = booking
}

type recordingSink struct {
	mu     sync.Mutex
	events []ChangeEvent
	err    error
}

func (r *recordingSink) Publish(_ context.Context, event ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var _ Store = (*fakeStore)(nil)
