package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	db dbtx
}

// NewBookingRepository creates a booking repository bound to db.
func NewBookingRepository(db dbtx) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, room_id, user_id, start_time, end_time, created_at`

// CreateBooking inserts a booking. The bookings_no_overlap trigger rejects
// intervals that intersect an existing booking on the same room.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.RoomID,
		booking.UserID,
		toUnixNano(booking.Start),
		toUnixNano(booking.End),
		toUnixNano(booking.CreatedAt),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by start time, then ID.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_time ASC, id ASC`

	return r.query(ctx, query, args...)
}

// ListOverlappingBookings returns bookings on roomID that intersect [start, end).
func (r *BookingRepository) ListOverlappingBookings(ctx context.Context, roomID string, start, end time.Time) ([]persistence.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE room_id = ? AND start_time < ? AND end_time > ?
		 ORDER BY start_time ASC, id ASC`,
		roomID, toUnixNano(end), toUnixNano(start),
	)
}

// DeleteBooking removes a booking by ID.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

func (r *BookingRepository) query(ctx context.Context, query string, args ...any) ([]persistence.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking               persistence.Booking
		start, end, createdAt int64
	)
	if err := row.Scan(&booking.ID, &booking.RoomID, &booking.UserID, &start, &end, &createdAt); err != nil {
		return persistence.Booking{}, err
	}
	booking.Start = fromUnixNano(start)
	booking.End = fromUnixNano(end)
	booking.CreatedAt = fromUnixNano(createdAt)
	return booking, nil
}

var _ persistence.BookingRepository = (*BookingRepository)(nil)
