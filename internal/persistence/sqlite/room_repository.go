package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	db dbtx
}

// NewRoomRepository creates a room repository bound to db, which may be a
// *sql.DB or a *sql.Tx.
func NewRoomRepository(db dbtx) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `id, name, capacity, created_at, updated_at`

// CreateRoom inserts a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || strings.TrimSpace(room.Name) == "" || room.Capacity < 1 {
		return persistence.ErrConstraintViolation
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (`+roomColumns+`) VALUES (?, ?, ?, ?, ?)`,
		room.ID,
		room.Name,
		room.Capacity,
		toUnixNano(room.CreatedAt),
		toUnixNano(room.UpdatedAt),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// UpdateRoom updates the name, capacity and updated_at of an existing room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrNotFound
	}
	if strings.TrimSpace(room.Name) == "" || room.Capacity < 1 {
		return persistence.ErrConstraintViolation
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET name = ?, capacity = ?, updated_at = ? WHERE id = ?`,
		room.Name,
		room.Capacity,
		toUnixNano(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name, case-insensitively, then ID.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM rooms ORDER BY name COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, mapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes a room. Its bookings go with it through ON DELETE CASCADE.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                 persistence.Room
		createdAt, updatedAt int64
	)
	if err := row.Scan(&room.ID, &room.Name, &room.Capacity, &createdAt, &updatedAt); err != nil {
		return persistence.Room{}, err
	}
	room.CreatedAt = fromUnixNano(createdAt)
	room.UpdatedAt = fromUnixNano(updatedAt)
	return room, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

var _ persistence.RoomRepository = (*RoomRepository)(nil)
