package persistence

import "time"

// Room represents a bookable meeting room.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking represents a reservation of a room over the half-open interval [Start, End).
type Booking struct {
	ID        string
	RoomID    string
	UserID    string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
}
