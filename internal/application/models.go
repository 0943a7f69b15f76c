package application

import "time"

// Role is the claim-provided role of a principal.
type Role string

const (
	// RoleEmployee may manage only their own future bookings.
	RoleEmployee Role = "employee"
	// RoleManager may manage rooms and every booking.
	RoleManager Role = "manager"
)

// Principal represents the authenticated user invoking a service method.
// Role may be empty or unknown; such principals are treated like employees.
type Principal struct {
	UserID string
	Role   Role
}

// Authenticated reports whether the principal carries a subject.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// RoomSummary is the room data embedded in booking responses.
type RoomSummary struct {
	ID       string
	Name     string
	Capacity int
}

// BookingSummary is the booking data embedded in room responses.
type BookingSummary struct {
	ID     string
	UserID string
	Start  time.Time
	End    time.Time
}

// Room represents a bookable meeting room.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
	// Bookings is populated by ListRooms and GetRoom, ordered by start time.
	Bookings []BookingSummary
}

// Summary returns the compact room representation used inside bookings.
func (r Room) Summary() RoomSummary {
	return RoomSummary{ID: r.ID, Name: r.Name, Capacity: r.Capacity}
}

// Booking is a reservation of a room over [Start, End).
type Booking struct {
	ID        string
	RoomID    string
	UserID    string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
	// Room is populated on bookings returned by the booking service.
	Room *RoomSummary
}

// Summary returns the compact booking representation used inside rooms.
func (b Booking) Summary() BookingSummary {
	return BookingSummary{ID: b.ID, UserID: b.UserID, Start: b.Start, End: b.End}
}

// CreateBookingInput carries the raw caller supplied booking fields. Times are
// RFC 3339 timestamps.
type CreateBookingInput struct {
	RoomID    string `validate:"required"`
	StartTime string `validate:"required"`
	EndTime   string `validate:"required"`
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     CreateBookingInput
}

// DeleteBookingParams wraps the data required to delete a booking.
type DeleteBookingParams struct {
	Principal Principal
	BookingID string
}

// RoomInput captures caller provided room fields. Nil fields were not supplied.
type RoomInput struct {
	Name     *string
	Capacity *int
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// DeleteRoomParams wraps the data required to delete a room.
type DeleteRoomParams struct {
	Principal Principal
	RoomID    string
}

// DeleteResult acknowledges a successful deletion.
type DeleteResult struct {
	Success bool
	Message string
}

// BookingFilter narrows booking queries issued to the store. Empty fields match everything.
type BookingFilter struct {
	UserID string
	RoomID string
}
