package events

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/example/room-booking/internal/application"
)

// Payload is the JSON body of every published message.
type Payload struct {
	Type       string          `json:"type"`
	SubjectID  string          `json:"subjectId"`
	ActorID    string          `json:"actorId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Booking    *BookingPayload `json:"booking,omitempty"`
	Room       *RoomPayload    `json:"room,omitempty"`
}

// BookingPayload mirrors the booking resource.
type BookingPayload struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// RoomPayload mirrors the room resource without its bookings.
type RoomPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func newPayload(event application.ChangeEvent) Payload {
	p := Payload{
		Type:       string(event.Type),
		SubjectID:  event.SubjectID,
		ActorID:    event.ActorID,
		OccurredAt: event.OccurredAt.UTC(),
	}
	if b := event.Booking; b != nil {
		p.Booking = &BookingPayload{
			ID:        b.ID,
			RoomID:    b.RoomID,
			UserID:    b.UserID,
			StartTime: b.Start.UTC(),
			EndTime:   b.End.UTC(),
		}
	}
	if r := event.Room; r != nil {
		p.Room = &RoomPayload{ID: r.ID, Name: r.Name, Capacity: r.Capacity}
	}
	return p
}

// DecodePayload parses a message body produced by Publisher.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	err := json.Unmarshal(data, &p)
	return p, err
}
