package application

import (
	"context"
	"log/slog"
	"time"
)

// EventType identifies a change notification.
type EventType string

const (
	EventBookingCreated EventType = "booking.created"
	EventBookingDeleted EventType = "booking.deleted"
	EventRoomCreated    EventType = "room.created"
	EventRoomUpdated    EventType = "room.updated"
	EventRoomDeleted    EventType = "room.deleted"
)

// ChangeEvent describes a committed change to rooms or bookings.
type ChangeEvent struct {
	Type       EventType
	SubjectID  string
	ActorID    string
	OccurredAt time.Time
	Booking    *Booking
	Room       *Room
}

// EventSink receives change events after the originating transaction commits.
type EventSink interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event ChangeEvent) error

// Publish implements EventSink.
func (f EventSinkFunc) Publish(ctx context.Context, event ChangeEvent) error {
	return f(ctx, event)
}

// emitEvent publishes event when a sink is configured. Delivery failures never
// fail the originating request.
func emitEvent(ctx context.Context, sink EventSink, logger *slog.Logger, event ChangeEvent) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish change event",
			"event_type", string(event.Type),
			"subject_id", event.SubjectID,
			"error", err,
		)
	}
}
