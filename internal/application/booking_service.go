package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

const (
	msgMissingBookingFields = "missing required fields"
	msgInvalidStartTime     = "invalid start time"
	msgInvalidEndTime       = "invalid end time"
	msgRoomDoesNotExist     = "room does not exist"
	msgRoomAlreadyBooked    = "room already booked for this period"
	msgBookingNotFound      = "booking not found"
	msgNotYourBooking       = "not your booking"
	msgPastBooking          = "cannot delete past bookings"
	msgBookingDeleted       = "Booking deleted"
)

var bookingFieldNames = map[string]string{
	"RoomID":    "roomId",
	"StartTime": "startTime",
	"EndTime":   "endTime",
}

// BookingService admits, lists and deletes bookings.
type BookingService struct {
	store       Store
	policy      Policy
	events      EventSink
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(store Store, policy Policy, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(store, policy, nil, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service that publishes change
// events to events, which may be nil, and logs through logger.
func NewBookingServiceWithLogger(store Store, policy Policy, events EventSink, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		store:       store,
		policy:      policyOrDefault(policy),
		events:      events,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateBooking validates the request and admits the booking when the room
// exists and the interval is free. Checks run in a fixed order and the first
// failure is returned.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("booking store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create booking", "booking created", "booking_id", booking.ID)
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	var interval scheduler.Interval
	interval, err = parseBookingInput(params.Input)
	if err != nil {
		return
	}

	candidate := Booking{
		ID:        s.idGenerator(),
		RoomID:    strings.TrimSpace(params.Input.RoomID),
		UserID:    params.Principal.UserID,
		Start:     interval.Start,
		End:       interval.End,
		CreatedAt: s.now().UTC(),
	}

	err = s.store.WithinTransaction(ctx, func(repos Repositories) error {
		room, err := repos.GetRoom(ctx, candidate.RoomID)
		if err != nil {
			if isNotFound(err) {
				return newValidationError(msgRoomDoesNotExist)
			}
			return err
		}

		overlapping, err := repos.ListOverlappingBookings(ctx, candidate.RoomID, candidate.Start, candidate.End)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return conflict(msgRoomAlreadyBooked)
		}

		if err := repos.CreateBooking(ctx, candidate); err != nil {
			return mapBookingRepoError(err)
		}

		summary := room.Summary()
		candidate.Room = &summary
		return nil
	})
	if err != nil {
		return
	}

	booking = candidate
	emitEvent(ctx, s.events, logger, ChangeEvent{
		Type:       EventBookingCreated,
		SubjectID:  booking.ID,
		ActorID:    params.Principal.UserID,
		OccurredAt: booking.CreatedAt,
		Booking:    &booking,
	})
	return
}

// parseBookingInput applies the request shape rules: required fields, RFC 3339
// timestamps, a positive duration and the maximum booking length.
func parseBookingInput(input CreateBookingInput) (scheduler.Interval, error) {
	input.RoomID = strings.TrimSpace(input.RoomID)
	input.StartTime = strings.TrimSpace(input.StartTime)
	input.EndTime = strings.TrimSpace(input.EndTime)

	if err := validatorInstance().Struct(input); err != nil {
		return scheduler.Interval{}, fieldErrors(err, msgMissingBookingFields, bookingFieldNames)
	}

	start, problem := parseInstant(input.StartTime)
	if problem != "" {
		vErr := newValidationError(msgInvalidStartTime)
		vErr.add("startTime", problem)
		return scheduler.Interval{}, vErr
	}
	end, problem := parseInstant(input.EndTime)
	if problem != "" {
		vErr := newValidationError(msgInvalidEndTime)
		vErr.add("endTime", problem)
		return scheduler.Interval{}, vErr
	}

	interval := scheduler.Interval{Start: start.UTC(), End: end.UTC()}
	if err := scheduler.ValidateWindow(interval, scheduler.MaxBookingDuration); err != nil {
		vErr := newValidationError(err.Error())
		vErr.add("endTime", err.Error())
		return scheduler.Interval{}, vErr
	}
	return interval, nil
}

// parseInstant returns the parsed timestamp, or a field message when value is
// not RFC 3339 or falls outside what the stores can represent.
func parseInstant(value string) (time.Time, string) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, "must be an RFC 3339 timestamp"
	}
	if !scheduler.InRange(t) {
		return time.Time{}, "must fall between 1677-09-21 and 2262-04-11"
	}
	return t, ""
}

// DeleteBooking removes a booking. Principals without the delete-any permission
// may remove only their own bookings that have not started yet.
func (s *BookingService) DeleteBooking(ctx context.Context, params DeleteBookingParams) (result DeleteResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("booking store not configured")
		return
	}

	logger := s.loggerWith(ctx, "DeleteBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete booking", "booking deleted")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	var deleted Booking
	err = s.store.WithinTransaction(ctx, func(repos Repositories) error {
		booking, err := repos.GetBooking(ctx, params.BookingID)
		if err != nil {
			if isNotFound(err) {
				return notFound(msgBookingNotFound)
			}
			return err
		}

		if !s.policy.Can(params.Principal.Role, PermissionDeleteAnyBooking) {
			if booking.UserID != params.Principal.UserID {
				return forbidden(msgNotYourBooking)
			}
			if booking.Start.Before(s.now()) {
				return forbidden(msgPastBooking)
			}
		}

		if err := repos.DeleteBooking(ctx, booking.ID); err != nil {
			if isNotFound(err) {
				return notFound(msgBookingNotFound)
			}
			return err
		}
		deleted = booking
		return nil
	})
	if err != nil {
		return
	}

	result = DeleteResult{Success: true, Message: msgBookingDeleted}
	emitEvent(ctx, s.events, logger, ChangeEvent{
		Type:       EventBookingDeleted,
		SubjectID:  deleted.ID,
		ActorID:    params.Principal.UserID,
		OccurredAt: s.now().UTC(),
		Booking:    &deleted,
	})
	return
}

// ListBookings returns every booking for principals allowed to read all of
// them and the principal's own bookings otherwise, ordered by start time.
func (s *BookingService) ListBookings(ctx context.Context, principal Principal) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.store == nil {
		return []Booking{}, nil
	}

	logger := s.loggerWith(ctx, "ListBookings",
		"principal_id", principal.UserID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to list bookings", "bookings listed", "result_count", len(bookings))
	}()

	if !principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	filter := BookingFilter{}
	if !s.policy.Can(principal.Role, PermissionReadAllBookings) {
		filter.UserID = principal.UserID
	}

	err = s.store.WithinTransaction(ctx, func(repos Repositories) error {
		found, err := repos.ListBookings(ctx, filter)
		if err != nil {
			return err
		}
		rooms, err := repos.ListRooms(ctx)
		if err != nil {
			return err
		}

		byID := make(map[string]RoomSummary, len(rooms))
		for _, room := range rooms {
			byID[room.ID] = room.Summary()
		}
		for i := range found {
			if summary, ok := byID[found[i].RoomID]; ok {
				found[i].Room = &summary
			}
		}
		bookings = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortBookings(bookings)
	return bookings, nil
}

func mapBookingRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrOverlap):
		return conflict(msgRoomAlreadyBooked)
	case errors.Is(err, persistence.ErrForeignKeyViolation), isNotFound(err):
		return newValidationError(msgRoomDoesNotExist)
	case errors.Is(err, persistence.ErrDuplicate):
		return conflict("booking already exists")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return newValidationError("booking violates store constraints")
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound)
}
