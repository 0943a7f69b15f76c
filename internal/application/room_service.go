package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

const (
	msgRoomFieldsRequired = "name and capacity are required"
	msgNameRequired       = "name is required"
	msgCapacityPositive   = "capacity must be a positive integer"
	msgUpdateNeedsField   = "at least one field (name or capacity) is required"
	msgRoomNotFound       = "room not found"
	msgRoomDeleted        = "Room deleted"
	msgInsufficientRole   = "insufficient permissions"
)

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	store       Store
	policy      Policy
	events      EventSink
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(store Store, policy Policy, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(store, policy, nil, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with an event sink, which
// may be nil, and a specified logger.
func NewRoomServiceWithLogger(store Store, policy Policy, events EventSink, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{
		store:       store,
		policy:      policyOrDefault(policy),
		events:      events,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

func (s *RoomService) authorizeWrite(principal Principal) error {
	if !principal.Authenticated() {
		return ErrUnauthenticated
	}
	if !s.policy.Can(principal.Role, PermissionWriteRooms) {
		return forbidden(msgInsufficientRole)
	}
	return nil
}

// CreateRoom validates input and persists a new room for managers.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("room store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create room", "room created", "room_id", room.ID)
	}()

	if err = s.authorizeWrite(params.Principal); err != nil {
		return
	}

	vErr := validateNewRoom(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	candidate := Room{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(*params.Input.Name),
		Capacity:  *params.Input.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
		Bookings:  []BookingSummary{},
	}

	if err = s.store.CreateRoom(ctx, candidate); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room = candidate
	emitEvent(ctx, s.events, logger, ChangeEvent{
		Type:       EventRoomCreated,
		SubjectID:  room.ID,
		ActorID:    params.Principal.UserID,
		OccurredAt: now,
		Room:       &room,
	})
	return
}

// UpdateRoom applies the supplied fields to an existing room for managers.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("room store not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update room", "room updated")
	}()

	if err = s.authorizeWrite(params.Principal); err != nil {
		return
	}

	vErr := validateRoomPatch(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.store.WithinTransaction(ctx, func(repos Repositories) error {
		existing, err := repos.GetRoom(ctx, params.RoomID)
		if err != nil {
			return mapRoomRepoError(err)
		}

		updated := existing
		if params.Input.Name != nil {
			updated.Name = strings.TrimSpace(*params.Input.Name)
		}
		if params.Input.Capacity != nil {
			updated.Capacity = *params.Input.Capacity
		}
		updated.UpdatedAt = s.now().UTC()

		if err := repos.UpdateRoom(ctx, updated); err != nil {
			return mapRoomRepoError(err)
		}
		room = updated
		return nil
	})
	if err != nil {
		room = Room{}
		return
	}

	emitEvent(ctx, s.events, logger, ChangeEvent{
		Type:       EventRoomUpdated,
		SubjectID:  room.ID,
		ActorID:    params.Principal.UserID,
		OccurredAt: room.UpdatedAt,
		Room:       &room,
	})
	return
}

// DeleteRoom removes an existing room, and with it every booking of the room.
func (s *RoomService) DeleteRoom(ctx context.Context, params DeleteRoomParams) (result DeleteResult, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("room store not configured")
		return
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete room", "room deleted")
	}()

	if err = s.authorizeWrite(params.Principal); err != nil {
		return
	}

	var deleted Room
	err = s.store.WithinTransaction(ctx, func(repos Repositories) error {
		existing, err := repos.GetRoom(ctx, params.RoomID)
		if err != nil {
			return mapRoomRepoError(err)
		}
		if err := repos.DeleteRoom(ctx, existing.ID); err != nil {
			return mapRoomRepoError(err)
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return
	}

	result = DeleteResult{Success: true, Message: msgRoomDeleted}
	emitEvent(ctx, s.events, logger, ChangeEvent{
		Type:       EventRoomDeleted,
		SubjectID:  deleted.ID,
		ActorID:    params.Principal.UserID,
		OccurredAt: s.now().UTC(),
		Room:       &deleted,
	})
	return
}

// ListRooms returns every room ordered by name with its bookings ordered by start time.
func (s *RoomService) ListRooms(ctx context.Context) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.store == nil {
		return []Room{}, nil
	}

	logger := s.loggerWith(ctx, "ListRooms")
	defer func() {
		logOutcome(ctx, logger, err, "failed to list rooms", "rooms listed", "result_count", len(rooms))
	}()

	var bookings []Booking
	err = s.store.WithinTransaction(ctx, func(repos Repositories) error {
		found, err := repos.ListRooms(ctx)
		if err != nil {
			return err
		}
		bookings, err = repos.ListBookings(ctx, BookingFilter{})
		if err != nil {
			return err
		}
		rooms = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortBookings(bookings)

	byRoom := make(map[string][]BookingSummary, len(rooms))
	for _, booking := range bookings {
		byRoom[booking.RoomID] = append(byRoom[booking.RoomID], booking.Summary())
	}

	for i := range rooms {
		rooms[i].Bookings = byRoom[rooms[i].ID]
		if rooms[i].Bookings == nil {
			rooms[i].Bookings = []BookingSummary{}
		}
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return rooms, nil
}

// GetRoom returns a single room with its bookings ordered by start time.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.store == nil {
		err = notFound(msgRoomNotFound)
		return
	}

	logger := s.loggerWith(ctx, "GetRoom", "room_id", roomID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to get room", "room fetched")
	}()

	var bookings []Booking
	err = s.store.WithinTransaction(ctx, func(repos Repositories) error {
		found, err := repos.GetRoom(ctx, roomID)
		if err != nil {
			return mapRoomRepoError(err)
		}
		bookings, err = repos.ListBookings(ctx, BookingFilter{RoomID: found.ID})
		if err != nil {
			return err
		}
		room = found
		return nil
	})
	if err != nil {
		room = Room{}
		return
	}
	sortBookings(bookings)

	room.Bookings = make([]BookingSummary, 0, len(bookings))
	for _, booking := range bookings {
		room.Bookings = append(room.Bookings, booking.Summary())
	}
	return room, nil
}

func validateNewRoom(input RoomInput) *ValidationError {
	if input.Name == nil || input.Capacity == nil || strings.TrimSpace(*input.Name) == "" {
		vErr := newValidationError(msgRoomFieldsRequired)
		if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
			vErr.add("name", msgNameRequired)
		}
		if input.Capacity == nil {
			vErr.add("capacity", "capacity is required")
		}
		return vErr
	}
	return validateRoomPatch(input)
}

// validateRoomPatch checks the fields that are present. At least one must be.
func validateRoomPatch(input RoomInput) *ValidationError {
	if input.Name == nil && input.Capacity == nil {
		return newValidationError(msgUpdateNeedsField)
	}

	v := validatorInstance()
	vErr := &ValidationError{}
	if input.Name != nil {
		if err := v.Var(strings.TrimSpace(*input.Name), "required"); err != nil {
			vErr.Message = msgNameRequired
			vErr.add("name", msgNameRequired)
		}
	}
	if input.Capacity != nil {
		if err := v.Var(*input.Capacity, "gte=1"); err != nil {
			if vErr.Message == "" {
				vErr.Message = msgCapacityPositive
			}
			vErr.add("capacity", msgCapacityPositive)
		}
	}
	return vErr
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return notFound(msgRoomNotFound)
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return conflict("room already exists")
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := newValidationError("room violates store constraints")
		vErr.add("capacity", msgCapacityPositive)
		return vErr
	}
	return err
}

func sortBookings(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
}
