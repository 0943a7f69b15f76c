package http

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/room-booking/internal/application"
)

const msgCapacityInteger = "capacity must be a positive integer"

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, params application.DeleteRoomParams) (application.DeleteResult, error)
	ListRooms(ctx context.Context) ([]application.Room, error)
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
}

// RoomHandler serves /rooms.
type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

// NewRoomHandler builds a handler for service.
func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

// List returns every room with its bookings.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "List")
	rooms, err := h.service.ListRooms(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).DebugContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRoomDTOs(rooms))
}

// Get returns one room with its bookings.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := strings.TrimSpace(chi.URLParam(r, "id"))
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errInvalidRoomID)
		return
	}

	logger := h.log(r.Context(), "Get", "room_id", roomID)
	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		logger.InfoContext(r.Context(), "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRoomDTO(room))
}

// Create adds a room. Managers only.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	input, ok := h.decodeRoomInput(w, r, "Create", principal)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRoomDTO(room))
}

// Update applies the supplied fields to a room. Managers only.
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := strings.TrimSpace(chi.URLParam(r, "id"))
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	input, ok := h.decodeRoomInput(w, r, "Update", principal)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", roomID)

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     input,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRoomDTO(room))
}

// Delete removes a room and its bookings. Managers only.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := strings.TrimSpace(chi.URLParam(r, "id"))
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "room_id", roomID)

	result, err := h.service.DeleteRoom(r.Context(), application.DeleteRoomParams{
		Principal: principal,
		RoomID:    roomID,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "room delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDeleteResponse(result))
}

// decodeRoomInput writes the error response itself and reports false when the
// body is unusable.
func (h *RoomHandler) decodeRoomInput(w http.ResponseWriter, r *http.Request, operation string, principal application.Principal) (application.RoomInput, bool) {
	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), operation, "principal_id", principal.UserID, "error_kind", "bad_request").InfoContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return application.RoomInput{}, false
	}

	input, ok := req.toInput()
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{
			ErrorCode: codeValidation,
			Message:   msgCapacityInteger,
			Errors:    map[string]string{"capacity": msgCapacityInteger},
		})
		return application.RoomInput{}, false
	}
	return input, true
}

type roomRequest struct {
	Name     *string  `json:"name"`
	Capacity *float64 `json:"capacity"`
}

// toInput reports false when capacity is not a whole number in int32 range.
func (r roomRequest) toInput() (application.RoomInput, bool) {
	input := application.RoomInput{Name: r.Name}
	if r.Capacity != nil {
		c := *r.Capacity
		if c != math.Trunc(c) || c > math.MaxInt32 || c < math.MinInt32 {
			return application.RoomInput{}, false
		}
		capacity := int(c)
		input.Capacity = &capacity
	}
	return input, true
}

type roomDTO struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Capacity  int                 `json:"capacity"`
	CreatedAt string              `json:"createdAt"`
	UpdatedAt string              `json:"updatedAt"`
	Bookings  []bookingSummaryDTO `json:"bookings"`
}

type bookingSummaryDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func toRoomDTO(room application.Room) roomDTO {
	bookings := make([]bookingSummaryDTO, 0, len(room.Bookings))
	for _, b := range room.Bookings {
		bookings = append(bookings, bookingSummaryDTO{
			ID:        b.ID,
			UserID:    b.UserID,
			StartTime: formatTime(b.Start),
			EndTime:   formatTime(b.End),
		})
	}
	return roomDTO{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  room.Capacity,
		CreatedAt: formatTime(room.CreatedAt),
		UpdatedAt: formatTime(room.UpdatedAt),
		Bookings:  bookings,
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
