package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/room-booking/internal/application"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	DeleteBooking(ctx context.Context, params application.DeleteBookingParams) (application.DeleteResult, error)
	ListBookings(ctx context.Context, principal application.Principal) ([]application.Booking, error)
}

// AdmissionObserver records booking admission outcomes. *metrics.Collectors
// satisfies it.
type AdmissionObserver interface {
	ObserveAdmission(outcome string)
}

// BookingHandler serves /bookings.
type BookingHandler struct {
	service   bookingService
	observer  AdmissionObserver
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler builds a handler. observer may be nil.
func NewBookingHandler(service bookingService, observer AdmissionObserver, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, observer: observer, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// List returns the bookings visible to the caller.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	bookings, err := h.service.ListBookings(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(bookings)).DebugContext(r.Context(), "bookings listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTOs(bookings))
}

// Create admits a new booking for the caller.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").InfoContext(r.Context(), "failed to decode booking request", "error", err)
		h.observe("bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", req.RoomID)

	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	h.observe(application.ErrorKind(err))
	if err != nil {
		logger.InfoContext(r.Context(), "booking rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID).InfoContext(r.Context(), "booking created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBookingDTO(booking))
}

// Delete removes a booking subject to ownership rules.
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "id"))
	if bookingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errInvalidBooking)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "booking_id", bookingID)

	result, err := h.service.DeleteBooking(r.Context(), application.DeleteBookingParams{
		Principal: principal,
		BookingID: bookingID,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "booking delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDeleteResponse(result))
}

func (h *BookingHandler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveAdmission(outcome)
	}
}

type bookingRequest struct {
	RoomID    string `json:"roomId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (r bookingRequest) toInput() application.CreateBookingInput {
	return application.CreateBookingInput{
		RoomID:    strings.TrimSpace(r.RoomID),
		StartTime: strings.TrimSpace(r.StartTime),
		EndTime:   strings.TrimSpace(r.EndTime),
	}
}

type bookingDTO struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"roomId"`
	UserID    string          `json:"userId"`
	StartTime string          `json:"startTime"`
	EndTime   string          `json:"endTime"`
	CreatedAt string          `json:"createdAt"`
	Room      *roomSummaryDTO `json:"room,omitempty"`
}

type roomSummaryDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	dto := bookingDTO{
		ID:        booking.ID,
		RoomID:    booking.RoomID,
		UserID:    booking.UserID,
		StartTime: formatTime(booking.Start),
		EndTime:   formatTime(booking.End),
		CreatedAt: formatTime(booking.CreatedAt),
	}
	if booking.Room != nil {
		dto.Room = &roomSummaryDTO{
			ID:       booking.Room.ID,
			Name:     booking.Room.Name,
			Capacity: booking.Room.Capacity,
		}
	}
	return dto
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
