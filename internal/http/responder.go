package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/example/room-booking/internal/application"
)

const (
	codeBadRequest       = "BAD_REQUEST"
	codeValidation       = "VALIDATION_FAILED"
	codeUnauthenticated  = "UNAUTHENTICATED"
	codeForbidden        = "FORBIDDEN"
	codeNotFound         = "NOT_FOUND"
	codeConflict         = "CONFLICT"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeRateLimited      = "RATE_LIMITED"
	codeInternal         = "INTERNAL"
)

var (
	errBadRequestBody = errors.New("invalid request body")
	errInvalidRoomID  = errors.New("invalid room id")
	errInvalidBooking = errors.New("invalid booking id")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError maps the application error taxonomy to a status code.
// Unexpected errors are logged and never shown to the caller.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: "internal server error"})
		return
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: codeValidation,
			Message:   vErr.Error(),
			Errors:    vErr.FieldErrors,
		})
	case errors.Is(err, application.ErrUnauthenticated):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: codeUnauthenticated,
			Message:   reasonOr(err, "authentication required"),
		})
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: codeForbidden,
			Message:   reasonOr(err, "insufficient permissions"),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: codeNotFound,
			Message:   reasonOr(err, "resource not found"),
		})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: codeConflict,
			Message:   reasonOr(err, "conflict"),
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: codeInternal,
			Message:   "internal server error",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func reasonOr(err error, fallback string) string {
	if reason := application.Reason(err); reason != "" {
		return reason
	}
	return fallback
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadRequestBody
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return nil
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func toDeleteResponse(result application.DeleteResult) deleteResponse {
	return deleteResponse{Success: result.Success, Message: result.Message}
}
