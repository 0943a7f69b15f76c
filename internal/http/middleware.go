package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
)

// Guard authorizes a request from its Authorization header. *authz.Guard
// satisfies it.
type Guard interface {
	RequireAuthenticated(ctx context.Context, header string) (application.Principal, error)
	RequireRole(ctx context.Context, header string, allowed ...application.Role) (application.Principal, error)
}

// RequestObserver records finished requests. *metrics.Collectors satisfies it.
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// RequireAuthenticated rejects requests without a valid bearer token and
// stores the principal in the request context.
func RequireAuthenticated(guard Guard, logger *slog.Logger) func(http.Handler) http.Handler {
	return requirePrincipal(logger, func(r *http.Request) (application.Principal, error) {
		if guard == nil {
			return application.Principal{}, application.ErrUnauthenticated
		}
		return guard.RequireAuthenticated(r.Context(), r.Header.Get("Authorization"))
	})
}

// RequireRole is RequireAuthenticated plus a role check.
func RequireRole(guard Guard, logger *slog.Logger, allowed ...application.Role) func(http.Handler) http.Handler {
	return requirePrincipal(logger, func(r *http.Request) (application.Principal, error) {
		if guard == nil {
			return application.Principal{}, application.ErrUnauthenticated
		}
		return guard.RequireRole(r.Context(), r.Header.Get("Authorization"), allowed...)
	})
}

func requirePrincipal(logger *slog.Logger, authorize func(*http.Request) (application.Principal, error)) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authorize(r)
			if err != nil {
				responder.loggerFor(r.Context()).InfoContext(r.Context(), "request rejected by guard",
					"error", err,
					"error_kind", application.ErrorKind(err),
				)
				responder.handleServiceError(r.Context(), w, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger carrying the chi request id
// and logs each request on completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	base = defaultLogger(base)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// Metrics records every request under its chi route pattern.
func Metrics(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observer.ObserveHTTPRequest(r.Method, route, status, time.Since(start))
		})
	}
}
