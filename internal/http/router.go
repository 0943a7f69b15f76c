package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/example/room-booking/internal/application"
)

// RouterConfig wires handlers and cross cutting middleware. Nil handlers leave
// their routes unregistered.
type RouterConfig struct {
	Bookings *BookingHandler
	Rooms    *RoomHandler
	Health   *HealthHandler
	Guard    Guard
	// Metrics serves /metrics when set.
	Metrics  http.Handler
	Observer RequestObserver
	Logger   *slog.Logger

	RequestTimeout    time.Duration
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the chi router. The API routes are served both at the root
// and under /api.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(Metrics(cfg.Observer))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, codeNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, codeMethodNotAllowed, nil)
	})

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Live)
		r.Get("/readyz", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	api := func(r chi.Router) {
		if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
			r.Use(httprate.Limit(
				cfg.RateLimitRequests,
				cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
					responder.writeError(req.Context(), w, http.StatusTooManyRequests, codeRateLimited, nil)
				}),
			))
		}
		if cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		}
		registerAPI(r, cfg, logger)
	}
	r.Group(api)
	r.Route("/api", api)

	return r
}

func registerAPI(r chi.Router, cfg RouterConfig, logger *slog.Logger) {
	authenticated := RequireAuthenticated(cfg.Guard, logger)
	manager := RequireRole(cfg.Guard, logger, application.RoleManager)

	if cfg.Bookings != nil {
		r.Route("/bookings", func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/", cfg.Bookings.List)
			r.Post("/", cfg.Bookings.Create)
			r.Delete("/{id}", cfg.Bookings.Delete)
		})
	}

	if cfg.Rooms != nil {
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", cfg.Rooms.List)
			r.Get("/{id}", cfg.Rooms.Get)
			r.With(manager).Post("/", cfg.Rooms.Create)
			r.With(manager).Patch("/{id}", cfg.Rooms.Update)
			r.With(manager).Delete("/{id}", cfg.Rooms.Delete)
		})
	}
}
