package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/authz"
	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/events"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/metrics"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/adapter"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "booking: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	slog.SetDefault(logger)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to release resources", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
		Handler:           app.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}
	return serve(ctx, server, ln, cfg.Server.ShutdownTimeout, logger)
}

// app holds the wired HTTP handler and everything that must be closed on exit.
type app struct {
	handler http.Handler
	closers []func() error
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	backend, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	store := adapter.New(backend)
	a.closers = append(a.closers, store.Close)

	verifier, err := auth.NewVerifier(auth.Settings{
		Mode:          cfg.Auth.Mode,
		Secret:        cfg.Auth.Secret,
		PublicKeyPath: cfg.Auth.PublicKeyPath,
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
		Leeway:        cfg.Auth.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("configure token verification: %w", err)
	}
	if cfg.Auth.Mode == auth.ModeDecode {
		logger.Warn("bearer tokens are decoded without signature verification")
	}

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{
		ModelPath:  cfg.Authz.ModelPath,
		PolicyPath: cfg.Authz.PolicyPath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("load access policy: %w", err)
	}

	collectors := metrics.New()

	var sink application.EventSink
	publisher, err := events.Open(events.Config{
		Backend:     cfg.Events.Backend,
		NATSURL:     cfg.Events.NATSURL,
		TopicPrefix: cfg.Events.TopicPrefix,
	}, logger, collectors)
	if err != nil {
		return nil, fmt.Errorf("open event backend: %w", err)
	}
	if publisher != nil {
		sink = publisher
		a.closers = append(a.closers, publisher.Close)
	}

	idGenerator := uuid.NewString
	now := time.Now

	bookingService := application.NewBookingServiceWithLogger(store, enforcer, sink, idGenerator, now, logger)
	roomService := application.NewRoomServiceWithLogger(store, enforcer, sink, idGenerator, now, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Bookings: httptransport.NewBookingHandler(bookingService, collectors, logger),
		Rooms:    httptransport.NewRoomHandler(roomService, logger),
		Health:   httptransport.NewHealthHandler(store, logger),
		Guard:    authz.NewGuard(auth.NewReader(verifier)),
		Metrics:  collectors.Handler(),
		Observer: collectors,
		Logger:   logger,

		RequestTimeout:    cfg.Server.RequestTimeout,
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.Open(), nil
	case "sqlite":
		sqlCfg := sqlite.DefaultConfig(cfg.SQLitePath)
		if cfg.BusyTimeout > 0 {
			sqlCfg.BusyTimeout = cfg.BusyTimeout
		}
		storage, err := sqlite.Open(sqlCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// serve runs server on ln until ctx is cancelled, then drains in-flight
// requests for at most shutdownTimeout.
func serve(ctx context.Context, server *http.Server, ln net.Listener, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("booking API listening", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
