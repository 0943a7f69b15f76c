// Package sqlite implements persistence.Store on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage is a SQLite-backed persistence.Store.
type Storage struct {
	*RoomRepository
	*BookingRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database described by cfg. Call Migrate before use.
func Open(cfg Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(cfg)
	if err != nil {
		return nil, err
	}

	db := pool.DB()
	return &Storage{
		RoomRepository:    NewRoomRepository(db),
		BookingRepository: NewBookingRepository(db),
		pool:              pool,
		logger:            logger.With("component", "sqlite"),
	}, nil
}

// Migrate applies the embedded schema migrations that are still pending.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.migrations().RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.Status, error) {
	return s.migrations().Status(ctx)
}

func (s *Storage) migrations() *migration.Manager {
	return migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
}

// WithinTransaction runs fn with repositories bound to one BEGIN IMMEDIATE
// transaction, so concurrent writers queue on the database lock.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(repos persistence.Repositories) error) error {
	return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(txRepositories{
			RoomRepository:    NewRoomRepository(tx),
			BookingRepository: NewBookingRepository(tx),
		})
	})
}

// Ping checks database connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

type txRepositories struct {
	*RoomRepository
	*BookingRepository
}

var _ persistence.Store = (*Storage)(nil)
