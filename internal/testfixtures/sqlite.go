package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Storage  *sqlite.Storage
	Rooms    persistence.RoomRepository
	Bookings persistence.BookingRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	storage, err := sqlite.Open(sqlite.DefaultConfig(path), DiscardLogger())
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:  storage,
		Rooms:    storage,
		Bookings: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// StoreBackend names a persistence.Store implementation for contract tests.
type StoreBackend struct {
	Name string
	Open func(tb testing.TB) persistence.Store
}

// StoreBackends returns every store implementation, freshly opened per call to Open.
func StoreBackends() []StoreBackend {
	return []StoreBackend{
		{
			Name: "memory",
			Open: func(testing.TB) persistence.Store { return memory.Open() },
		},
		{
			Name: "sqlite",
			Open: func(tb testing.TB) persistence.Store { return NewSQLiteHarness(tb).Storage },
		},
	}
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
