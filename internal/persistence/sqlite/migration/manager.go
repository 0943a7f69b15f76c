package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager constructs a Manager. A nil logger uses slog.Default.
func NewManager(scanner Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// RunMigrations executes all pending migrations sequentially. Execution stops
// at the first failure; migrations applied before it stay applied.
func (m *Manager) RunMigrations(ctx context.Context) error {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine migration status", "error", err)
		return err
	}

	m.logger.InfoContext(ctx, "schema version checked",
		"current_version", status.CurrentVersion,
		"pending_count", status.PendingCount,
	)
	if status.PendingCount == 0 {
		return nil
	}

	for i, migration := range status.PendingMigrations {
		logger := m.logger.With(
			"version", migration.Version,
			"description", migration.Description,
			"file", migration.FilePath,
		)
		logger.InfoContext(ctx, "applying migration", "position", i+1, "total", status.PendingCount)

		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		logger.InfoContext(ctx, "migration applied", "duration", elapsed)
	}

	m.logger.InfoContext(ctx, "migrations completed",
		"applied_count", status.PendingCount,
		"duration", time.Since(started),
	)
	return nil
}

// Status compares the available migrations with the applied ones.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		n, _ := strconv.Atoi(a.Version)
		appliedByVersion[n] = a
	}

	status := &Status{AppliedMigrations: applied}
	for _, migration := range available {
		n, _ := strconv.Atoi(migration.Version)
		if a, ok := appliedByVersion[n]; ok {
			if a.Checksum != "" && a.Checksum != migration.Checksum {
				return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
			}
			status.CurrentVersion = migration.Version
			continue
		}
		status.PendingMigrations = append(status.PendingMigrations, migration)
	}
	status.PendingCount = len(status.PendingMigrations)

	return status, nil
}

// validateSequence ensures the available versions are continuous and that every
// applied version still has a file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	availableVersions := make(map[int]bool, len(available))
	for i, migration := range available {
		n, err := strconv.Atoi(migration.Version)
		if err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "validate sequence",
				fmt.Errorf("%w: version '%s' is not numeric", ErrInvalidVersion, migration.Version))
		}
		if i > 0 {
			prev, _ := strconv.Atoi(available[i-1].Version)
			if n != prev+1 {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, prev+1)
			}
		}
		availableVersions[n] = true
	}

	for _, a := range applied {
		n, err := strconv.Atoi(a.Version)
		if err != nil {
			return fmt.Errorf("%w: applied version '%s' is not numeric", ErrInvalidVersion, a.Version)
		}
		if !availableVersions[n] {
			return fmt.Errorf("%w: applied migration %03d not found in available migrations", ErrVersionConflict, n)
		}
	}
	return nil
}
