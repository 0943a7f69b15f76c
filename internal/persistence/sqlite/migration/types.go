package migration

import (
	"context"
	"time"
)

// Migration is a single versioned SQL file.
type Migration struct {
	Version     string // numeric version, e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string // hex SHA-256 of SQL
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarizes the migration state of a database.
type Status struct {
	CurrentVersion    string
	PendingCount      int
	AppliedMigrations []AppliedMigration
	PendingMigrations []Migration
}

// Scanner lists the migrations available to a Manager.
type Scanner interface {
	ScanMigrations() ([]Migration, error)
}

// Executor runs migrations and tracks which ones have been applied.
type Executor interface {
	// InitializeVersionTable creates schema_migrations if it does not exist.
	InitializeVersionTable(ctx context.Context) error
	// ExecuteMigration runs the migration and records it in one transaction.
	ExecuteMigration(ctx context.Context, migration Migration) (time.Duration, error)
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}
