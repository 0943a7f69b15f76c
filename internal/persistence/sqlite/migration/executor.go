package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SQLiteExecutor implements Executor for SQLite databases.
type SQLiteExecutor struct {
	db *sql.DB
}

// NewSQLiteExecutor creates a SQLite migration executor.
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`

	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return NewDatabaseError("", createTableSQL, "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of the migration and records it in the
// same transaction, so a failed migration leaves no trace.
func (e *SQLiteExecutor) ExecuteMigration(ctx context.Context, migration Migration) (time.Duration, error) {
	statements := SplitStatements(migration.SQL)
	if len(statements) == 0 {
		return 0, NewMigrationError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	start := time.Now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewDatabaseError(migration.Version, "", "begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, NewDatabaseError(migration.Version, stmt, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	elapsed := time.Since(start)
	const recordSQL = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, recordSQL,
		migration.Version,
		time.Now().UTC().Format(time.RFC3339),
		migration.Checksum,
		elapsed.Milliseconds(),
	); err != nil {
		return 0, NewDatabaseError(migration.Version, recordSQL, "record migration", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, NewDatabaseError(migration.Version, "", "commit transaction", err)
	}
	return elapsed, nil
}

// GetAppliedVersions returns all applied migrations ordered by version.
func (e *SQLiteExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	const querySQL = `
		SELECT version, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY CAST(version AS INTEGER) ASC`

	rows, err := e.db.QueryContext(ctx, querySQL)
	if err != nil {
		return nil, NewDatabaseError("", querySQL, "get applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m          AppliedMigration
			appliedAt  string
			durationMs int64
		)
		if err := rows.Scan(&m.Version, &appliedAt, &durationMs, &m.Checksum); err != nil {
			return nil, NewDatabaseError("", querySQL, "scan applied migration", err)
		}
		if m.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, NewDatabaseError(m.Version, querySQL, "parse applied_at", err)
		}
		m.ExecutionTime = time.Duration(durationMs) * time.Millisecond
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, NewDatabaseError("", querySQL, "iterate applied migrations", err)
	}
	return applied, nil
}

var (
	createTriggerPattern = regexp.MustCompile(`(?i)^CREATE\s+(TEMP\s+|TEMPORARY\s+)?TRIGGER\b`)
	triggerEndPattern    = regexp.MustCompile(`(?i)^END\s*;$`)
)

// SplitStatements splits SQL content into statements on trailing semicolons.
// Full-line "--" comments are dropped. CREATE TRIGGER bodies are kept whole
// until their closing "END;" line.
func SplitStatements(content string) []string {
	var (
		statements []string
		current    []string
		inTrigger  bool
	)

	flush := func() {
		stmt := strings.TrimSpace(strings.Join(current, "\n"))
		stmt = strings.TrimSuffix(stmt, ";")
		if strings.TrimSpace(stmt) != "" {
			statements = append(statements, strings.TrimSpace(stmt))
		}
		current = current[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		if len(current) == 0 && createTriggerPattern.MatchString(trimmed) {
			inTrigger = true
		}
		current = append(current, trimmed)

		switch {
		case inTrigger:
			if triggerEndPattern.MatchString(trimmed) {
				inTrigger = false
				flush()
			}
		case strings.HasSuffix(trimmed, ";"):
			flush()
		}
	}
	flush()

	return statements
}
