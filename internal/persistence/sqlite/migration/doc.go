// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files are read from an fs.FS (typically an embed.FS) and must be
// named {version}_{description}.sql, e.g. "001_create_rooms.sql". Versions are
// numeric and must form a continuous sequence. Applied versions are recorded in
// the schema_migrations table together with the file checksum, so each file runs
// exactly once and edits to an applied file are detected.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
