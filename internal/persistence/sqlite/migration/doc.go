// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migrations are read from an fs.FS (normally an embed.FS) and must be named
// {version}_{description}.sql, for example "001_create_documents.sql". Applied
// versions are tracked in the schema_migrations table together with the checksum
// of the file that was executed, so an edited migration is reported instead of
// silently skipped.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewExecutor(db), files, "migrations", logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
