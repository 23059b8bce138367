// Package database provides SQLite connectivity for storefront-auth.
//
// This package manages:
//   - Database connection with WAL mode and a busy timeout
//   - Versioned schema migrations read from an fs.FS
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600 since it holds password hashes
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: each YYYYMMDD_HHMMSS_name.up.sql has a matching
// .down.sql, and new columns are nullable or carry a default.
package database
