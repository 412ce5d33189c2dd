// Package database provides SQLite connectivity for the OBEGRÄNSAD integration.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations registered by the migrations package
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements and the database file is
// restricted to 0600.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or carry a
// DEFAULT, and each .up.sql ships with a .down.sql.
package database
