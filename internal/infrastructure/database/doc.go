// Package database provides SQLite connectivity for Gray Logic Appliances.
//
// It manages the connection lifecycle (WAL mode, busy timeout, 0600 file
// permissions) and applies the versioned schema migrations registered in
// MigrationsFS.
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
// Migrations are additive: new columns must be NULLABLE or carry a DEFAULT,
// and every .up.sql should ship a matching .down.sql.
package database
