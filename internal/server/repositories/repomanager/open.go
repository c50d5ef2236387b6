package repomanager

import (
	"context"
	"database/sql"
	"fmt"
)

// Open connects to the database named by dsn and returns the manager for its
// dialect. A DSN with sqlite selects the embedded SQLite driver, anything else
// is handed to pgx.
func Open(ctx context.Context, dsn string, sqlite bool, sqlitePath string) (*sql.DB, RepositoryManager, error) {
	if sqlite {
		db, err := sql.Open("sqlite", sqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite serializes writers; one connection also keeps ":memory:"
		// databases shared across the pool.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("sqlite pragma: %w", err)
		}
		return db, NewSQLiteRepositoryManager(), nil
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, NewPostgresRepositoryManager(), nil
}
