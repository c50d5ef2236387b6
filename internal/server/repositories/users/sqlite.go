package users

import "github.com/dmitrijs2005/gatekeeper/internal/dbx"

// SQLiteRepository stores users in an embedded SQLite database.
type SQLiteRepository struct {
	sqlRepository
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{sqlRepository{db: db, rebind: questionMarks}}
}
