package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// Store provides access to all storage repositories.
type Store struct {
	db        *sql.DB
	schedules *ScheduleStore
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:        db,
		schedules: NewScheduleStore(db),
	}
}

func (s *Store) Schedules() *ScheduleStore {
	return s.schedules
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NewDB opens (or creates) the SQLite database at path. ":memory:" yields a
// private in-memory database, used by tests.
func NewDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
