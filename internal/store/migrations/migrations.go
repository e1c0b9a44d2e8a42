// Package migrations creates and upgrades the schema owned by the data
// collection core.
package migrations

import (
	"context"
	"database/sql"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS dci_schedules (
		item_id     INTEGER NOT NULL,
		schedule_id INTEGER NOT NULL,
		schedule    TEXT    NOT NULL,
		PRIMARY KEY (item_id, schedule_id)
	)`,
}

// Run applies all migrations in order. Statements are idempotent so Run is
// safe on every start.
func Run(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
