package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// ScheduleStore handles the dci_schedules relation: the ordered advanced
// schedule set per collection item.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// LoadSchedules returns the schedule expressions of one item in schedule_id
// order.
func (s *ScheduleStore) LoadSchedules(ctx context.Context, itemID uint32) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryLoadSchedules, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []string
	for rows.Next() {
		var schedule string
		if err := rows.Scan(&schedule); err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// LoadAllSchedules returns the schedule sets of every item, for the warm-up
// walk at server start.
func (s *ScheduleStore) LoadAllSchedules(ctx context.Context) (map[uint32][]string, error) {
	rows, err := s.db.QueryContext(ctx, queryLoadAllSchedules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint32][]string)
	for rows.Next() {
		var itemID uint32
		var schedule string
		if err := rows.Scan(&itemID, &schedule); err != nil {
			return nil, err
		}
		out[itemID] = append(out[itemID], schedule)
	}
	return out, rows.Err()
}

// SaveSchedules rebuilds the item's rows atomically: delete then insert,
// inside one transaction.
func (s *ScheduleStore) SaveSchedules(ctx context.Context, itemID uint32, schedules []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryDeleteSchedules, itemID); err != nil {
		return err
	}

	for n, schedule := range schedules {
		query, args, err := sq.Insert("dci_schedules").
			Columns("item_id", "schedule_id", "schedule").
			Values(itemID, n+1, schedule).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteSchedules removes every row of an item, called when the item is
// destroyed.
func (s *ScheduleStore) DeleteSchedules(ctx context.Context, itemID uint32) error {
	_, err := s.db.ExecContext(ctx, queryDeleteSchedules, itemID)
	return err
}
