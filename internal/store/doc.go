// Package store implements the persistence layer owned by the data
// collection core.
//
// The only relation the core persists is the advanced-schedule set:
//
//	┌────────────────┬──────────────────────────────────────────────┐
//	│  Table         │  Purpose                                     │
//	├────────────────┼──────────────────────────────────────────────┤
//	│  dci_schedules │  (item_id, schedule_id, schedule) rows, one  │
//	│                │  per schedule expression, rebuilt atomically │
//	│                │  on every save                               │
//	└────────────────┴──────────────────────────────────────────────┘
//
// Storage is SQLite via modernc.org/sqlite; query construction uses
// Masterminds/squirrel. Collected values, thresholds and the object model
// are persisted elsewhere.
package store
