package store

// Schedule queries
const (
	queryDeleteSchedules = `
		DELETE FROM dci_schedules WHERE item_id = ?`

	queryLoadSchedules = `
		SELECT schedule
		FROM dci_schedules
		WHERE item_id = ?
		ORDER BY schedule_id`

	queryLoadAllSchedules = `
		SELECT item_id, schedule
		FROM dci_schedules
		ORDER BY item_id, schedule_id`
)
