package storage

const (
	keyCurrentResult = "currentResult"
	keyTheme         = "theme"
)

const (
	queryDeleteAllHistory = `DELETE FROM history_entries`

	queryInsertHistory = `INSERT INTO history_entries
		(position, id, created_at, text_count, file_count, payload)
		VALUES (?, ?, ?, ?, ?, ?)`

	querySelectHistory = `SELECT payload FROM history_entries ORDER BY position ASC`

	queryUpsertKV = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	querySelectKV = `SELECT value FROM kv WHERE key = ?`

	queryDeleteKV = `DELETE FROM kv WHERE key = ?`

	queryHistoryTotals = `SELECT COUNT(*), COALESCE(SUM(text_count), 0), COALESCE(SUM(file_count), 0)
		FROM history_entries`

	queryGroupByMode = `SELECT COALESCE(json_extract(payload, '$.processingInfo.mode'), 'unknown') AS mode, COUNT(*)
		FROM history_entries GROUP BY mode`
)
