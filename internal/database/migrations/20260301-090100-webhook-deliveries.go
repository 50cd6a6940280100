package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260301-090100",
		Description: "Add webhook_deliveries table",
		Up: []string{
			// One row per attempt; attempts of the same message share message_id.
			`CREATE TABLE IF NOT EXISTS webhook_deliveries (
				id TEXT PRIMARY KEY,
				message_id TEXT NOT NULL,
				subject_id TEXT NOT NULL,
				event_type TEXT NOT NULL,
				url TEXT NOT NULL,
				payload_json TEXT NOT NULL,
				status_code INTEGER,
				response_body TEXT,
				response_time_ms INTEGER,
				status TEXT NOT NULL DEFAULT 'pending',
				error_message TEXT,
				attempt_number INTEGER NOT NULL DEFAULT 1,
				max_attempts INTEGER NOT NULL DEFAULT 3,
				created_at TEXT NOT NULL,
				delivered_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_subject ON webhook_deliveries(subject_id)`,
			`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_message ON webhook_deliveries(message_id)`,
			`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_status ON webhook_deliveries(status)`,
		},
	})
}
