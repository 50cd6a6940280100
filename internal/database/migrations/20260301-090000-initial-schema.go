package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260301-090000",
		Description: "Initial schema: analyses, analysis jobs and AEO reports",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS analyses (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				company_name TEXT NOT NULL,
				url TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending',
				result_json TEXT,
				error_message TEXT,
				use_web_search INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				completed_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON analyses(user_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at)`,

			`CREATE TABLE IF NOT EXISTS analysis_jobs (
				id TEXT PRIMARY KEY,
				analysis_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				request_json TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				worker_id TEXT,
				error_message TEXT,
				claimed_at TEXT,
				completed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status_created ON analysis_jobs(status, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_analysis_jobs_analysis_id ON analysis_jobs(analysis_id)`,

			`CREATE TABLE IF NOT EXISTS aeo_reports (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				url TEXT NOT NULL,
				customer_name TEXT NOT NULL,
				report_json TEXT NOT NULL,
				summary_json TEXT,
				storage_key TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_aeo_reports_user_created ON aeo_reports(user_id, created_at DESC)`,
		},
	})
}
