package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260309-141500",
		Description: "Track analysis progress, stage and archive key",
		Up: []string{
			`ALTER TABLE analyses ADD COLUMN progress INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE analyses ADD COLUMN stage TEXT`,
			`ALTER TABLE analyses ADD COLUMN storage_key TEXT`,
		},
	})
}
