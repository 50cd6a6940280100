package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260314-101500",
		Description: "Store rendered HTML delivered by the AEO report callback",
		Up: []string{
			`ALTER TABLE aeo_reports ADD COLUMN html TEXT`,
		},
	})
}
