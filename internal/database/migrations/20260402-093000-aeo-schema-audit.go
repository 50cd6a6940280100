package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260402-093000",
		Description: "Store the schema audit next to the AEO page reports",
		Up: []string{
			`ALTER TABLE aeo_reports ADD COLUMN schema_audit_json TEXT`,
		},
	})
}
