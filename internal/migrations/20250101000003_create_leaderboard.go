package migrations

import (
	_ "embed"
)

//go:embed 20250101000003_create_leaderboard.sql
var createLeaderboardSQL string

func init() {
	Migrations.MustRegister(
		exec(createLeaderboardSQL),
		exec(`DROP TABLE IF EXISTS leaderboard;`),
	)
}
