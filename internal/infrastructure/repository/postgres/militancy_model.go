package postgres

import "time"

type militancyTableModel struct {
	PlayerID    int64      `db:"player_id"`
	TeamID      int64      `db:"team_id"`
	Year        int        `db:"year"`
	StartDate   *time.Time `db:"start_date"`
	EndDate     *time.Time `db:"end_date"`
	Appearances int        `db:"appearances"`
}
