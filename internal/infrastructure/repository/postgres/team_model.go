package postgres

type teamTableModel struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	ImageURL string `db:"image_url"`
}

type membershipTableModel struct {
	TeamID   int64 `db:"team_id"`
	LeagueID int64 `db:"league_id"`
	Year     int   `db:"year"`
}
