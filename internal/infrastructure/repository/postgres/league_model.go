package postgres

import "time"

type leagueTableModel struct {
	ID          int64  `db:"id"`
	DisplayName string `db:"display_name"`
	CountryCode string `db:"country_code"`
	ImageURL    string `db:"image_url"`
}

type seasonTableModel struct {
	LeagueID  int64     `db:"league_id"`
	Year      int       `db:"year"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
}
