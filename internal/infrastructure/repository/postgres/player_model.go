package postgres

type playerTableModel struct {
	ID       int64   `db:"id"`
	Name     string  `db:"name"`
	Surname  string  `db:"surname"`
	Position string  `db:"position"`
	ImageURL string  `db:"image_url"`
	Value    float64 `db:"value"`
}
