package player

import "context"

// Repository describes player persistence needs from use cases.
type Repository interface {
	ListIDs(ctx context.Context) ([]int64, error)
	List(ctx context.Context) ([]Player, error)
	GetByID(ctx context.Context, playerID int64) (Player, bool, error)
	GetByIDs(ctx context.Context, playerIDs []int64) ([]Player, error)
	Exists(ctx context.Context, playerID int64) (bool, error)
	// SearchByFullName returns up to limit players ordered by descending
	// full-name similarity to the query.
	SearchByFullName(ctx context.Context, fullName string, limit int) ([]Player, error)
	UpsertPlayers(ctx context.Context, items []Player) error
	// SaveValues persists derived market values keyed by player id.
	SaveValues(ctx context.Context, values map[int64]float64) error
}
