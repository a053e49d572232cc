package militancy

import (
	"context"
	"time"
)

// Repository describes militancy persistence needs from use cases.
type Repository interface {
	ListByPlayer(ctx context.Context, playerID int64) ([]Militancy, error)
	ListByTeam(ctx context.Context, teamID int64) ([]Militancy, error)
	// ListContainedPlayerIDs returns ids of players holding a militancy on
	// the team whose interval nests inside [start, end]. Unbounded rows
	// never match.
	ListContainedPlayerIDs(ctx context.Context, teamID int64, start, end time.Time) ([]int64, error)
	// UpsertMilitancies inserts rows, ignoring natural-key conflicts.
	UpsertMilitancies(ctx context.Context, items []Militancy) error
	// SaveBounds persists reconciled interval bounds for an existing row.
	SaveBounds(ctx context.Context, item Militancy) error
}
