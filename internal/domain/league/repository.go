package league

import "context"

// Repository describes league and season persistence needs from use cases.
type Repository interface {
	ListLeagues(ctx context.Context) ([]League, error)
	GetByID(ctx context.Context, leagueID int64) (League, bool, error)
	FindByDisplayName(ctx context.Context, displayName string) ([]League, error)
	ListSeasons(ctx context.Context, leagueIDs []int64) ([]Season, error)
	UpsertLeagues(ctx context.Context, items []League) error
	UpsertSeasons(ctx context.Context, items []Season) error
}
