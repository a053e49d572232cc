package team

import "context"

// Repository describes team persistence needs from use cases.
type Repository interface {
	ListIDs(ctx context.Context) ([]int64, error)
	GetByID(ctx context.Context, teamID int64) (Team, bool, error)
	GetByIDs(ctx context.Context, teamIDs []int64) ([]Team, error)
	FindByName(ctx context.Context, name string) ([]Team, error)
	// SearchByName returns up to limit teams ordered by descending name
	// similarity to the query.
	SearchByName(ctx context.Context, name string, limit int) ([]Team, error)
	ListMemberships(ctx context.Context, teamID int64) ([]Membership, error)
	ListMembershipsByLeague(ctx context.Context, leagueID int64) ([]Membership, error)
	UpsertTeams(ctx context.Context, items []Team) error
	UpsertMemberships(ctx context.Context, items []Membership) error
}
