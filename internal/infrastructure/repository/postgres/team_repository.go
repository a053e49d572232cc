package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/calciodata/footballgraph/internal/domain/team"
	qb "github.com/calciodata/footballgraph/internal/platform/querybuilder"
)

type TeamRepository struct {
	db *sqlx.DB
}

var teamSelectColumns = []string{
	"id",
	"name",
	"image_url",
}

var membershipSelectColumns = []string{
	"team_id",
	"league_id",
	"year",
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) ListIDs(ctx context.Context) ([]int64, error) {
	query, args, err := qb.Select("id").From("team").
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select team ids query: %w", err)
	}

	var out []int64
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select team ids: %w", err)
	}

	return out, nil
}

func (r *TeamRepository) GetByID(ctx context.Context, teamID int64) (team.Team, bool, error) {
	query, args, err := qb.Select(teamSelectColumns...).From("team").
		Where(qb.Eq("id", teamID)).
		ToSQL()
	if err != nil {
		return team.Team{}, false, fmt.Errorf("build select team query: %w", err)
	}

	var row teamTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return team.Team{}, false, nil
		}
		return team.Team{}, false, fmt.Errorf("select team: %w", err)
	}

	return teamRowToDomain(row), true, nil
}

func (r *TeamRepository) GetByIDs(ctx context.Context, teamIDs []int64) ([]team.Team, error) {
	if len(teamIDs) == 0 {
		return []team.Team{}, nil
	}

	query, args, err := qb.Select(teamSelectColumns...).From("team").
		Where(qb.In("id", int64SliceToAny(teamIDs))).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select teams by ids query: %w", err)
	}

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select teams by ids: %w", err)
	}

	return teamRowsToDomain(rows), nil
}

func (r *TeamRepository) FindByName(ctx context.Context, name string) ([]team.Team, error) {
	query, args, err := qb.Select(teamSelectColumns...).From("team").
		Where(qb.Eq("lower(name)", strings.ToLower(name))).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select teams by name query: %w", err)
	}

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select teams by name: %w", err)
	}

	return teamRowsToDomain(rows), nil
}

// SearchByName ranks by pg_trgm similarity, most similar first.
func (r *TeamRepository) SearchByName(ctx context.Context, name string, limit int) ([]team.Team, error) {
	query, args, err := qb.Select(teamSelectColumns...).From("team").
		OrderByExpr("similarity(name, ?) DESC, id", name).
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search teams query: %w", err)
	}

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search teams: %w", err)
	}

	return teamRowsToDomain(rows), nil
}

func (r *TeamRepository) ListMemberships(ctx context.Context, teamID int64) ([]team.Membership, error) {
	query, args, err := qb.Select(membershipSelectColumns...).From("teammilitancy").
		Where(qb.Eq("team_id", teamID)).
		OrderBy("league_id", "year").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select memberships query: %w", err)
	}

	var rows []membershipTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select memberships: %w", err)
	}

	return membershipRowsToDomain(rows), nil
}

func (r *TeamRepository) ListMembershipsByLeague(ctx context.Context, leagueID int64) ([]team.Membership, error) {
	query, args, err := qb.Select(membershipSelectColumns...).From("teammilitancy").
		Where(qb.Eq("league_id", leagueID)).
		OrderBy("team_id", "year").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league memberships query: %w", err)
	}

	var rows []membershipTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select league memberships: %w", err)
	}

	return membershipRowsToDomain(rows), nil
}

func (r *TeamRepository) UpsertTeams(ctx context.Context, items []team.Team) error {
	if len(items) == 0 {
		return nil
	}

	for _, batch := range batchRanges(len(items)) {
		builder := qb.InsertInto("team").
			Columns("id", "name", "image_url").
			Suffix("ON CONFLICT (id) DO NOTHING")
		for _, item := range items[batch[0]:batch[1]] {
			builder.Values(item.ID, item.Name, item.ImageURL)
		}

		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert teams query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert teams: %w", err)
		}
	}

	return nil
}

func (r *TeamRepository) UpsertMemberships(ctx context.Context, items []team.Membership) error {
	if len(items) == 0 {
		return nil
	}

	for _, batch := range batchRanges(len(items)) {
		builder := qb.InsertInto("teammilitancy").
			Columns("team_id", "league_id", "year").
			Suffix("ON CONFLICT (team_id, league_id, year) DO NOTHING")
		for _, item := range items[batch[0]:batch[1]] {
			builder.Values(item.TeamID, item.LeagueID, item.Year)
		}

		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert memberships query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert memberships: %w", err)
		}
	}

	return nil
}

func teamRowToDomain(row teamTableModel) team.Team {
	return team.Team{
		ID:       row.ID,
		Name:     row.Name,
		ImageURL: row.ImageURL,
	}
}

func teamRowsToDomain(rows []teamTableModel) []team.Team {
	out := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		out = append(out, teamRowToDomain(row))
	}
	return out
}

func membershipRowsToDomain(rows []membershipTableModel) []team.Membership {
	out := make([]team.Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, team.Membership{
			TeamID:   row.TeamID,
			LeagueID: row.LeagueID,
			Year:     row.Year,
		})
	}
	return out
}
