package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/calciodata/footballgraph/internal/domain/league"
	qb "github.com/calciodata/footballgraph/internal/platform/querybuilder"
)

type LeagueRepository struct {
	db *sqlx.DB
}

var leagueSelectColumns = []string{
	"id",
	"display_name",
	"country_code",
	"image_url",
}

var seasonSelectColumns = []string{
	"league_id",
	"year",
	"start_date",
	"end_date",
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) ListLeagues(ctx context.Context) ([]league.League, error) {
	query, args, err := qb.Select(leagueSelectColumns...).From("league").
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select leagues query: %w", err)
	}

	var rows []leagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select leagues: %w", err)
	}

	return leagueRowsToDomain(rows), nil
}

func (r *LeagueRepository) GetByID(ctx context.Context, leagueID int64) (league.League, bool, error) {
	query, args, err := qb.Select(leagueSelectColumns...).From("league").
		Where(qb.Eq("id", leagueID)).
		ToSQL()
	if err != nil {
		return league.League{}, false, fmt.Errorf("build select league query: %w", err)
	}

	var row leagueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.League{}, false, nil
		}
		return league.League{}, false, fmt.Errorf("select league: %w", err)
	}

	return leagueRowToDomain(row), true, nil
}

func (r *LeagueRepository) FindByDisplayName(ctx context.Context, displayName string) ([]league.League, error) {
	query, args, err := qb.Select(leagueSelectColumns...).From("league").
		Where(qb.Eq("lower(display_name)", strings.ToLower(displayName))).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select leagues by name query: %w", err)
	}

	var rows []leagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select leagues by name: %w", err)
	}

	return leagueRowsToDomain(rows), nil
}

func (r *LeagueRepository) ListSeasons(ctx context.Context, leagueIDs []int64) ([]league.Season, error) {
	if len(leagueIDs) == 0 {
		return []league.Season{}, nil
	}

	query, args, err := qb.Select(seasonSelectColumns...).From("leagueseasons").
		Where(qb.In("league_id", int64SliceToAny(leagueIDs))).
		OrderBy("league_id", "year").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select seasons query: %w", err)
	}

	var rows []seasonTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select seasons: %w", err)
	}

	out := make([]league.Season, 0, len(rows))
	for _, row := range rows {
		out = append(out, league.Season{
			LeagueID:  row.LeagueID,
			Year:      row.Year,
			StartDate: row.StartDate,
			EndDate:   row.EndDate,
		})
	}

	return out, nil
}

func (r *LeagueRepository) UpsertLeagues(ctx context.Context, items []league.League) error {
	if len(items) == 0 {
		return nil
	}

	for _, batch := range batchRanges(len(items)) {
		builder := qb.InsertInto("league").
			Columns("id", "display_name", "country_code", "image_url").
			Suffix("ON CONFLICT (id) DO NOTHING")
		for _, item := range items[batch[0]:batch[1]] {
			builder.Values(item.ID, item.DisplayName, item.CountryCode, item.ImageURL)
		}

		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert leagues query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert leagues: %w", err)
		}
	}

	return nil
}

func (r *LeagueRepository) UpsertSeasons(ctx context.Context, items []league.Season) error {
	if len(items) == 0 {
		return nil
	}

	for _, batch := range batchRanges(len(items)) {
		builder := qb.InsertInto("leagueseasons").
			Columns("league_id", "year", "start_date", "end_date").
			Suffix("ON CONFLICT (league_id, year) DO NOTHING")
		for _, item := range items[batch[0]:batch[1]] {
			builder.Values(item.LeagueID, item.Year, item.StartDate, item.EndDate)
		}

		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert seasons query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert seasons: %w", err)
		}
	}

	return nil
}

func leagueRowToDomain(row leagueTableModel) league.League {
	return league.League{
		ID:          row.ID,
		DisplayName: row.DisplayName,
		CountryCode: row.CountryCode,
		ImageURL:    row.ImageURL,
	}
}

func leagueRowsToDomain(rows []leagueTableModel) []league.League {
	out := make([]league.League, 0, len(rows))
	for _, row := range rows {
		out = append(out, leagueRowToDomain(row))
	}
	return out
}
