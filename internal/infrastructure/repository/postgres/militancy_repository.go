package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/calciodata/footballgraph/internal/domain/militancy"
	qb "github.com/calciodata/footballgraph/internal/platform/querybuilder"
)

type MilitancyRepository struct {
	db *sqlx.DB
}

var militancySelectColumns = []string{
	"player_id",
	"team_id",
	"year",
	"start_date",
	"end_date",
	"appearances",
}

func NewMilitancyRepository(db *sqlx.DB) *MilitancyRepository {
	return &MilitancyRepository{db: db}
}

func (r *MilitancyRepository) ListByPlayer(ctx context.Context, playerID int64) ([]militancy.Militancy, error) {
	query, args, err := qb.Select(militancySelectColumns...).From("militancy").
		Where(qb.Eq("player_id", playerID)).
		OrderBy("team_id", "year").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select militancies by player query: %w", err)
	}

	var rows []militancyTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select militancies by player: %w", err)
	}

	return militancyRowsToDomain(rows), nil
}

func (r *MilitancyRepository) ListByTeam(ctx context.Context, teamID int64) ([]militancy.Militancy, error) {
	query, args, err := qb.Select(militancySelectColumns...).From("militancy").
		Where(qb.Eq("team_id", teamID)).
		OrderBy("player_id", "year").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select militancies by team query: %w", err)
	}

	var rows []militancyTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select militancies by team: %w", err)
	}

	return militancyRowsToDomain(rows), nil
}

func (r *MilitancyRepository) ListContainedPlayerIDs(ctx context.Context, teamID int64, start, end time.Time) ([]int64, error) {
	query, args, err := qb.Select("DISTINCT player_id").From("militancy").
		Where(
			qb.Eq("team_id", teamID),
			qb.NotNull("start_date"),
			qb.NotNull("end_date"),
			qb.Gte("start_date", start),
			qb.Lte("end_date", end),
		).
		OrderBy("player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select contained players query: %w", err)
	}

	var out []int64
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select contained players: %w", err)
	}

	return out, nil
}

func (r *MilitancyRepository) UpsertMilitancies(ctx context.Context, items []militancy.Militancy) error {
	if len(items) == 0 {
		return nil
	}

	for _, batch := range batchRanges(len(items)) {
		builder := qb.InsertInto("militancy").
			Columns("player_id", "team_id", "year", "start_date", "end_date", "appearances").
			Suffix("ON CONFLICT (player_id, team_id, year) DO NOTHING")
		for _, item := range items[batch[0]:batch[1]] {
			builder.Values(item.PlayerID, item.TeamID, item.Year, item.StartDate, item.EndDate, item.Appearances)
		}

		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert militancies query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert militancies: %w", err)
		}
	}

	return nil
}

func (r *MilitancyRepository) SaveBounds(ctx context.Context, item militancy.Militancy) error {
	query, args, err := qb.Update("militancy").
		Set("start_date", item.StartDate).
		Set("end_date", item.EndDate).
		Where(
			qb.Eq("player_id", item.PlayerID),
			qb.Eq("team_id", item.TeamID),
			qb.Eq("year", item.Year),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update militancy bounds query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update militancy bounds: %w", err)
	}

	return nil
}

func militancyRowsToDomain(rows []militancyTableModel) []militancy.Militancy {
	out := make([]militancy.Militancy, 0, len(rows))
	for _, row := range rows {
		out = append(out, militancy.Militancy{
			PlayerID:    row.PlayerID,
			TeamID:      row.TeamID,
			Year:        row.Year,
			StartDate:   row.StartDate,
			EndDate:     row.EndDate,
			Appearances: row.Appearances,
		})
	}
	return out
}
