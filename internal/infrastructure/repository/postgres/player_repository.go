package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/calciodata/footballgraph/internal/domain/player"
	qb "github.com/calciodata/footballgraph/internal/platform/querybuilder"
)

type PlayerRepository struct {
	db *sqlx.DB
}

var playerSelectColumns = []string{
	"id",
	"name",
	"surname",
	"position",
	"image_url",
	"value",
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) ListIDs(ctx context.Context) ([]int64, error) {
	query, args, err := qb.Select("id").From("player").
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select player ids query: %w", err)
	}

	var out []int64
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select player ids: %w", err)
	}

	return out, nil
}

func (r *PlayerRepository) List(ctx context.Context) ([]player.Player, error) {
	query, args, err := qb.Select(playerSelectColumns...).From("player").
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players query: %w", err)
	}

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}

	return playerRowsToDomain(rows), nil
}

func (r *PlayerRepository) GetByID(ctx context.Context, playerID int64) (player.Player, bool, error) {
	query, args, err := qb.Select(playerSelectColumns...).From("player").
		Where(qb.Eq("id", playerID)).
		ToSQL()
	if err != nil {
		return player.Player{}, false, fmt.Errorf("build select player query: %w", err)
	}

	var row playerTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return player.Player{}, false, nil
		}
		return player.Player{}, false, fmt.Errorf("select player: %w", err)
	}

	return playerRowToDomain(row), true, nil
}

func (r *PlayerRepository) GetByIDs(ctx context.Context, playerIDs []int64) ([]player.Player, error) {
	if len(playerIDs) == 0 {
		return []player.Player{}, nil
	}

	query, args, err := qb.Select(playerSelectColumns...).From("player").
		Where(qb.In("id", int64SliceToAny(playerIDs))).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players by ids query: %w", err)
	}

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select players by ids: %w", err)
	}

	return playerRowsToDomain(rows), nil
}

func (r *PlayerRepository) Exists(ctx context.Context, playerID int64) (bool, error) {
	_, found, err := r.GetByID(ctx, playerID)
	return found, err
}

// SearchByFullName ranks by pg_trgm similarity against the concatenated
// name, most similar first.
func (r *PlayerRepository) SearchByFullName(ctx context.Context, fullName string, limit int) ([]player.Player, error) {
	query, args, err := qb.Select(playerSelectColumns...).From("player").
		OrderByExpr("similarity(trim(name || ' ' || surname), ?) DESC, id", fullName).
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search players query: %w", err)
	}

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search players: %w", err)
	}

	return playerRowsToDomain(rows), nil
}

func (r *PlayerRepository) UpsertPlayers(ctx context.Context, items []player.Player) error {
	if len(items) == 0 {
		return nil
	}

	for _, batch := range batchRanges(len(items)) {
		builder := qb.InsertInto("player").
			Columns("id", "name", "surname", "position", "image_url", "value").
			Suffix("ON CONFLICT (id) DO NOTHING")
		for _, item := range items[batch[0]:batch[1]] {
			builder.Values(item.ID, item.Name, item.Surname, item.Position, item.ImageURL, item.Value)
		}

		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert players query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert players: %w", err)
		}
	}

	return nil
}

// SaveValues commits derived values in one transaction so a failed run
// never leaves a half-written valuation.
func (r *PlayerRepository) SaveValues(ctx context.Context, values map[int64]float64) error {
	if len(values) == 0 {
		return nil
	}

	playerIDs := make([]int64, 0, len(values))
	for id := range values {
		playerIDs = append(playerIDs, id)
	}
	sort.Slice(playerIDs, func(i, j int) bool { return playerIDs[i] < playerIDs[j] })

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save values tx: %w", err)
	}
	defer tx.Rollback()

	for _, playerID := range playerIDs {
		query, args, err := qb.Update("player").
			Set("value", values[playerID]).
			Where(qb.Eq("id", playerID)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build update player value query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update player value player_id=%d: %w", playerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save values tx: %w", err)
	}

	return nil
}

func playerRowToDomain(row playerTableModel) player.Player {
	return player.Player{
		ID:       row.ID,
		Name:     row.Name,
		Surname:  row.Surname,
		Position: row.Position,
		ImageURL: row.ImageURL,
		Value:    row.Value,
	}
}

func playerRowsToDomain(rows []playerTableModel) []player.Player {
	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, playerRowToDomain(row))
	}
	return out
}
