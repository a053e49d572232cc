package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_WhereOrderLimit(t *testing.T) {
	query, args, err := Select("id", "name").
		From("team").
		Where(Eq("name", "Milan"), NotNull("img_url")).
		OrderBy("id").
		Limit(5).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM team WHERE name = $1 AND img_url IS NOT NULL ORDER BY id LIMIT 5", query)
	assert.Equal(t, []any{"Milan"}, args)
}

func TestSelect_InCondition(t *testing.T) {
	query, args, err := Select("*").
		From("leagueseasons").
		Where(In("league_id", []any{int64(1), int64(2)})).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM leagueseasons WHERE league_id IN ($1, $2)", query)
	assert.Len(t, args, 2)
}

func TestSelect_EmptyIn(t *testing.T) {
	query, _, err := Select("id").From("team").Where(In("id", nil)).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, query, "1=0")
}

func TestSelect_OrderByExpr(t *testing.T) {
	query, args, err := Select("id").
		From("player").
		OrderByExpr("similarity(?, name || ' ' || surname) DESC", "Lionel Messi").
		Limit(10).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM player ORDER BY similarity($1, name || ' ' || surname) DESC LIMIT 10", query)
	assert.Equal(t, []any{"Lionel Messi"}, args)
}

func TestInsert_MultiRowWithSuffix(t *testing.T) {
	query, args, err := InsertInto("militancy").
		Columns("player_id", "team_id", "year").
		Values(int64(1), int64(10), 2020).
		Values(int64(2), int64(10), 2020).
		Suffix("ON CONFLICT (player_id, team_id, year) DO NOTHING").
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO militancy (player_id, team_id, year) VALUES ($1, $2, $3), ($4, $5, $6) ON CONFLICT (player_id, team_id, year) DO NOTHING",
		query)
	assert.Len(t, args, 6)
}

func TestInsert_RowWidthMismatch(t *testing.T) {
	_, _, err := InsertInto("team").Columns("id", "name").Values(int64(1)).ToSQL()
	assert.Error(t, err)
}

func TestUpdate_SetWhere(t *testing.T) {
	query, args, err := Update("player").
		Set("value", 3.5).
		Where(Eq("id", int64(42))).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE player SET value = $1 WHERE id = $2", query)
	assert.Equal(t, []any{3.5, int64(42)}, args)
}

func TestSelect_MissingTable(t *testing.T) {
	_, _, err := Select("id").ToSQL()
	assert.Error(t, err)
}
