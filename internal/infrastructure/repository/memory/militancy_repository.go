package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/calciodata/footballgraph/internal/domain/militancy"
)

type militancyKey struct {
	playerID int64
	teamID   int64
	year     int
}

type MilitancyRepository struct {
	mu   sync.RWMutex
	rows map[militancyKey]militancy.Militancy
}

func NewMilitancyRepository(rows []militancy.Militancy) *MilitancyRepository {
	r := &MilitancyRepository{rows: make(map[militancyKey]militancy.Militancy)}
	for _, m := range rows {
		r.rows[keyOf(m)] = m
	}
	return r
}

func keyOf(m militancy.Militancy) militancyKey {
	return militancyKey{playerID: m.PlayerID, teamID: m.TeamID, year: m.Year}
}

func (r *MilitancyRepository) ListByPlayer(_ context.Context, playerID int64) ([]militancy.Militancy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []militancy.Militancy
	for _, m := range r.rows {
		if m.PlayerID == playerID {
			out = append(out, m)
		}
	}
	sortMilitancies(out)

	return out, nil
}

func (r *MilitancyRepository) ListByTeam(_ context.Context, teamID int64) ([]militancy.Militancy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []militancy.Militancy
	for _, m := range r.rows {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	sortMilitancies(out)

	return out, nil
}

func (r *MilitancyRepository) ListContainedPlayerIDs(_ context.Context, teamID int64, start, end time.Time) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int64]struct{})
	var out []int64
	for _, m := range r.rows {
		if m.TeamID != teamID || !m.Bounded() {
			continue
		}
		if m.StartDate.Before(start) || m.EndDate.After(end) {
			continue
		}
		if _, dup := seen[m.PlayerID]; dup {
			continue
		}
		seen[m.PlayerID] = struct{}{}
		out = append(out, m.PlayerID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out, nil
}

// UpsertMilitancies mirrors conflict-ignoring inserts: an existing row
// with the same natural key is left untouched.
func (r *MilitancyRepository) UpsertMilitancies(_ context.Context, items []militancy.Militancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range items {
		key := keyOf(m)
		if _, ok := r.rows[key]; ok {
			continue
		}
		r.rows[key] = m
	}

	return nil
}

func (r *MilitancyRepository) SaveBounds(_ context.Context, item militancy.Militancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(item)
	existing, ok := r.rows[key]
	if !ok {
		return nil
	}
	existing.StartDate = item.StartDate
	existing.EndDate = item.EndDate
	r.rows[key] = existing

	return nil
}

func sortMilitancies(rows []militancy.Militancy) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PlayerID != rows[j].PlayerID {
			return rows[i].PlayerID < rows[j].PlayerID
		}
		if rows[i].TeamID != rows[j].TeamID {
			return rows[i].TeamID < rows[j].TeamID
		}
		return rows[i].Year < rows[j].Year
	})
}
