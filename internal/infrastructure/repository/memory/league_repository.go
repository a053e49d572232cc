package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/calciodata/footballgraph/internal/domain/league"
)

type LeagueRepository struct {
	mu      sync.RWMutex
	leagues map[int64]league.League
	seasons map[int64][]league.Season
}

func NewLeagueRepository(leagues []league.League, seasons []league.Season) *LeagueRepository {
	r := &LeagueRepository{
		leagues: make(map[int64]league.League),
		seasons: make(map[int64][]league.Season),
	}
	_ = r.UpsertLeagues(context.Background(), leagues)
	_ = r.UpsertSeasons(context.Background(), seasons)
	return r
}

func (r *LeagueRepository) ListLeagues(_ context.Context) ([]league.League, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]league.League, 0, len(r.leagues))
	for _, l := range r.leagues {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *LeagueRepository) GetByID(_ context.Context, leagueID int64) (league.League, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.leagues[leagueID]
	return l, ok, nil
}

func (r *LeagueRepository) FindByDisplayName(_ context.Context, displayName string) ([]league.League, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []league.League
	for _, l := range r.leagues {
		if strings.EqualFold(l.DisplayName, displayName) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *LeagueRepository) ListSeasons(_ context.Context, leagueIDs []int64) ([]league.Season, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []league.Season
	for _, leagueID := range leagueIDs {
		out = append(out, r.seasons[leagueID]...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LeagueID != out[j].LeagueID {
			return out[i].LeagueID < out[j].LeagueID
		}
		return out[i].Year < out[j].Year
	})

	return out, nil
}

func (r *LeagueRepository) UpsertLeagues(_ context.Context, items []league.League) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range items {
		r.leagues[l.ID] = l
	}

	return nil
}

func (r *LeagueRepository) UpsertSeasons(_ context.Context, items []league.Season) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range items {
		existing := r.seasons[s.LeagueID]
		replaced := false
		for i := range existing {
			if existing[i].Year == s.Year {
				existing[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, s)
		}
		r.seasons[s.LeagueID] = existing
	}

	return nil
}
