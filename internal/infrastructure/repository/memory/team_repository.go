package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/calciodata/footballgraph/internal/domain/team"
	"github.com/calciodata/footballgraph/internal/platform/similarity"
)

type TeamRepository struct {
	mu          sync.RWMutex
	teams       map[int64]team.Team
	memberships map[int64][]team.Membership
}

func NewTeamRepository(teams []team.Team, memberships []team.Membership) *TeamRepository {
	r := &TeamRepository{
		teams:       make(map[int64]team.Team),
		memberships: make(map[int64][]team.Membership),
	}
	_ = r.UpsertTeams(context.Background(), teams)
	_ = r.UpsertMemberships(context.Background(), memberships)
	return r
}

func (r *TeamRepository) ListIDs(_ context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int64, 0, len(r.teams))
	for id := range r.teams {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out, nil
}

func (r *TeamRepository) GetByID(_ context.Context, teamID int64) (team.Team, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.teams[teamID]
	return t, ok, nil
}

func (r *TeamRepository) GetByIDs(_ context.Context, teamIDs []int64) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]team.Team, 0, len(teamIDs))
	for _, id := range teamIDs {
		t, ok := r.teams[id]
		if !ok {
			continue
		}
		out = append(out, t)
	}

	return out, nil
}

func (r *TeamRepository) FindByName(_ context.Context, name string) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []team.Team
	for _, t := range r.teams {
		if strings.EqualFold(t.Name, name) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *TeamRepository) SearchByName(_ context.Context, name string, limit int) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		t     team.Team
		score int
	}
	ranked := make([]scored, 0, len(r.teams))
	for _, t := range r.teams {
		ranked = append(ranked, scored{t: t, score: similarity.PartialRatio(name, t.Name)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].t.ID < ranked[j].t.ID
	})

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	out := make([]team.Team, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.t)
	}

	return out, nil
}

func (r *TeamRepository) ListMemberships(_ context.Context, teamID int64) ([]team.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]team.Membership, 0, len(r.memberships[teamID]))
	out = append(out, r.memberships[teamID]...)

	return out, nil
}

func (r *TeamRepository) ListMembershipsByLeague(_ context.Context, leagueID int64) ([]team.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []team.Membership
	for _, rows := range r.memberships {
		for _, m := range rows {
			if m.LeagueID == leagueID {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeamID != out[j].TeamID {
			return out[i].TeamID < out[j].TeamID
		}
		return out[i].Year < out[j].Year
	})

	return out, nil
}

func (r *TeamRepository) UpsertTeams(_ context.Context, items []team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range items {
		r.teams[t.ID] = t
	}

	return nil
}

func (r *TeamRepository) UpsertMemberships(_ context.Context, items []team.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range items {
		existing := r.memberships[m.TeamID]
		dup := false
		for _, row := range existing {
			if row.LeagueID == m.LeagueID && row.Year == m.Year {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		r.memberships[m.TeamID] = append(existing, m)
	}

	return nil
}
