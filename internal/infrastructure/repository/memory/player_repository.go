package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/calciodata/footballgraph/internal/domain/player"
	"github.com/calciodata/footballgraph/internal/platform/similarity"
)

type PlayerRepository struct {
	mu      sync.RWMutex
	players map[int64]player.Player
}

func NewPlayerRepository(players []player.Player) *PlayerRepository {
	r := &PlayerRepository{players: make(map[int64]player.Player)}
	_ = r.UpsertPlayers(context.Background(), players)
	return r
}

func (r *PlayerRepository) ListIDs(_ context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int64, 0, len(r.players))
	for id := range r.players {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out, nil
}

func (r *PlayerRepository) List(_ context.Context) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *PlayerRepository) GetByID(_ context.Context, playerID int64) (player.Player, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[playerID]
	return p, ok, nil
}

func (r *PlayerRepository) GetByIDs(_ context.Context, playerIDs []int64) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0, len(playerIDs))
	for _, id := range playerIDs {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		out = append(out, p)
	}

	return out, nil
}

func (r *PlayerRepository) Exists(_ context.Context, playerID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.players[playerID]
	return ok, nil
}

func (r *PlayerRepository) SearchByFullName(_ context.Context, fullName string, limit int) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		p     player.Player
		score int
	}
	ranked := make([]scored, 0, len(r.players))
	for _, p := range r.players {
		ranked = append(ranked, scored{p: p, score: similarity.PartialRatio(fullName, p.FullName())})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].p.ID < ranked[j].p.ID
	})

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	out := make([]player.Player, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.p)
	}

	return out, nil
}

func (r *PlayerRepository) UpsertPlayers(_ context.Context, items []player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range items {
		if existing, ok := r.players[p.ID]; ok && p.Value == 0 {
			p.Value = existing.Value
		}
		r.players[p.ID] = p
	}

	return nil
}

func (r *PlayerRepository) SaveValues(_ context.Context, values map[int64]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for playerID, value := range values {
		p, ok := r.players[playerID]
		if !ok {
			continue
		}
		p.Value = value
		r.players[playerID] = p
	}

	return nil
}
