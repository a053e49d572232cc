package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sourcegraph/conc/pool"

	"github.com/calciodata/footballgraph/internal/domain/militancy"
	"github.com/calciodata/footballgraph/internal/domain/player"
	"github.com/calciodata/footballgraph/internal/platform/logging"
)

// CoMilitancyEdge is one "played together" relation: End's militancy on
// the team nested inside Start's militancy interval.
type CoMilitancyEdge struct {
	StartID int64
	EndID   int64
	TeamID  int64
}

type GraphConfig struct {
	Workers   int
	ChunkSize int
	OutputDir string
}

// GraphService derives co-militancy edges from finalized militancy
// intervals and writes bulk-import CSV artifacts. It only ever reads the
// store.
type GraphService struct {
	playerRepo    player.Repository
	militancyRepo militancy.Repository
	cfg           GraphConfig
	logger        *logging.Logger
}

func NewGraphService(
	playerRepo player.Repository,
	militancyRepo militancy.Repository,
	cfg GraphConfig,
	logger *logging.Logger,
) *GraphService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 100000
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "csv_files"
	}

	return &GraphService{
		playerRepo:    playerRepo,
		militancyRepo: militancyRepo,
		cfg:           cfg,
		logger:        logger,
	}
}

// BuildGraph computes edges for every player in parallel. Militancy data
// is read-only at this phase, so players are independent tasks; a failed
// task is logged and its player contributes no edges.
func (s *GraphService) BuildGraph(ctx context.Context) ([]CoMilitancyEdge, error) {
	playerIDs, err := s.playerRepo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list player ids: %w", err)
	}

	s.logger.InfoContext(ctx, "building co-militancy graph", "players", len(playerIDs))

	workers := pool.NewWithResults[[]CoMilitancyEdge]().
		WithContext(ctx).
		WithMaxGoroutines(s.cfg.Workers)

	for _, playerID := range playerIDs {
		playerID := playerID
		workers.Go(func(ctx context.Context) ([]CoMilitancyEdge, error) {
			edges, err := s.playerEdges(ctx, playerID)
			if err != nil {
				s.logger.WarnContext(ctx, "player edge task failed", "player_id", playerID, "error", err)
				return nil, nil
			}
			return edges, nil
		})
	}

	results, err := workers.Wait()
	if err != nil {
		return nil, fmt.Errorf("wait for graph workers: %w", err)
	}

	var edges []CoMilitancyEdge
	for _, part := range results {
		edges = append(edges, part...)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].StartID != edges[j].StartID {
			return edges[i].StartID < edges[j].StartID
		}
		if edges[i].EndID != edges[j].EndID {
			return edges[i].EndID < edges[j].EndID
		}
		return edges[i].TeamID < edges[j].TeamID
	})

	return edges, nil
}

// playerEdges finds, for each of the player's militancies, every other
// player whose militancy on the same team nests inside it. Two players
// overlapping on two teams produce two edges; the same pair on one team
// produces one.
func (s *GraphService) playerEdges(ctx context.Context, playerID int64) ([]CoMilitancyEdge, error) {
	mils, err := s.militancyRepo.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("list militancies player_id=%d: %w", playerID, err)
	}

	type edgeKey struct{ other, team int64 }
	seen := make(map[edgeKey]struct{})
	var edges []CoMilitancyEdge

	for _, mil := range mils {
		if !mil.Bounded() {
			continue
		}
		others, err := s.militancyRepo.ListContainedPlayerIDs(ctx, mil.TeamID, *mil.StartDate, *mil.EndDate)
		if err != nil {
			return nil, fmt.Errorf("list contained players team_id=%d: %w", mil.TeamID, err)
		}
		for _, other := range others {
			if other == playerID {
				continue
			}
			key := edgeKey{other: other, team: mil.TeamID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, CoMilitancyEdge{StartID: playerID, EndID: other, TeamID: mil.TeamID})
		}
	}

	return edges, nil
}

// Export builds the graph and writes the bulk-import artifacts: a node
// list plus relationship parts capped at ChunkSize rows each.
func (s *GraphService) Export(ctx context.Context) error {
	edges, err := s.BuildGraph(ctx)
	if err != nil {
		return err
	}

	players, err := s.playerRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}

	dir := s.cfg.OutputDir
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear output dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeCSV(filepath.Join(dir, "players-header.csv"), [][]string{{"playerId:ID", ":LABEL", "value:float"}}); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "writing player nodes", "count", len(players))
	nodeRows := make([][]string, 0, len(players))
	for _, p := range players {
		nodeRows = append(nodeRows, []string{
			strconv.FormatInt(p.ID, 10),
			"Player",
			strconv.FormatFloat(p.Value, 'f', -1, 64),
		})
	}
	if err := writeCSV(filepath.Join(dir, "players.csv"), nodeRows); err != nil {
		return err
	}

	if err := writeCSV(filepath.Join(dir, "played-with-header.csv"), [][]string{{":START_ID", ":END_ID", ":TYPE", "team_id:int"}}); err != nil {
		return err
	}

	parts := (len(edges) + s.cfg.ChunkSize - 1) / s.cfg.ChunkSize
	s.logger.InfoContext(ctx, "writing relationship parts", "edges", len(edges), "parts", parts)
	for part := 0; part < parts; part++ {
		from := part * s.cfg.ChunkSize
		to := from + s.cfg.ChunkSize
		if to > len(edges) {
			to = len(edges)
		}

		rows := make([][]string, 0, to-from)
		for _, edge := range edges[from:to] {
			rows = append(rows, []string{
				strconv.FormatInt(edge.StartID, 10),
				strconv.FormatInt(edge.EndID, 10),
				"PLAYED_WITH",
				strconv.FormatInt(edge.TeamID, 10),
			})
		}
		name := fmt.Sprintf("played-with-part%d.csv", part+1)
		if err := writeCSV(filepath.Join(dir, name), rows); err != nil {
			return err
		}
	}

	return nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
