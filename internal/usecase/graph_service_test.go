package usecase

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calciodata/footballgraph/internal/domain/militancy"
	"github.com/calciodata/footballgraph/internal/domain/player"
	"github.com/calciodata/footballgraph/internal/infrastructure/repository/memory"
	"github.com/calciodata/footballgraph/internal/platform/logging"
)

func newGraphFixture(t *testing.T, chunkSize int, outputDir string) (*GraphService, *memory.PlayerRepository) {
	t.Helper()

	full := func(y int) (*time.Time, *time.Time) {
		s := time.Date(y, 8, 1, 0, 0, 0, 0, time.UTC)
		e := time.Date(y+1, 5, 31, 0, 0, 0, 0, time.UTC)
		return &s, &e
	}
	s20, e20 := full(2020)
	half := time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)

	playerRepo := memory.NewPlayerRepository([]player.Player{
		{ID: 10, Value: 9},
		{ID: 11, Value: 7},
		{ID: 12, Value: 5},
	})
	// Player 12 leaves mid-season: his interval nests inside the others',
	// theirs do not nest inside his.
	militancyRepo := memory.NewMilitancyRepository([]militancy.Militancy{
		{PlayerID: 10, TeamID: 1, Year: 2020, StartDate: s20, EndDate: e20},
		{PlayerID: 11, TeamID: 1, Year: 2020, StartDate: s20, EndDate: e20},
		{PlayerID: 12, TeamID: 1, Year: 2020, StartDate: s20, EndDate: &half},
	})

	service := NewGraphService(
		playerRepo, militancyRepo,
		GraphConfig{Workers: 2, ChunkSize: chunkSize, OutputDir: outputDir},
		logging.NewNop(),
	)

	return service, playerRepo
}

func TestGraphService_BuildGraph(t *testing.T) {
	service, _ := newGraphFixture(t, 100000, "")

	edges, err := service.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	want := []CoMilitancyEdge{
		{StartID: 10, EndID: 11, TeamID: 1},
		{StartID: 10, EndID: 12, TeamID: 1},
		{StartID: 11, EndID: 10, TeamID: 1},
		{StartID: 11, EndID: 12, TeamID: 1},
	}
	if len(edges) != len(want) {
		t.Fatalf("unexpected edge count: got=%d want=%d\nedges: %+v", len(edges), len(want), edges)
	}
	for i, edge := range edges {
		if edge != want[i] {
			t.Fatalf("unexpected edge at %d: got=%+v want=%+v", i, edge, want[i])
		}
	}
}

func TestGraphService_BuildGraph_NoSelfEdges(t *testing.T) {
	service, _ := newGraphFixture(t, 100000, "")

	edges, err := service.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	for _, edge := range edges {
		if edge.StartID == edge.EndID {
			t.Fatalf("self edge produced: %+v", edge)
		}
	}
}

func TestGraphService_Export_ChunksRelationships(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csv_files")
	service, _ := newGraphFixture(t, 3, dir)

	if err := service.Export(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}

	readRows := func(name string) [][]string {
		t.Helper()
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer f.Close()
		rows, err := csv.NewReader(f).ReadAll()
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return rows
	}

	header := readRows("players-header.csv")
	if len(header) != 1 || header[0][0] != "playerId:ID" {
		t.Fatalf("unexpected node header: %v", header)
	}

	nodes := readRows("players.csv")
	if len(nodes) != 3 {
		t.Fatalf("unexpected node count: got=%d want=3", len(nodes))
	}
	if nodes[0][0] != "10" || nodes[0][1] != "Player" || nodes[0][2] != "9" {
		t.Fatalf("unexpected node row: %v", nodes[0])
	}

	relHeader := readRows("played-with-header.csv")
	if len(relHeader) != 1 || relHeader[0][2] != ":TYPE" {
		t.Fatalf("unexpected relationship header: %v", relHeader)
	}

	// 4 edges with chunk size 3 split into parts of 3 and 1.
	part1 := readRows("played-with-part1.csv")
	part2 := readRows("played-with-part2.csv")
	if len(part1) != 3 || len(part2) != 1 {
		t.Fatalf("unexpected chunking: part1=%d part2=%d", len(part1), len(part2))
	}
	if _, err := os.Stat(filepath.Join(dir, "played-with-part3.csv")); !os.IsNotExist(err) {
		t.Fatalf("unexpected extra chunk file")
	}
	if part1[0][2] != "PLAYED_WITH" {
		t.Fatalf("unexpected relationship type: %v", part1[0])
	}
}

func TestGraphService_Export_ClearsPreviousArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csv_files")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("prepare dir: %v", err)
	}
	stale := filepath.Join(dir, "played-with-part9.csv")
	if err := os.WriteFile(stale, []byte("stale\n"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}

	service, _ := newGraphFixture(t, 100000, dir)
	if err := service.Export(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale artifact survived export")
	}
	if _, err := os.Stat(filepath.Join(dir, "players.csv")); err != nil {
		t.Fatalf("missing node file: %v", err)
	}
}

func TestGraphService_Export_EmptyStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csv_files")
	service := NewGraphService(
		memory.NewPlayerRepository(nil),
		memory.NewMilitancyRepository(nil),
		GraphConfig{Workers: 2, ChunkSize: 3, OutputDir: dir},
		logging.NewNop(),
	)

	if err := service.Export(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}

	for _, name := range []string{"players-header.csv", "played-with-header.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "played-with-part1.csv")); !os.IsNotExist(err) {
		t.Fatalf("empty store must produce no relationship parts")
	}
}
