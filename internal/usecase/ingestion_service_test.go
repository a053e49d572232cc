package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/calciodata/footballgraph/internal/infrastructure/repository/memory"
	"github.com/calciodata/footballgraph/internal/platform/logging"
)

type stubStatsProvider struct {
	leagues     []ExternalLeague
	rosters     map[int64]map[int][]ExternalPlayerSeason
	teamLeagues map[int64][]ExternalTeamLeague
}

func (p *stubStatsProvider) FetchLeagues(_ context.Context) ([]ExternalLeague, error) {
	return p.leagues, nil
}

func (p *stubStatsProvider) FetchLeaguePlayers(_ context.Context, leagueID int64, year int) ([]ExternalPlayerSeason, error) {
	return p.rosters[leagueID][year], nil
}

func (p *stubStatsProvider) FetchTeamLeagues(_ context.Context, teamID int64) ([]ExternalTeamLeague, error) {
	return p.teamLeagues[teamID], nil
}

func TestIngestionService_Run(t *testing.T) {
	start := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC)

	provider := &stubStatsProvider{
		leagues: []ExternalLeague{
			{
				ID: 1, Name: "Serie A", CountryCode: "IT",
				Seasons: []ExternalSeason{
					{Year: 2020, StartDate: &start, EndDate: &end},
					// Outside the window: must be ignored, not disqualifying.
					{Year: 2010, StartDate: nil, EndDate: nil},
				},
			},
			{
				ID: 2, Name: "Ligue 1", CountryCode: "FR",
				Seasons: []ExternalSeason{
					{Year: 2020, StartDate: &start, EndDate: nil},
				},
			},
		},
		rosters: map[int64]map[int][]ExternalPlayerSeason{
			1: {2020: {
				{
					PlayerID: 10, FirstName: "Paulo", LastName: "Dybala", Position: "Attacker",
					Stats: []ExternalTeamStat{{TeamID: 1, TeamName: "Juventus", Appearances: 25}},
				},
				{
					// Duplicate row for the same player and team: last wins.
					PlayerID: 10, FirstName: "Paulo", LastName: "Dybala", Position: "Attacker",
					Stats: []ExternalTeamStat{{TeamID: 1, TeamName: "Juventus", Appearances: 26}},
				},
				{
					PlayerID: 11, FirstName: "Théo", LastName: "Hernández", Position: "Defender",
					Stats: []ExternalTeamStat{{TeamID: 3, TeamName: "Milan", Appearances: 30}},
				},
				{
					// No id: dropped.
					PlayerID: 0, FirstName: "Ghost", LastName: "Row",
					Stats: []ExternalTeamStat{{TeamID: 1, TeamName: "Juventus"}},
				},
			}},
		},
		teamLeagues: map[int64][]ExternalTeamLeague{
			1: {{LeagueID: 1, Years: []int{2019, 2020}}},
			3: {{LeagueID: 1, Years: []int{2020}}, {LeagueID: 99, Years: []int{2020}}},
		},
	}

	leagueRepo := memory.NewLeagueRepository(nil, nil)
	teamRepo := memory.NewTeamRepository(nil, nil)
	playerRepo := memory.NewPlayerRepository(nil)
	militancyRepo := memory.NewMilitancyRepository(nil)

	service := NewIngestionService(
		provider, leagueRepo, teamRepo, playerRepo, militancyRepo,
		IngestionConfig{Workers: 2, YearFrom: 2018, YearTo: 2021},
		logging.NewNop(),
	)

	result, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("run ingestion: %v", err)
	}

	if result.Leagues != 1 {
		t.Fatalf("league with incomplete season must be skipped: got=%d want=1", result.Leagues)
	}
	if result.Teams != 2 {
		t.Fatalf("unexpected team count: got=%d want=2", result.Teams)
	}
	if result.Players != 2 {
		t.Fatalf("unexpected player count: got=%d want=2", result.Players)
	}
	if result.Militancies != 2 {
		t.Fatalf("unexpected militancy count: got=%d want=2", result.Militancies)
	}

	mils, err := militancyRepo.ListByPlayer(context.Background(), 10)
	if err != nil {
		t.Fatalf("list militancies: %v", err)
	}
	if len(mils) != 1 {
		t.Fatalf("duplicate roster rows survived: got=%d want=1", len(mils))
	}
	if mils[0].Appearances != 26 {
		t.Fatalf("last duplicate must win: got=%d want=26", mils[0].Appearances)
	}
	if !mils[0].StartDate.Equal(start) || !mils[0].EndDate.Equal(end) {
		t.Fatalf("militancy not seeded with season bounds: %v..%v", mils[0].StartDate, mils[0].EndDate)
	}

	got, found, err := playerRepo.GetByID(context.Background(), 11)
	if err != nil || !found {
		t.Fatalf("get player: found=%v err=%v", found, err)
	}
	if got.Name != "Theo" || got.Surname != "Hernandez" {
		t.Fatalf("diacritics not folded: %q %q", got.Name, got.Surname)
	}

	memberships, err := teamRepo.ListMemberships(context.Background(), 3)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 1 || memberships[0].LeagueID != 1 {
		t.Fatalf("membership for unknown league survived: %+v", memberships)
	}
}

func TestIngestionService_FilterLeagues_SkipsEmptyCalendars(t *testing.T) {
	service := NewIngestionService(
		&stubStatsProvider{},
		memory.NewLeagueRepository(nil, nil),
		memory.NewTeamRepository(nil, nil),
		memory.NewPlayerRepository(nil),
		memory.NewMilitancyRepository(nil),
		IngestionConfig{Workers: 1, YearFrom: 2018, YearTo: 2021},
		logging.NewNop(),
	)

	start := time.Date(2010, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2011, 5, 31, 0, 0, 0, 0, time.UTC)
	kept, _ := service.filterLeagues(context.Background(), []ExternalLeague{
		{ID: 1, Name: "Old League", Seasons: []ExternalSeason{{Year: 2010, StartDate: &start, EndDate: &end}}},
	})
	if len(kept) != 0 {
		t.Fatalf("league with no seasons in the window must be skipped: %+v", kept)
	}
}

func TestAsciiFold(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Müller", "Muller"},
		{"São Paulo", "Sao Paulo"},
		{"Plain", "Plain"},
	}
	for _, tc := range cases {
		if got := asciiFold(tc.in); got != tc.want {
			t.Fatalf("asciiFold(%q): got=%q want=%q", tc.in, got, tc.want)
		}
	}
}
