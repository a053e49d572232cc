package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/calciodata/footballgraph/internal/domain/league"
	"github.com/calciodata/footballgraph/internal/domain/militancy"
	"github.com/calciodata/footballgraph/internal/domain/player"
	"github.com/calciodata/footballgraph/internal/domain/team"
	"github.com/calciodata/footballgraph/internal/infrastructure/repository/memory"
	"github.com/calciodata/footballgraph/internal/platform/logging"
)

type stubTransferProvider struct {
	histories map[int64][]PlayerTransferHistory
}

func (p *stubTransferProvider) FetchTeamTransfers(_ context.Context, teamID int64) ([]PlayerTransferHistory, error) {
	return p.histories[teamID], nil
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func newReconcileFixture(t *testing.T) (*ReconcileService, *memory.MilitancyRepository, *stubTransferProvider) {
	t.Helper()

	leagueRepo := memory.NewLeagueRepository(
		[]league.League{{ID: 1, DisplayName: "Serie A", CountryCode: "IT"}},
		[]league.Season{{
			LeagueID:  1,
			Year:      2020,
			StartDate: time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC),
		}},
	)
	teamRepo := memory.NewTeamRepository(
		[]team.Team{{ID: 1, Name: "Juventus"}, {ID: 3, Name: "Inter"}},
		[]team.Membership{
			{TeamID: 1, LeagueID: 1, Year: 2020},
			{TeamID: 3, LeagueID: 1, Year: 2020},
		},
	)
	playerRepo := memory.NewPlayerRepository([]player.Player{
		{ID: 10, Name: "Paulo", Surname: "Dybala"},
	})
	militancyRepo := memory.NewMilitancyRepository(nil)
	provider := &stubTransferProvider{histories: map[int64][]PlayerTransferHistory{}}

	service := NewReconcileService(
		provider, leagueRepo, teamRepo, playerRepo, militancyRepo,
		ReconcileConfig{FetchWorkers: 2}, logging.NewNop(),
	)

	return service, militancyRepo, provider
}

func TestReconcileService_Run_CreatesAndClosesMilitancy(t *testing.T) {
	service, militancyRepo, provider := newReconcileFixture(t)

	// Team 2 is unknown, so only the outgoing side produces a militancy.
	provider.histories[1] = []PlayerTransferHistory{{
		PlayerID: 10,
		Transfers: []TransferEvent{
			{Date: datePtr(2021, 1, 15), RawDate: "2021-01-15", OutTeamID: 1, InTeamID: 2},
		},
	}}

	result, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("run reconcile: %v", err)
	}
	if result.MilitanciesCreated != 1 {
		t.Fatalf("unexpected created count: got=%d want=1", result.MilitanciesCreated)
	}

	rows, err := militancyRepo.ListByPlayer(context.Background(), 10)
	if err != nil {
		t.Fatalf("list militancies: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("unexpected militancy count: got=%d want=1", len(rows))
	}

	got := rows[0]
	if got.TeamID != 1 || got.Year != 2020 {
		t.Fatalf("unexpected militancy identity: team=%d year=%d", got.TeamID, got.Year)
	}
	if !got.StartDate.Equal(time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start date: %v", got.StartDate)
	}
	if !got.EndDate.Equal(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end date: %v", got.EndDate)
	}

	foundUnknownTeam := false
	for _, w := range result.Warnings {
		if w.TeamID == 2 {
			foundUnknownTeam = true
		}
	}
	if !foundUnknownTeam {
		t.Fatalf("expected a warning for unknown team 2, got %v", result.Warnings)
	}
}

func TestReconcileService_Run_SecondRunLeavesBoundsUnchanged(t *testing.T) {
	service, militancyRepo, provider := newReconcileFixture(t)

	provider.histories[1] = []PlayerTransferHistory{{
		PlayerID: 10,
		Transfers: []TransferEvent{
			{Date: datePtr(2021, 1, 15), RawDate: "2021-01-15", OutTeamID: 1, InTeamID: 2},
		},
	}}

	if _, err := service.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	result, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.MilitanciesCreated != 0 || result.MilitanciesUpdated != 0 {
		t.Fatalf("second run mutated store: created=%d updated=%d", result.MilitanciesCreated, result.MilitanciesUpdated)
	}

	rows, err := militancyRepo.ListByPlayer(context.Background(), 10)
	if err != nil {
		t.Fatalf("list militancies: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("unexpected militancy count: got=%d want=1", len(rows))
	}
	if !rows[0].EndDate.Equal(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end date drifted on second run: %v", rows[0].EndDate)
	}
}

func TestReconcilePlayer_BothSidesEditedFromOneEvent(t *testing.T) {
	service, _, _ := newReconcileFixture(t)

	start := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC)
	existing := []militancy.Militancy{
		{PlayerID: 10, TeamID: 1, Year: 2020, StartDate: &start, EndDate: &end, Appearances: 12},
	}

	history := PlayerTransferHistory{
		PlayerID: 10,
		Transfers: []TransferEvent{
			{Date: datePtr(2021, 1, 15), RawDate: "2021-01-15", OutTeamID: 1, InTeamID: 3},
		},
	}

	outcome, err := service.ReconcilePlayer(context.Background(), history, existing)
	if err != nil {
		t.Fatalf("reconcile player: %v", err)
	}
	if len(outcome.Updated) != 1 {
		t.Fatalf("unexpected updated count: got=%d want=1", len(outcome.Updated))
	}
	if len(outcome.Created) != 1 {
		t.Fatalf("unexpected created count: got=%d want=1", len(outcome.Created))
	}

	closed := outcome.Updated[0]
	if closed.TeamID != 1 || !closed.EndDate.Equal(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("outgoing militancy not closed at the transfer date: team=%d end=%v", closed.TeamID, closed.EndDate)
	}

	opened := outcome.Created[0]
	if opened.TeamID != 3 || !opened.StartDate.Equal(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("incoming militancy not opened at the transfer date: team=%d start=%v", opened.TeamID, opened.StartDate)
	}
	if !opened.EndDate.Equal(end) {
		t.Fatalf("incoming militancy should keep the season end: %v", opened.EndDate)
	}
}

func TestReconcilePlayer_UnparseableDateIsReported(t *testing.T) {
	service, _, _ := newReconcileFixture(t)

	history := PlayerTransferHistory{
		PlayerID: 10,
		Transfers: []TransferEvent{
			{Date: nil, RawDate: "soon", OutTeamID: 1, InTeamID: 3},
		},
	}

	outcome, err := service.ReconcilePlayer(context.Background(), history, nil)
	if err != nil {
		t.Fatalf("reconcile player: %v", err)
	}
	if len(outcome.Warnings) != 1 {
		t.Fatalf("unexpected warning count: got=%d want=1", len(outcome.Warnings))
	}
	if !strings.Contains(outcome.Warnings[0].Reason, `"soon"`) {
		t.Fatalf("warning should carry the raw date text: %q", outcome.Warnings[0].Reason)
	}
	if len(outcome.Created)+len(outcome.Updated) != 0 {
		t.Fatalf("unparseable date must not edit anything")
	}
}

func TestReconcilePlayer_SelfTransferDoesNotInvertInterval(t *testing.T) {
	service, _, _ := newReconcileFixture(t)

	start := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC)
	existing := []militancy.Militancy{
		{PlayerID: 10, TeamID: 1, Year: 2020, StartDate: &start, EndDate: &end},
	}

	// Same team on both sides: the closing edit lands first and the
	// opening edit would push the start past the new end.
	history := PlayerTransferHistory{
		PlayerID: 10,
		Transfers: []TransferEvent{
			{Date: datePtr(2021, 1, 15), RawDate: "2021-01-15", OutTeamID: 1, InTeamID: 1},
		},
	}

	outcome, err := service.ReconcilePlayer(context.Background(), history, existing)
	if err != nil {
		t.Fatalf("reconcile player: %v", err)
	}

	if len(outcome.Updated) != 1 {
		t.Fatalf("unexpected updated count: got=%d want=1", len(outcome.Updated))
	}
	got := outcome.Updated[0]
	if !got.StartDate.Equal(start) {
		t.Fatalf("start must survive the skipped opening edit: %v", got.StartDate)
	}
	if !got.EndDate.Equal(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("closing edit should still apply: %v", got.EndDate)
	}
	if got.EndDate.Before(*got.StartDate) {
		t.Fatalf("interval inverted: start=%v end=%v", got.StartDate, got.EndDate)
	}

	foundInversionWarning := false
	for _, w := range outcome.Warnings {
		if strings.Contains(w.Reason, "invert") {
			foundInversionWarning = true
		}
	}
	if !foundInversionWarning {
		t.Fatalf("expected a skipped-edit warning, got %v", outcome.Warnings)
	}
}

func TestReconcilePlayer_OverlapsReportedNotMerged(t *testing.T) {
	service, _, _ := newReconcileFixture(t)

	aStart := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)
	aEnd := time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC)
	bStart := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	bEnd := time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)
	existing := []militancy.Militancy{
		{PlayerID: 10, TeamID: 1, Year: 2020, StartDate: &aStart, EndDate: &aEnd},
		{PlayerID: 10, TeamID: 3, Year: 2020, StartDate: &bStart, EndDate: &bEnd},
	}

	outcome, err := service.ReconcilePlayer(context.Background(), PlayerTransferHistory{PlayerID: 10}, existing)
	if err != nil {
		t.Fatalf("reconcile player: %v", err)
	}
	if len(outcome.Warnings) != 1 {
		t.Fatalf("unexpected warning count: got=%d want=1", len(outcome.Warnings))
	}
	if len(outcome.Militancies) != 2 {
		t.Fatalf("overlapping militancies must survive: got=%d want=2", len(outcome.Militancies))
	}
}

func TestPickSeason(t *testing.T) {
	seasons := []league.Season{
		{LeagueID: 1, Year: 2019, StartDate: time.Date(2019, 8, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2020, 5, 31, 0, 0, 0, 0, time.UTC)},
		{LeagueID: 1, Year: 2020, StartDate: time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC)},
	}

	t.Run("prefers the bracketing season", func(t *testing.T) {
		got, ok := pickSeason(seasons, time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC))
		if !ok || got.Year != 2020 {
			t.Fatalf("unexpected season: ok=%v year=%d", ok, got.Year)
		}
	})

	t.Run("falls back to the latest concluded season", func(t *testing.T) {
		got, ok := pickSeason(seasons, time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC))
		if !ok || got.Year != 2020 {
			t.Fatalf("unexpected season: ok=%v year=%d", ok, got.Year)
		}
	})

	t.Run("reports no season before the first start", func(t *testing.T) {
		_, ok := pickSeason(seasons, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))
		if ok {
			t.Fatalf("expected no season")
		}
	})
}

func TestMergeHistories(t *testing.T) {
	histories := []PlayerTransferHistory{
		{PlayerID: 10, Transfers: []TransferEvent{{RawDate: "2021-01-15", OutTeamID: 1, InTeamID: 3}}},
		{PlayerID: 10, Transfers: []TransferEvent{
			{RawDate: "2021-01-15", OutTeamID: 1, InTeamID: 3},
			{RawDate: "2021-06-30", OutTeamID: 3, InTeamID: 1},
		}},
		{PlayerID: 7, Transfers: []TransferEvent{{RawDate: "2020-09-01", OutTeamID: 2, InTeamID: 1}}},
	}

	merged := mergeHistories(histories)
	if len(merged) != 2 {
		t.Fatalf("unexpected player count: got=%d want=2", len(merged))
	}
	if merged[0].PlayerID != 7 || merged[1].PlayerID != 10 {
		t.Fatalf("merged histories not ordered by player id: %v, %v", merged[0].PlayerID, merged[1].PlayerID)
	}
	if len(merged[1].Transfers) != 2 {
		t.Fatalf("duplicate event survived merge: got=%d want=2", len(merged[1].Transfers))
	}
}
