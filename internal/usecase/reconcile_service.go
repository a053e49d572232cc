package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/calciodata/footballgraph/internal/domain/league"
	"github.com/calciodata/footballgraph/internal/domain/militancy"
	"github.com/calciodata/footballgraph/internal/domain/player"
	"github.com/calciodata/footballgraph/internal/domain/team"
	"github.com/calciodata/footballgraph/internal/platform/logging"
)

// TransferEvent is one dated move between two teams. Date is nil when the
// upstream feed carried an unparseable date; RawDate keeps the original
// text for diagnostics.
type TransferEvent struct {
	Date      *time.Time
	RawDate   string
	OutTeamID int64
	InTeamID  int64
}

// PlayerTransferHistory groups a player's transfer events as fetched from
// the stats feed. The events are not guaranteed to be sorted.
type PlayerTransferHistory struct {
	PlayerID  int64
	Transfers []TransferEvent
}

// ReconcileWarning records a skipped reconciliation step with enough
// context to audit it later.
type ReconcileWarning struct {
	PlayerID int64  `json:"player_id"`
	TeamID   int64  `json:"team_id,omitempty"`
	Reason   string `json:"reason"`
}

// TransferProvider fetches per-team transfer feeds.
type TransferProvider interface {
	FetchTeamTransfers(ctx context.Context, teamID int64) ([]PlayerTransferHistory, error)
}

// ReconcileResult summarizes one reconciliation run.
type ReconcileResult struct {
	PlayersProcessed   int
	MilitanciesCreated int
	MilitanciesUpdated int
	Warnings           []ReconcileWarning
}

type ReconcileConfig struct {
	FetchWorkers int
}

// ReconcileService derives militancy interval boundaries from transfer
// events and the season calendar.
type ReconcileService struct {
	provider      TransferProvider
	leagueRepo    league.Repository
	teamRepo      team.Repository
	playerRepo    player.Repository
	militancyRepo militancy.Repository
	cfg           ReconcileConfig
	logger        *logging.Logger
}

func NewReconcileService(
	provider TransferProvider,
	leagueRepo league.Repository,
	teamRepo team.Repository,
	playerRepo player.Repository,
	militancyRepo militancy.Repository,
	cfg ReconcileConfig,
	logger *logging.Logger,
) *ReconcileService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FetchWorkers < 1 {
		cfg.FetchWorkers = 4
	}

	return &ReconcileService{
		provider:      provider,
		leagueRepo:    leagueRepo,
		teamRepo:      teamRepo,
		playerRepo:    playerRepo,
		militancyRepo: militancyRepo,
		cfg:           cfg,
		logger:        logger,
	}
}

// Run fetches every team's transfer feed, merges the feeds per player and
// reconciles each player's timeline. A failed fetch or a malformed player
// history is logged and skipped; the run continues.
func (s *ReconcileService) Run(ctx context.Context) (ReconcileResult, error) {
	teamIDs, err := s.teamRepo.ListIDs(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list team ids: %w", err)
	}

	histories, err := s.fetchTransfers(ctx, teamIDs)
	if err != nil {
		return ReconcileResult{}, err
	}

	merged := mergeHistories(histories)
	s.logger.InfoContext(ctx, "reconciling player timelines", "players", len(merged))

	var result ReconcileResult
	for _, history := range merged {
		existing, err := s.militancyRepo.ListByPlayer(ctx, history.PlayerID)
		if err != nil {
			return result, fmt.Errorf("list militancies player_id=%d: %w", history.PlayerID, err)
		}

		outcome, err := s.ReconcilePlayer(ctx, history, existing)
		if err != nil {
			return result, err
		}

		for _, created := range outcome.Created {
			if err := s.militancyRepo.UpsertMilitancies(ctx, []militancy.Militancy{created}); err != nil {
				return result, fmt.Errorf("upsert militancy player_id=%d team_id=%d: %w", created.PlayerID, created.TeamID, err)
			}
		}
		for _, updated := range outcome.Updated {
			if err := s.militancyRepo.SaveBounds(ctx, updated); err != nil {
				return result, fmt.Errorf("save bounds player_id=%d team_id=%d: %w", updated.PlayerID, updated.TeamID, err)
			}
		}

		result.PlayersProcessed++
		result.MilitanciesCreated += len(outcome.Created)
		result.MilitanciesUpdated += len(outcome.Updated)
		result.Warnings = append(result.Warnings, outcome.Warnings...)
	}

	for _, w := range result.Warnings {
		s.logger.WarnContext(ctx, "reconcile skip", "player_id", w.PlayerID, "team_id", w.TeamID, "reason", w.Reason)
	}

	return result, nil
}

// ReconcileOutcome is the in-memory effect of reconciling one player.
type ReconcileOutcome struct {
	Militancies []militancy.Militancy
	Created     []militancy.Militancy
	Updated     []militancy.Militancy
	Warnings    []ReconcileWarning
}

// ReconcilePlayer walks the player's transfer events in date order and
// edits militancy bounds. Both sides of one event are resolved against
// the pre-edit interval set, so an event's own outgoing edit cannot hide
// the militancy its incoming side needs; edits become visible to the
// next event.
func (s *ReconcileService) ReconcilePlayer(
	ctx context.Context,
	history PlayerTransferHistory,
	existing []militancy.Militancy,
) (ReconcileOutcome, error) {
	var outcome ReconcileOutcome

	if history.PlayerID <= 0 {
		outcome.Warnings = append(outcome.Warnings, ReconcileWarning{Reason: "transfer history without player id"})
		return outcome, nil
	}

	mils := make([]*militancy.Militancy, 0, len(existing))
	for i := range existing {
		copied := existing[i]
		mils = append(mils, &copied)
	}
	createdIdx := make(map[*militancy.Militancy]bool)
	updatedIdx := make(map[*militancy.Militancy]bool)

	transfers := append([]TransferEvent(nil), history.Transfers...)
	sort.SliceStable(transfers, func(i, j int) bool {
		if transfers[i].Date == nil || transfers[j].Date == nil {
			return transfers[j].Date != nil
		}
		return transfers[i].Date.Before(*transfers[j].Date)
	})

	warn := func(teamID int64, reason string) {
		outcome.Warnings = append(outcome.Warnings, ReconcileWarning{
			PlayerID: history.PlayerID,
			TeamID:   teamID,
			Reason:   reason,
		})
	}

	for _, transfer := range transfers {
		if transfer.Date == nil {
			warn(0, fmt.Sprintf("unparseable transfer date %q", transfer.RawDate))
			continue
		}
		date := *transfer.Date

		type boundEdit struct {
			target  *militancy.Militancy
			closing bool
		}
		var edits []boundEdit

		sides := []struct {
			teamID  int64
			closing bool
		}{
			{transfer.OutTeamID, true},
			{transfer.InTeamID, false},
		}
		for _, side := range sides {
			if side.teamID <= 0 {
				warn(side.teamID, "transfer side without team id")
				continue
			}

			if !hasTeamMilitancy(mils, side.teamID) {
				created, reason, err := s.createMilitancyIfPossible(ctx, history.PlayerID, side.teamID, date)
				if err != nil {
					return outcome, err
				}
				if created == nil {
					warn(side.teamID, reason)
					continue
				}
				mils = append(mils, created)
				createdIdx[created] = true
			}

			target := bracketingMilitancy(mils, side.teamID, date)
			if target == nil {
				warn(side.teamID, "no militancy brackets the transfer date")
				continue
			}
			edits = append(edits, boundEdit{target: target, closing: side.closing})
		}

		for _, edit := range edits {
			if edit.closing {
				if edit.target.StartDate != nil && !edit.target.StartDate.Before(date) {
					warn(edit.target.TeamID, "closing edit would invert the interval")
					continue
				}
				d := date
				edit.target.EndDate = &d
			} else {
				if edit.target.EndDate != nil && !edit.target.EndDate.After(date) {
					warn(edit.target.TeamID, "opening edit would invert the interval")
					continue
				}
				d := date
				edit.target.StartDate = &d
			}
			if !createdIdx[edit.target] {
				updatedIdx[edit.target] = true
			}
		}
	}

	for _, m := range mils {
		outcome.Militancies = append(outcome.Militancies, *m)
		if createdIdx[m] {
			outcome.Created = append(outcome.Created, *m)
		}
		if updatedIdx[m] {
			outcome.Updated = append(outcome.Updated, *m)
		}
	}

	for _, w := range overlapWarnings(history.PlayerID, outcome.Militancies) {
		outcome.Warnings = append(outcome.Warnings, w)
	}

	return outcome, nil
}

// createMilitancyIfPossible seeds a new militancy from the season that
// brackets the transfer date, or from the most recently concluded season
// when none does. Returns a nil militancy plus a reason when creation is
// impossible.
func (s *ReconcileService) createMilitancyIfPossible(
	ctx context.Context,
	playerID, teamID int64,
	date time.Time,
) (*militancy.Militancy, string, error) {
	_, found, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, "", fmt.Errorf("get team team_id=%d: %w", teamID, err)
	}
	if !found {
		return nil, "team not in canonical store", nil
	}

	memberships, err := s.teamRepo.ListMemberships(ctx, teamID)
	if err != nil {
		return nil, "", fmt.Errorf("list memberships team_id=%d: %w", teamID, err)
	}
	if len(memberships) == 0 {
		return nil, "team has no league affiliation", nil
	}

	exists, err := s.playerRepo.Exists(ctx, playerID)
	if err != nil {
		return nil, "", fmt.Errorf("check player player_id=%d: %w", playerID, err)
	}
	if !exists {
		return nil, "player not in canonical store", nil
	}

	leagueIDs := make([]int64, 0, len(memberships))
	seen := make(map[int64]struct{}, len(memberships))
	for _, m := range memberships {
		if _, ok := seen[m.LeagueID]; ok {
			continue
		}
		seen[m.LeagueID] = struct{}{}
		leagueIDs = append(leagueIDs, m.LeagueID)
	}

	seasons, err := s.leagueRepo.ListSeasons(ctx, leagueIDs)
	if err != nil {
		return nil, "", fmt.Errorf("list seasons team_id=%d: %w", teamID, err)
	}

	season, ok := pickSeason(seasons, date)
	if !ok {
		return nil, "transfer predates all known seasons", nil
	}

	start, end := season.StartDate, season.EndDate
	return &militancy.Militancy{
		PlayerID:    playerID,
		TeamID:      teamID,
		Year:        season.Year,
		StartDate:   &start,
		EndDate:     &end,
		Appearances: 0,
	}, "", nil
}

// pickSeason prefers the season strictly bracketing the date, breaking
// ties by earliest start. Failing that it falls back to the most recently
// concluded season before the date.
func pickSeason(seasons []league.Season, date time.Time) (league.Season, bool) {
	var bracketing []league.Season
	for _, s := range seasons {
		if s.Brackets(date) {
			bracketing = append(bracketing, s)
		}
	}
	if len(bracketing) > 0 {
		sort.SliceStable(bracketing, func(i, j int) bool {
			return bracketing[i].StartDate.Before(bracketing[j].StartDate)
		})
		return bracketing[0], true
	}

	var concluded []league.Season
	for _, s := range seasons {
		if s.EndDate.Before(date) {
			concluded = append(concluded, s)
		}
	}
	if len(concluded) == 0 {
		return league.Season{}, false
	}
	sort.SliceStable(concluded, func(i, j int) bool {
		return concluded[i].EndDate.Before(concluded[j].EndDate)
	})
	return concluded[len(concluded)-1], true
}

func hasTeamMilitancy(mils []*militancy.Militancy, teamID int64) bool {
	for _, m := range mils {
		if m.TeamID == teamID {
			return true
		}
	}
	return false
}

func bracketingMilitancy(mils []*militancy.Militancy, teamID int64, date time.Time) *militancy.Militancy {
	for _, m := range mils {
		if m.TeamID == teamID && m.Brackets(date) {
			return m
		}
	}
	return nil
}

// overlapWarnings reports pairwise overlaps across teams after
// reconciliation. Overlaps are never merged away; they flag unresolved
// concurrent-team data.
func overlapWarnings(playerID int64, mils []militancy.Militancy) []ReconcileWarning {
	var warnings []ReconcileWarning
	for i := 0; i < len(mils); i++ {
		for j := i + 1; j < len(mils); j++ {
			if mils[i].TeamID == mils[j].TeamID {
				continue
			}
			if mils[i].Overlaps(mils[j]) {
				warnings = append(warnings, ReconcileWarning{
					PlayerID: playerID,
					TeamID:   mils[j].TeamID,
					Reason: fmt.Sprintf("militancy overlaps team %d year %d with team %d year %d",
						mils[i].TeamID, mils[i].Year, mils[j].TeamID, mils[j].Year),
				})
			}
		}
	}
	return warnings
}

func (s *ReconcileService) fetchTransfers(ctx context.Context, teamIDs []int64) ([]PlayerTransferHistory, error) {
	pool, err := ants.NewPool(s.cfg.FetchWorkers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu        sync.Mutex
		histories []PlayerTransferHistory
		workers   sync.WaitGroup
	)
	for _, teamID := range teamIDs {
		teamID := teamID
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			fetched, err := s.provider.FetchTeamTransfers(ctx, teamID)
			if err != nil {
				s.logger.WarnContext(ctx, "fetch team transfers failed", "team_id", teamID, "error", err)
				return
			}

			mu.Lock()
			histories = append(histories, fetched...)
			mu.Unlock()
		}); err != nil {
			workers.Done()
			return nil, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()

	return histories, nil
}

// mergeHistories folds per-team feeds into one history per player,
// dropping duplicate events. Output is ordered by player id so runs are
// reproducible.
func mergeHistories(histories []PlayerTransferHistory) []PlayerTransferHistory {
	type eventKey struct {
		raw string
		out int64
		in  int64
	}

	byPlayer := make(map[int64]*PlayerTransferHistory)
	seen := make(map[int64]map[eventKey]struct{})
	for _, history := range histories {
		if history.PlayerID <= 0 {
			continue
		}
		merged, ok := byPlayer[history.PlayerID]
		if !ok {
			merged = &PlayerTransferHistory{PlayerID: history.PlayerID}
			byPlayer[history.PlayerID] = merged
			seen[history.PlayerID] = make(map[eventKey]struct{})
		}
		for _, tr := range history.Transfers {
			key := eventKey{raw: tr.RawDate, out: tr.OutTeamID, in: tr.InTeamID}
			if _, dup := seen[history.PlayerID][key]; dup {
				continue
			}
			seen[history.PlayerID][key] = struct{}{}
			merged.Transfers = append(merged.Transfers, tr)
		}
	}

	playerIDs := make([]int64, 0, len(byPlayer))
	for id := range byPlayer {
		playerIDs = append(playerIDs, id)
	}
	sort.Slice(playerIDs, func(i, j int) bool { return playerIDs[i] < playerIDs[j] })

	out := make([]PlayerTransferHistory, 0, len(playerIDs))
	for _, id := range playerIDs {
		out = append(out, *byPlayer[id])
	}
	return out
}
