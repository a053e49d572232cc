package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/calciodata/footballgraph/internal/domain/militancy"
	"github.com/calciodata/footballgraph/internal/domain/player"
	"github.com/calciodata/footballgraph/internal/domain/team"
	"github.com/calciodata/footballgraph/internal/platform/logging"
)

// ValuationInputs aggregates the resolved scrape into the three maps the
// propagation passes consume.
type ValuationInputs struct {
	LeagueIDs    []int64
	TeamValues   map[int64]int64
	PlayerValues map[int64]int64
}

// BuildValuationInputs merges resolved teams and players. A player whose
// team carries no scraped valuation gets defaultTeamValue so the team
// pass still reaches its roster.
func BuildValuationInputs(teams []ResolvedTeam, players []ResolvedPlayer, defaultTeamValue int64) ValuationInputs {
	leagueSet := make(map[int64]struct{})
	teamValues := make(map[int64]int64)
	for _, t := range teams {
		leagueSet[t.LeagueID] = struct{}{}
		teamValues[t.TeamID] = t.Value
	}

	for _, p := range players {
		if _, ok := teamValues[p.TeamID]; ok {
			continue
		}
		teamValues[p.TeamID] = defaultTeamValue
	}

	playerValues := make(map[int64]int64, len(players))
	for _, p := range players {
		playerValues[p.PlayerID] = p.Value
	}

	leagueIDs := make([]int64, 0, len(leagueSet))
	for id := range leagueSet {
		leagueIDs = append(leagueIDs, id)
	}
	sort.Slice(leagueIDs, func(i, j int) bool { return leagueIDs[i] < leagueIDs[j] })

	return ValuationInputs{LeagueIDs: leagueIDs, TeamValues: teamValues, PlayerValues: playerValues}
}

type ValuationConfig struct {
	// AssumedRosterSize divides a team valuation into a nominal
	// per-player average.
	AssumedRosterSize int
	// LongSeasonMinMatches gates the appearance sample: a season counts
	// only when some player exceeded this many appearances.
	LongSeasonMinMatches int
}

// ValuationService propagates market value estimates through rosters.
// Every pass only raises values; a previously assigned value is never
// lowered.
type ValuationService struct {
	teamRepo      team.Repository
	playerRepo    player.Repository
	militancyRepo militancy.Repository
	cfg           ValuationConfig
	logger        *logging.Logger
}

func NewValuationService(
	teamRepo team.Repository,
	playerRepo player.Repository,
	militancyRepo militancy.Repository,
	cfg ValuationConfig,
	logger *logging.Logger,
) *ValuationService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.AssumedRosterSize < 1 {
		cfg.AssumedRosterSize = 10
	}
	if cfg.LongSeasonMinMatches < 1 {
		cfg.LongSeasonMinMatches = 10
	}

	return &ValuationService{
		teamRepo:      teamRepo,
		playerRepo:    playerRepo,
		militancyRepo: militancyRepo,
		cfg:           cfg,
		logger:        logger,
	}
}

// Propagate runs the three passes in order: league baseline, team-value
// log formula, direct player overrides. Values accumulate in memory and
// commit once at the end.
func (s *ValuationService) Propagate(ctx context.Context, inputs ValuationInputs) error {
	values := newValueLedger(s.playerRepo)

	if err := s.applyBaseline(ctx, inputs.LeagueIDs, values); err != nil {
		return err
	}
	if err := s.applyTeamValues(ctx, inputs.TeamValues, values); err != nil {
		return err
	}
	for playerID, v := range inputs.PlayerValues {
		if err := s.raiseKnown(ctx, values, playerID, float64(v)); err != nil {
			return err
		}
	}

	changed := values.changed()
	s.logger.InfoContext(ctx, "propagating player values", "players", len(changed))
	if len(changed) == 0 {
		return nil
	}
	if err := s.playerRepo.SaveValues(ctx, changed); err != nil {
		return fmt.Errorf("save player values: %w", err)
	}

	return nil
}

// applyBaseline assigns value 1 to every player on a team playing the
// league's most recent year.
func (s *ValuationService) applyBaseline(ctx context.Context, leagueIDs []int64, values *valueLedger) error {
	for _, leagueID := range leagueIDs {
		memberships, err := s.teamRepo.ListMembershipsByLeague(ctx, leagueID)
		if err != nil {
			return fmt.Errorf("list memberships league_id=%d: %w", leagueID, err)
		}
		if len(memberships) == 0 {
			continue
		}

		maxYear := memberships[0].Year
		for _, m := range memberships {
			if m.Year > maxYear {
				maxYear = m.Year
			}
		}

		for _, m := range memberships {
			if m.Year != maxYear {
				continue
			}
			mils, err := s.militancyRepo.ListByTeam(ctx, m.TeamID)
			if err != nil {
				return fmt.Errorf("list militancies team_id=%d: %w", m.TeamID, err)
			}
			for _, mil := range mils {
				if mil.Year != maxYear {
					continue
				}
				if err := s.raiseKnown(ctx, values, mil.PlayerID, 1); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// applyTeamValues distributes a team's scraped valuation across its most
// recent long-enough season with a logarithmic appearance weight: the
// base is chosen so a player at the season's maximum appearance count
// lands on the nominal per-player average.
func (s *ValuationService) applyTeamValues(ctx context.Context, teamValues map[int64]int64, values *valueLedger) error {
	teamIDs := make([]int64, 0, len(teamValues))
	for id := range teamValues {
		teamIDs = append(teamIDs, id)
	}
	sort.Slice(teamIDs, func(i, j int) bool { return teamIDs[i] < teamIDs[j] })

	for _, teamID := range teamIDs {
		playerAverage := teamValues[teamID] / int64(s.cfg.AssumedRosterSize)
		if playerAverage <= 0 {
			s.logger.WarnContext(ctx, "team value too small to distribute", "team_id", teamID, "value", teamValues[teamID])
			continue
		}

		mils, err := s.militancyRepo.ListByTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("list militancies team_id=%d: %w", teamID, err)
		}
		if len(mils) == 0 {
			continue
		}

		season, maxAppearances, ok := latestLongSeason(mils, s.cfg.LongSeasonMinMatches)
		if !ok {
			s.logger.WarnContext(ctx, "no long enough season for team valuation", "team_id", teamID)
			continue
		}

		logBase := math.Pow(float64(maxAppearances), 1/float64(playerAverage))
		for _, mil := range mils {
			if mil.Year != season {
				continue
			}
			weighted := float64(int(math.Log(float64(mil.Appearances+1)) / math.Log(logBase)))
			if err := s.raiseKnown(ctx, values, mil.PlayerID, weighted); err != nil {
				return err
			}
		}
	}

	return nil
}

// raiseKnown raises a player's pending value, skipping ids that have no
// canonical player row.
func (s *ValuationService) raiseKnown(ctx context.Context, values *valueLedger, playerID int64, value float64) error {
	err := values.raise(ctx, playerID, value)
	if errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "skipping value for unknown player", "player_id", playerID)
		return nil
	}
	return err
}

// latestLongSeason walks the team's militancy years from most recent
// backward until one clears the appearance gate.
func latestLongSeason(mils []militancy.Militancy, minMatches int) (int, int, bool) {
	minYear, maxYear := mils[0].Year, mils[0].Year
	for _, m := range mils {
		if m.Year < minYear {
			minYear = m.Year
		}
		if m.Year > maxYear {
			maxYear = m.Year
		}
	}

	for year := maxYear; year >= minYear; year-- {
		maxAppearances := 0
		for _, m := range mils {
			if m.Year == year && m.Appearances > maxAppearances {
				maxAppearances = m.Appearances
			}
		}
		if maxAppearances > minMatches {
			return year, maxAppearances, true
		}
	}

	return 0, 0, false
}

// valueLedger tracks pending per-player values, seeded lazily from the
// store so every assignment is a max against the current value.
type valueLedger struct {
	playerRepo player.Repository
	current    map[int64]float64
	dirty      map[int64]bool
}

func newValueLedger(playerRepo player.Repository) *valueLedger {
	return &valueLedger{
		playerRepo: playerRepo,
		current:    make(map[int64]float64),
		dirty:      make(map[int64]bool),
	}
}

func (l *valueLedger) raise(ctx context.Context, playerID int64, value float64) error {
	existing, ok := l.current[playerID]
	if !ok {
		p, found, err := l.playerRepo.GetByID(ctx, playerID)
		if err != nil {
			return fmt.Errorf("get player player_id=%d: %w", playerID, err)
		}
		if !found {
			return fmt.Errorf("%w: player player_id=%d", ErrNotFound, playerID)
		}
		existing = p.Value
		l.current[playerID] = existing
	}

	if value > existing {
		l.current[playerID] = value
		l.dirty[playerID] = true
	}

	return nil
}

func (l *valueLedger) changed() map[int64]float64 {
	out := make(map[int64]float64, len(l.dirty))
	for playerID := range l.dirty {
		out[playerID] = l.current[playerID]
	}
	return out
}
