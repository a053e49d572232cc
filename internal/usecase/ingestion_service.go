package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/calciodata/footballgraph/internal/domain/league"
	"github.com/calciodata/footballgraph/internal/domain/militancy"
	"github.com/calciodata/footballgraph/internal/domain/player"
	"github.com/calciodata/footballgraph/internal/domain/team"
	"github.com/calciodata/footballgraph/internal/platform/logging"
)

// ExternalSeason is a season row from the stats API. Dates stay nil when
// the feed omitted or mangled them.
type ExternalSeason struct {
	Year      int
	StartDate *time.Time
	EndDate   *time.Time
}

type ExternalLeague struct {
	ID          int64
	Name        string
	CountryCode string
	LogoURL     string
	Seasons     []ExternalSeason
}

type ExternalTeamStat struct {
	TeamID      int64
	TeamName    string
	LogoURL     string
	Appearances int
}

type ExternalPlayerSeason struct {
	PlayerID  int64
	FirstName string
	LastName  string
	Position  string
	PhotoURL  string
	Stats     []ExternalTeamStat
}

// ExternalTeamLeague lists the years a team competed in a league.
type ExternalTeamLeague struct {
	LeagueID int64
	Years    []int
}

// StatsProvider is the paginated, rate-limited stats API the ingestion
// phase consumes. Partial pagination surfaces as a shorter slice, not an
// error.
type StatsProvider interface {
	FetchLeagues(ctx context.Context) ([]ExternalLeague, error)
	FetchLeaguePlayers(ctx context.Context, leagueID int64, year int) ([]ExternalPlayerSeason, error)
	FetchTeamLeagues(ctx context.Context, teamID int64) ([]ExternalTeamLeague, error)
}

type IngestionConfig struct {
	Workers  int
	YearFrom int
	YearTo   int
}

// IngestionService populates the canonical store from the stats API:
// leagues with complete season calendars, then per-season rosters, then
// per-team league memberships.
type IngestionService struct {
	provider      StatsProvider
	leagueRepo    league.Repository
	teamRepo      team.Repository
	playerRepo    player.Repository
	militancyRepo militancy.Repository
	cfg           IngestionConfig
	logger        *logging.Logger
}

func NewIngestionService(
	provider StatsProvider,
	leagueRepo league.Repository,
	teamRepo team.Repository,
	playerRepo player.Repository,
	militancyRepo militancy.Repository,
	cfg IngestionConfig,
	logger *logging.Logger,
) *IngestionService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}

	return &IngestionService{
		provider:      provider,
		leagueRepo:    leagueRepo,
		teamRepo:      teamRepo,
		playerRepo:    playerRepo,
		militancyRepo: militancyRepo,
		cfg:           cfg,
		logger:        logger,
	}
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Leagues     int
	Teams       int
	Players     int
	Militancies int
	Memberships int
}

func (s *IngestionService) Run(ctx context.Context) (IngestResult, error) {
	var result IngestResult

	leagues, err := s.provider.FetchLeagues(ctx)
	if err != nil {
		return result, fmt.Errorf("fetch leagues: %w", err)
	}

	kept, seasonsByLeague := s.filterLeagues(ctx, leagues)
	s.logger.InfoContext(ctx, "storing leagues", "count", len(kept))
	if err := s.leagueRepo.UpsertLeagues(ctx, kept); err != nil {
		return result, fmt.Errorf("upsert leagues: %w", err)
	}
	for _, l := range kept {
		if err := s.leagueRepo.UpsertSeasons(ctx, seasonsByLeague[l.ID]); err != nil {
			return result, fmt.Errorf("upsert seasons league_id=%d: %w", l.ID, err)
		}
	}
	result.Leagues = len(kept)

	teams, players, militancies, err := s.fetchRosters(ctx, kept, seasonsByLeague)
	if err != nil {
		return result, err
	}

	s.logger.InfoContext(ctx, "storing rosters", "teams", len(teams), "players", len(players), "militancies", len(militancies))
	if err := s.teamRepo.UpsertTeams(ctx, teams); err != nil {
		return result, fmt.Errorf("upsert teams: %w", err)
	}
	if err := s.playerRepo.UpsertPlayers(ctx, players); err != nil {
		return result, fmt.Errorf("upsert players: %w", err)
	}
	if err := s.militancyRepo.UpsertMilitancies(ctx, militancies); err != nil {
		return result, fmt.Errorf("upsert militancies: %w", err)
	}
	result.Teams = len(teams)
	result.Players = len(players)
	result.Militancies = len(militancies)

	memberships, err := s.fetchMemberships(ctx, teams, kept)
	if err != nil {
		return result, err
	}
	s.logger.InfoContext(ctx, "storing team memberships", "count", len(memberships))
	if err := s.teamRepo.UpsertMemberships(ctx, memberships); err != nil {
		return result, fmt.Errorf("upsert memberships: %w", err)
	}
	result.Memberships = len(memberships)

	return result, nil
}

// filterLeagues keeps leagues whose seasons in the configured year window
// all carry complete dates. One incomplete season disqualifies the whole
// league; half a calendar would poison interval invariants downstream.
func (s *IngestionService) filterLeagues(ctx context.Context, leagues []ExternalLeague) ([]league.League, map[int64][]league.Season) {
	var kept []league.League
	seasonsByLeague := make(map[int64][]league.Season)

	for _, l := range leagues {
		if l.ID <= 0 {
			continue
		}

		var seasons []league.Season
		complete := true
		for _, es := range l.Seasons {
			if es.Year < s.cfg.YearFrom || es.Year > s.cfg.YearTo {
				continue
			}
			if es.StartDate == nil || es.EndDate == nil {
				complete = false
				break
			}
			seasons = append(seasons, league.Season{
				LeagueID:  l.ID,
				Year:      es.Year,
				StartDate: *es.StartDate,
				EndDate:   *es.EndDate,
			})
		}
		if !complete || len(seasons) == 0 {
			s.logger.WarnContext(ctx, "skipping league with incomplete seasons", "league_id", l.ID, "name", l.Name)
			continue
		}

		kept = append(kept, league.League{
			ID:          l.ID,
			DisplayName: asciiFold(l.Name),
			CountryCode: l.CountryCode,
			ImageURL:    l.LogoURL,
		})
		seasonsByLeague[l.ID] = seasons
	}

	return kept, seasonsByLeague
}

func (s *IngestionService) fetchRosters(
	ctx context.Context,
	leagues []league.League,
	seasonsByLeague map[int64][]league.Season,
) ([]team.Team, []player.Player, []militancy.Militancy, error) {
	type rosterTask struct {
		leagueID int64
		season   league.Season
	}

	var tasks []rosterTask
	for _, l := range leagues {
		for _, season := range seasonsByLeague[l.ID] {
			tasks = append(tasks, rosterTask{leagueID: l.ID, season: season})
		}
	}
	s.logger.InfoContext(ctx, "fetching league rosters", "tasks", len(tasks))

	workerPool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer workerPool.Release()

	var (
		mu          sync.Mutex
		teams       []team.Team
		players     []player.Player
		militancies []militancy.Militancy
		workers     sync.WaitGroup
	)
	for _, task := range tasks {
		task := task
		workers.Add(1)
		if err := workerPool.Submit(func() {
			defer workers.Done()

			fetched, err := s.provider.FetchLeaguePlayers(ctx, task.leagueID, task.season.Year)
			if err != nil {
				s.logger.WarnContext(ctx, "fetch league players failed", "league_id", task.leagueID, "year", task.season.Year, "error", err)
				return
			}

			t, p, m := mapRoster(fetched, task.season)
			mu.Lock()
			teams = append(teams, t...)
			players = append(players, p...)
			militancies = append(militancies, m...)
			mu.Unlock()
		}); err != nil {
			workers.Done()
			return nil, nil, nil, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()

	return dedupeTeamRows(teams), dedupePlayerRows(players), dedupeMilitancyRows(militancies), nil
}

// mapRoster flattens one season's player page into store rows. Statistics
// without a team id and players without an id are dropped; militancies
// are seeded with the season's full window.
func mapRoster(fetched []ExternalPlayerSeason, season league.Season) ([]team.Team, []player.Player, []militancy.Militancy) {
	var teams []team.Team
	var players []player.Player
	var militancies []militancy.Militancy

	for _, p := range fetched {
		if p.PlayerID <= 0 || len(p.Stats) == 0 {
			continue
		}

		players = append(players, player.Player{
			ID:       p.PlayerID,
			Name:     asciiFold(p.FirstName),
			Surname:  asciiFold(p.LastName),
			Position: p.Position,
			ImageURL: p.PhotoURL,
		})

		for _, stat := range p.Stats {
			if stat.TeamID <= 0 {
				continue
			}
			teams = append(teams, team.Team{
				ID:       stat.TeamID,
				Name:     asciiFold(stat.TeamName),
				ImageURL: stat.LogoURL,
			})

			start, end := season.StartDate, season.EndDate
			militancies = append(militancies, militancy.Militancy{
				PlayerID:    p.PlayerID,
				TeamID:      stat.TeamID,
				Year:        season.Year,
				StartDate:   &start,
				EndDate:     &end,
				Appearances: stat.Appearances,
			})
		}
	}

	return teams, players, militancies
}

func (s *IngestionService) fetchMemberships(ctx context.Context, teams []team.Team, leagues []league.League) ([]team.Membership, error) {
	knownLeagues := make(map[int64]struct{}, len(leagues))
	for _, l := range leagues {
		knownLeagues[l.ID] = struct{}{}
	}

	workerPool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer workerPool.Release()

	var (
		mu          sync.Mutex
		memberships []team.Membership
		workers     sync.WaitGroup
	)
	for _, t := range teams {
		t := t
		workers.Add(1)
		if err := workerPool.Submit(func() {
			defer workers.Done()

			fetched, err := s.provider.FetchTeamLeagues(ctx, t.ID)
			if err != nil {
				s.logger.WarnContext(ctx, "fetch team leagues failed", "team_id", t.ID, "error", err)
				return
			}
			if len(fetched) == 0 {
				s.logger.WarnContext(ctx, "no membership found for team", "team_id", t.ID)
				return
			}

			var rows []team.Membership
			for _, tl := range fetched {
				if _, known := knownLeagues[tl.LeagueID]; !known {
					continue
				}
				for _, year := range tl.Years {
					if year < s.cfg.YearFrom || year > s.cfg.YearTo {
						continue
					}
					rows = append(rows, team.Membership{TeamID: t.ID, LeagueID: tl.LeagueID, Year: year})
				}
			}

			mu.Lock()
			memberships = append(memberships, rows...)
			mu.Unlock()
		}); err != nil {
			workers.Done()
			return nil, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()

	return dedupeMembershipRows(memberships), nil
}

// Aggregation after the pool joins is single-threaded and keyed by
// natural identity; the last row wins on conflicts.

func dedupeTeamRows(rows []team.Team) []team.Team {
	byID := make(map[int64]team.Team, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]team.Team, 0, len(byID))
	for _, row := range byID {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func dedupePlayerRows(rows []player.Player) []player.Player {
	byID := make(map[int64]player.Player, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]player.Player, 0, len(byID))
	for _, row := range byID {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func dedupeMilitancyRows(rows []militancy.Militancy) []militancy.Militancy {
	type tripleKey struct {
		player, team int64
		year         int
	}
	byKey := make(map[tripleKey]militancy.Militancy, len(rows))
	order := make([]tripleKey, 0, len(rows))
	for _, row := range rows {
		key := tripleKey{player: row.PlayerID, team: row.TeamID, year: row.Year}
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = row
	}
	out := make([]militancy.Militancy, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

func dedupeMembershipRows(rows []team.Membership) []team.Membership {
	type tripleKey struct {
		team, league int64
		year         int
	}
	byKey := make(map[tripleKey]struct{}, len(rows))
	out := make([]team.Membership, 0, len(rows))
	for _, row := range rows {
		key := tripleKey{team: row.TeamID, league: row.LeagueID, year: row.Year}
		if _, ok := byKey[key]; ok {
			continue
		}
		byKey[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

// asciiFold strips diacritics so scraped names compare against the same
// canonical spelling everywhere.
func asciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
