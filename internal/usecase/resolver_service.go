package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/calciodata/footballgraph/internal/domain/league"
	"github.com/calciodata/footballgraph/internal/domain/militancy"
	"github.com/calciodata/footballgraph/internal/domain/player"
	"github.com/calciodata/footballgraph/internal/domain/team"
	"github.com/calciodata/footballgraph/internal/platform/logging"
	"github.com/calciodata/footballgraph/internal/platform/similarity"
)

// ScrapedEntity is one valuation row from the scrape: a name, the name of
// its context (league for a team, team for a player) and a
// currency-normalized value.
type ScrapedEntity struct {
	Name    string `json:"name"`
	Context string `json:"context"`
	Value   int64  `json:"value"`
}

// ResolvedTeam binds a scraped team row to canonical identities.
type ResolvedTeam struct {
	TeamID     int64
	LeagueID   int64
	TeamName   string
	LeagueName string
	Value      int64
}

// ResolvedPlayer binds a scraped player row to canonical identities.
type ResolvedPlayer struct {
	PlayerID   int64
	TeamID     int64
	PlayerName string
	TeamName   string
	Value      int64
}

type ResolverConfig struct {
	Threshold            int
	PlayerCandidateLimit int
	TeamCandidateLimit   int
	Workers              int
	DumpDir              string
}

// ResolverService maps free-text scraped names onto canonical database
// identities via string similarity. Unresolvable rows are reported, never
// guessed.
type ResolverService struct {
	leagueRepo    league.Repository
	teamRepo      team.Repository
	playerRepo    player.Repository
	militancyRepo militancy.Repository
	score         similarity.Scorer
	cfg           ResolverConfig
	logger        *logging.Logger
}

func NewResolverService(
	leagueRepo league.Repository,
	teamRepo team.Repository,
	playerRepo player.Repository,
	militancyRepo militancy.Repository,
	score similarity.Scorer,
	cfg ResolverConfig,
	logger *logging.Logger,
) *ResolverService {
	if logger == nil {
		logger = logging.Default()
	}
	if score == nil {
		score = similarity.PartialRatio
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 70
	}
	if cfg.PlayerCandidateLimit < 1 {
		cfg.PlayerCandidateLimit = 10
	}
	if cfg.TeamCandidateLimit < 1 {
		cfg.TeamCandidateLimit = 5
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}

	return &ResolverService{
		leagueRepo:    leagueRepo,
		teamRepo:      teamRepo,
		playerRepo:    playerRepo,
		militancyRepo: militancyRepo,
		score:         score,
		cfg:           cfg,
		logger:        logger,
	}
}

var camelBoundary = regexp.MustCompile(`[a-z][A-Z]`)

// Known source spellings that never match their canonical counterparts
// above the threshold.
var leagueAliases = map[string]string{
	"SÃ©rie A":     "Serie A",
	"Liga Portugal": "Primeira Liga",
	"Premier Liga":  "Premier League",
}

var teamAliases = map[string]string{}

// NormalizeName splits concatenated camel-cased scrape artifacts and
// replaces hyphens with spaces.
func NormalizeName(s string) string {
	s = camelBoundary.ReplaceAllStringFunc(s, func(match string) string {
		return match[:1] + " " + match[1:]
	})
	return strings.ReplaceAll(s, "-", " ")
}

func NormalizeLeagueName(s string) string {
	s = NormalizeName(s)
	if fixed, ok := leagueAliases[s]; ok {
		return fixed
	}
	return s
}

func NormalizeTeamName(s string) string {
	s = NormalizeName(s)
	if fixed, ok := teamAliases[s]; ok {
		return fixed
	}
	return s
}

type teamCandidate struct {
	teamID     int64
	leagueID   int64
	teamName   string
	leagueName string
	score      int
}

// ResolveTeam matches a scraped (team, league) name pair. The primary
// pass matches exact team names and scores league names; the secondary
// pass matches exact league names and scores team names.
func (s *ResolverService) ResolveTeam(ctx context.Context, teamName, leagueName string) (ResolvedTeam, bool, error) {
	teamName = NormalizeTeamName(teamName)
	leagueName = NormalizeLeagueName(leagueName)

	teams, err := s.teamRepo.FindByName(ctx, teamName)
	if err != nil {
		return ResolvedTeam{}, false, fmt.Errorf("find teams name=%q: %w", teamName, err)
	}

	var candidates []teamCandidate
	for _, t := range teams {
		memberships, err := s.teamRepo.ListMemberships(ctx, t.ID)
		if err != nil {
			return ResolvedTeam{}, false, fmt.Errorf("list memberships team_id=%d: %w", t.ID, err)
		}
		for _, m := range dedupeLeagues(memberships) {
			l, found, err := s.leagueRepo.GetByID(ctx, m)
			if err != nil {
				return ResolvedTeam{}, false, fmt.Errorf("get league league_id=%d: %w", m, err)
			}
			if !found {
				continue
			}
			candidates = append(candidates, teamCandidate{
				teamID:     t.ID,
				leagueID:   l.ID,
				teamName:   t.Name,
				leagueName: l.DisplayName,
				score:      s.score(l.DisplayName, leagueName),
			})
		}
	}
	if best, ok := pickTeamCandidate(candidates, s.cfg.Threshold); ok {
		return ResolvedTeam{
			TeamID:     best.teamID,
			LeagueID:   best.leagueID,
			TeamName:   teamName,
			LeagueName: best.leagueName,
		}, true, nil
	}

	leagues, err := s.leagueRepo.FindByDisplayName(ctx, leagueName)
	if err != nil {
		return ResolvedTeam{}, false, fmt.Errorf("find leagues name=%q: %w", leagueName, err)
	}

	candidates = candidates[:0]
	for _, l := range leagues {
		memberships, err := s.teamRepo.ListMembershipsByLeague(ctx, l.ID)
		if err != nil {
			return ResolvedTeam{}, false, fmt.Errorf("list memberships league_id=%d: %w", l.ID, err)
		}
		teamIDs := dedupeTeams(memberships)
		members, err := s.teamRepo.GetByIDs(ctx, teamIDs)
		if err != nil {
			return ResolvedTeam{}, false, fmt.Errorf("get teams league_id=%d: %w", l.ID, err)
		}
		for _, t := range members {
			candidates = append(candidates, teamCandidate{
				teamID:     t.ID,
				leagueID:   l.ID,
				teamName:   t.Name,
				leagueName: l.DisplayName,
				score:      s.score(t.Name, teamName),
			})
		}
	}
	if best, ok := pickTeamCandidate(candidates, s.cfg.Threshold); ok {
		return ResolvedTeam{
			TeamID:     best.teamID,
			LeagueID:   best.leagueID,
			TeamName:   best.teamName,
			LeagueName: leagueName,
		}, true, nil
	}

	return ResolvedTeam{}, false, nil
}

type playerCandidate struct {
	playerID    int64
	teamID      int64
	playerName  string
	teamName    string
	appearances int
	score       int
}

// ResolvePlayer matches a scraped (player, team) name pair. The primary
// pass ranks the closest full names and scores their militancy team
// names; the secondary pass ranks the closest team names and scores
// their rosters against the player name.
func (s *ResolverService) ResolvePlayer(ctx context.Context, playerName, teamName string) (ResolvedPlayer, bool, error) {
	playerName = NormalizeName(playerName)
	teamName = NormalizeTeamName(teamName)

	players, err := s.playerRepo.SearchByFullName(ctx, playerName, s.cfg.PlayerCandidateLimit)
	if err != nil {
		return ResolvedPlayer{}, false, fmt.Errorf("search players name=%q: %w", playerName, err)
	}

	var candidates []playerCandidate
	for _, p := range players {
		mils, err := s.militancyRepo.ListByPlayer(ctx, p.ID)
		if err != nil {
			return ResolvedPlayer{}, false, fmt.Errorf("list militancies player_id=%d: %w", p.ID, err)
		}
		for _, m := range mils {
			t, found, err := s.teamRepo.GetByID(ctx, m.TeamID)
			if err != nil {
				return ResolvedPlayer{}, false, fmt.Errorf("get team team_id=%d: %w", m.TeamID, err)
			}
			if !found {
				continue
			}
			candidates = append(candidates, playerCandidate{
				playerID:    p.ID,
				teamID:      t.ID,
				playerName:  p.FullName(),
				teamName:    t.Name,
				appearances: m.Appearances,
				score:       s.score(t.Name, teamName),
			})
		}
	}
	if best, ok := pickPlayerCandidate(candidates, s.cfg.Threshold); ok {
		return ResolvedPlayer{
			PlayerID:   best.playerID,
			TeamID:     best.teamID,
			PlayerName: playerName,
			TeamName:   best.teamName,
		}, true, nil
	}

	teams, err := s.teamRepo.SearchByName(ctx, teamName, s.cfg.TeamCandidateLimit)
	if err != nil {
		return ResolvedPlayer{}, false, fmt.Errorf("search teams name=%q: %w", teamName, err)
	}

	candidates = candidates[:0]
	for _, t := range teams {
		mils, err := s.militancyRepo.ListByTeam(ctx, t.ID)
		if err != nil {
			return ResolvedPlayer{}, false, fmt.Errorf("list militancies team_id=%d: %w", t.ID, err)
		}
		for _, m := range mils {
			p, found, err := s.playerRepo.GetByID(ctx, m.PlayerID)
			if err != nil {
				return ResolvedPlayer{}, false, fmt.Errorf("get player player_id=%d: %w", m.PlayerID, err)
			}
			if !found {
				continue
			}
			candidates = append(candidates, playerCandidate{
				playerID:    p.ID,
				teamID:      t.ID,
				playerName:  p.FullName(),
				teamName:    t.Name,
				appearances: m.Appearances,
				score:       s.score(p.FullName(), playerName),
			})
		}
	}
	if best, ok := pickPlayerCandidate(candidates, s.cfg.Threshold); ok {
		return ResolvedPlayer{
			PlayerID:   best.playerID,
			TeamID:     best.teamID,
			PlayerName: best.playerName,
			TeamName:   teamName,
		}, true, nil
	}

	return ResolvedPlayer{}, false, nil
}

// ResolveTeamValues resolves a batch of scraped team rows over a worker
// pool. Unresolved rows are returned and dumped as a batch, not failed
// individually.
func (s *ResolverService) ResolveTeamValues(ctx context.Context, scraped []ScrapedEntity) ([]ResolvedTeam, []ScrapedEntity, error) {
	scraped = dedupeScraped(scraped)

	resolved := make([]*ResolvedTeam, len(scraped))
	if err := s.forEachScraped(ctx, scraped, func(i int, entity ScrapedEntity) {
		item, found, err := s.ResolveTeam(ctx, entity.Name, entity.Context)
		if err != nil {
			s.logger.WarnContext(ctx, "team resolution failed", "team", entity.Name, "league", entity.Context, "error", err)
			return
		}
		if !found {
			s.logger.WarnContext(ctx, "nothing found for team value", "team", entity.Name, "league", entity.Context)
			return
		}
		item.Value = entity.Value
		resolved[i] = &item
	}); err != nil {
		return nil, nil, err
	}

	var out []ResolvedTeam
	var unresolved []ScrapedEntity
	for i, item := range resolved {
		if item == nil {
			unresolved = append(unresolved, scraped[i])
			continue
		}
		out = append(out, *item)
	}

	s.logger.WarnContext(ctx, "teams could not be identified", "count", len(unresolved))
	if err := s.dumpUnresolved("teams_not_found", unresolved); err != nil {
		s.logger.ErrorContext(ctx, "dump unresolved teams failed", "error", err)
	}

	return out, unresolved, nil
}

// ResolvePlayerValues is the player-side counterpart of
// ResolveTeamValues.
func (s *ResolverService) ResolvePlayerValues(ctx context.Context, scraped []ScrapedEntity) ([]ResolvedPlayer, []ScrapedEntity, error) {
	scraped = dedupeScraped(scraped)

	resolved := make([]*ResolvedPlayer, len(scraped))
	if err := s.forEachScraped(ctx, scraped, func(i int, entity ScrapedEntity) {
		item, found, err := s.ResolvePlayer(ctx, entity.Name, entity.Context)
		if err != nil {
			s.logger.WarnContext(ctx, "player resolution failed", "player", entity.Name, "team", entity.Context, "error", err)
			return
		}
		if !found {
			s.logger.WarnContext(ctx, "nothing found for player value", "player", entity.Name, "team", entity.Context)
			return
		}
		item.Value = entity.Value
		resolved[i] = &item
	}); err != nil {
		return nil, nil, err
	}

	var out []ResolvedPlayer
	var unresolved []ScrapedEntity
	for i, item := range resolved {
		if item == nil {
			unresolved = append(unresolved, scraped[i])
			continue
		}
		out = append(out, *item)
	}

	s.logger.WarnContext(ctx, "players could not be identified", "count", len(unresolved))
	if err := s.dumpUnresolved("players_not_found", unresolved); err != nil {
		s.logger.ErrorContext(ctx, "dump unresolved players failed", "error", err)
	}

	return out, unresolved, nil
}

func (s *ResolverService) forEachScraped(ctx context.Context, scraped []ScrapedEntity, fn func(i int, entity ScrapedEntity)) error {
	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for i, entity := range scraped {
		i, entity := i, entity
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			fn(i, entity)
		}); err != nil {
			workers.Done()
			return fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()

	return nil
}

// dumpUnresolved writes the batch diagnostic artifact: a timestamped JSON
// list of everything that stayed below the threshold.
func (s *ResolverService) dumpUnresolved(kind string, entities []ScrapedEntity) error {
	if len(entities) == 0 || s.cfg.DumpDir == "" {
		return nil
	}

	if err := os.MkdirAll(s.cfg.DumpDir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}

	payload, err := sonic.MarshalIndent(entities, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal unresolved %s: %w", kind, err)
	}

	stamp := time.Now().Format("01_02_2006__15_04_05")
	name := fmt.Sprintf("%s_%s_%s.json", kind, stamp, uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(s.cfg.DumpDir, name), payload, 0o644); err != nil {
		return fmt.Errorf("write unresolved %s: %w", kind, err)
	}

	return nil
}

// dedupeScraped collapses rows sharing a (name, context) pair; the last
// row wins, matching the merge policy used everywhere in the batch.
func dedupeScraped(scraped []ScrapedEntity) []ScrapedEntity {
	type pairKey struct{ name, context string }

	byPair := make(map[pairKey]ScrapedEntity, len(scraped))
	order := make([]pairKey, 0, len(scraped))
	for _, entity := range scraped {
		key := pairKey{name: entity.Name, context: entity.Context}
		if _, ok := byPair[key]; !ok {
			order = append(order, key)
		}
		byPair[key] = entity
	}

	out := make([]ScrapedEntity, 0, len(order))
	for _, key := range order {
		out = append(out, byPair[key])
	}
	return out
}

func pickTeamCandidate(candidates []teamCandidate, threshold int) (teamCandidate, bool) {
	var kept []teamCandidate
	for _, c := range candidates {
		if c.score >= threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return teamCandidate{}, false
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		if kept[i].teamID != kept[j].teamID {
			return kept[i].teamID < kept[j].teamID
		}
		return kept[i].leagueID < kept[j].leagueID
	})
	return kept[0], true
}

// pickPlayerCandidate keeps the max-score candidates, then prefers the
// one with most appearances, then the lowest player id.
func pickPlayerCandidate(candidates []playerCandidate, threshold int) (playerCandidate, bool) {
	var kept []playerCandidate
	for _, c := range candidates {
		if c.score >= threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return playerCandidate{}, false
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		if kept[i].appearances != kept[j].appearances {
			return kept[i].appearances > kept[j].appearances
		}
		return kept[i].playerID < kept[j].playerID
	})
	return kept[0], true
}

func dedupeLeagues(memberships []team.Membership) []int64 {
	seen := make(map[int64]struct{}, len(memberships))
	out := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		if _, ok := seen[m.LeagueID]; ok {
			continue
		}
		seen[m.LeagueID] = struct{}{}
		out = append(out, m.LeagueID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupeTeams(memberships []team.Membership) []int64 {
	seen := make(map[int64]struct{}, len(memberships))
	out := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		if _, ok := seen[m.TeamID]; ok {
			continue
		}
		seen[m.TeamID] = struct{}{}
		out = append(out, m.TeamID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
