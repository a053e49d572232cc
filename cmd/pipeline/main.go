package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/calciodata/footballgraph/external/apifootball"
	"github.com/calciodata/footballgraph/external/transfermarkt"
	"github.com/calciodata/footballgraph/internal/config"
	"github.com/calciodata/footballgraph/internal/infrastructure/repository/postgres"
	"github.com/calciodata/footballgraph/internal/platform/logging"
	"github.com/calciodata/footballgraph/internal/platform/resilience"
	"github.com/calciodata/footballgraph/internal/platform/similarity"
	"github.com/calciodata/footballgraph/internal/usecase"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles everything a subcommand needs after wiring.
type app struct {
	cfg       config.Config
	logger    *logging.Logger
	db        *sqlx.DB
	leagues   *postgres.LeagueRepository
	teams     *postgres.TeamRepository
	players   *postgres.PlayerRepository
	militancy *postgres.MilitancyRepository
}

func newApp() (*app, error) {
	config.LoadDotenv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)

	if cfg.DBURL == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}
	db, err := sqlx.Connect("postgres", cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		leagues:   postgres.NewLeagueRepository(db),
		teams:     postgres.NewTeamRepository(db),
		players:   postgres.NewPlayerRepository(db),
		militancy: postgres.NewMilitancyRepository(db),
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}

func (a *app) statsClient() (*apifootball.Client, error) {
	return apifootball.NewClient(apifootball.ClientConfig{
		Host:              a.cfg.APIFootballHost,
		APIKey:            a.cfg.APIFootballKey,
		CacheDir:          a.cfg.APIFootballCacheDir,
		RequestsPerSecond: a.cfg.APIFootballRateLimitRPS,
		RequestBudget:     a.cfg.APIFootballRequestBudget,
		RetryWait:         a.cfg.APIFootballRetryWait,
		Logger:            a.logger,
		CircuitBreaker: resilience.BreakerConfig{
			Enabled: a.cfg.APIFootballBreaker,
		},
	})
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Football militancy data pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var teamPages, playerPages int

	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Pull leagues, rosters and memberships from the stats API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), runIngest)
		},
	}

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile militancy intervals against transfer feeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), runReconcile)
		},
	}

	valuate := &cobra.Command{
		Use:   "valuate",
		Short: "Scrape market values, resolve entities and propagate values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return runValuate(ctx, a, teamPages, playerPages)
			})
		},
	}
	valuate.Flags().IntVar(&teamPages, "team-pages", 100, "ranking pages to scrape for team values")
	valuate.Flags().IntVar(&playerPages, "player-pages", 1000, "ranking pages to scrape for player values")

	graph := &cobra.Command{
		Use:   "graph",
		Short: "Build the co-militancy graph and export CSV artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), runGraph)
		},
	}

	all := &cobra.Command{
		Use:   "all",
		Short: "Run the full pipeline: ingest, reconcile, valuate, graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := runIngest(ctx, a); err != nil {
					return err
				}
				if err := runReconcile(ctx, a); err != nil {
					return err
				}
				if err := runValuate(ctx, a, teamPages, playerPages); err != nil {
					return err
				}
				return runGraph(ctx, a)
			})
		},
	}
	all.Flags().IntVar(&teamPages, "team-pages", 100, "ranking pages to scrape for team values")
	all.Flags().IntVar(&playerPages, "player-pages", 1000, "ranking pages to scrape for player values")

	root.AddCommand(ingest, reconcile, valuate, graph, all)
	return root
}

func withApp(parent context.Context, run func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	return run(ctx, a)
}

func runIngest(ctx context.Context, a *app) error {
	client, err := a.statsClient()
	if err != nil {
		return err
	}

	service := usecase.NewIngestionService(
		client, a.leagues, a.teams, a.players, a.militancy,
		usecase.IngestionConfig{
			Workers:  a.cfg.IngestWorkers,
			YearFrom: a.cfg.SeasonYearFrom,
			YearTo:   a.cfg.SeasonYearTo,
		},
		a.logger,
	)

	result, err := service.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	a.logger.InfoContext(ctx, "ingestion finished",
		"leagues", result.Leagues,
		"teams", result.Teams,
		"players", result.Players,
		"militancies", result.Militancies,
		"memberships", result.Memberships,
	)

	return nil
}

func runReconcile(ctx context.Context, a *app) error {
	client, err := a.statsClient()
	if err != nil {
		return err
	}

	service := usecase.NewReconcileService(
		client, a.leagues, a.teams, a.players, a.militancy,
		usecase.ReconcileConfig{FetchWorkers: a.cfg.ReconcileFetchWorkers},
		a.logger,
	)

	result, err := service.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	a.logger.InfoContext(ctx, "reconciliation finished",
		"players", result.PlayersProcessed,
		"created", result.MilitanciesCreated,
		"updated", result.MilitanciesUpdated,
		"warnings", len(result.Warnings),
	)

	return nil
}

func runValuate(ctx context.Context, a *app, teamPages, playerPages int) error {
	scraper := transfermarkt.NewScraper(transfermarkt.ScraperConfig{
		BaseURL: a.cfg.TransfermarktBaseURL,
		Logger:  a.logger,
	})

	scrapedTeams, err := scraper.CollectTeamValues(ctx, teamPages)
	if err != nil {
		return fmt.Errorf("scrape team values: %w", err)
	}
	scrapedPlayers, err := scraper.CollectPlayerValues(ctx, playerPages)
	if err != nil {
		return fmt.Errorf("scrape player values: %w", err)
	}

	resolver := usecase.NewResolverService(
		a.leagues, a.teams, a.players, a.militancy,
		similarity.PartialRatio,
		usecase.ResolverConfig{
			Threshold:            a.cfg.SimilarityThreshold,
			PlayerCandidateLimit: a.cfg.PlayerCandidateLimit,
			TeamCandidateLimit:   a.cfg.TeamCandidateLimit,
			Workers:              a.cfg.ResolveWorkers,
			DumpDir:              a.cfg.UnresolvedDumpDir,
		},
		a.logger,
	)

	resolvedTeams, _, err := resolver.ResolveTeamValues(ctx, scrapedTeams)
	if err != nil {
		return fmt.Errorf("resolve team values: %w", err)
	}
	resolvedPlayers, _, err := resolver.ResolvePlayerValues(ctx, scrapedPlayers)
	if err != nil {
		return fmt.Errorf("resolve player values: %w", err)
	}

	valuation := usecase.NewValuationService(
		a.teams, a.players, a.militancy,
		usecase.ValuationConfig{
			AssumedRosterSize:    a.cfg.AssumedRosterSize,
			LongSeasonMinMatches: a.cfg.LongSeasonMinMatches,
		},
		a.logger,
	)

	inputs := usecase.BuildValuationInputs(resolvedTeams, resolvedPlayers, a.cfg.DefaultTeamValue)
	if err := valuation.Propagate(ctx, inputs); err != nil {
		return fmt.Errorf("propagate values: %w", err)
	}
	a.logger.InfoContext(ctx, "valuation finished",
		"resolved_teams", len(resolvedTeams),
		"resolved_players", len(resolvedPlayers),
	)

	return nil
}

func runGraph(ctx context.Context, a *app) error {
	service := usecase.NewGraphService(
		a.players, a.militancy,
		usecase.GraphConfig{
			Workers:   a.cfg.GraphWorkers,
			ChunkSize: a.cfg.GraphChunkSize,
			OutputDir: a.cfg.CSVOutputDir,
		},
		a.logger,
	)

	if err := service.Export(ctx); err != nil {
		return fmt.Errorf("export graph: %w", err)
	}
	a.logger.InfoContext(ctx, "graph export finished", "output_dir", a.cfg.CSVOutputDir)

	return nil
}
