package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/calciodata/footballgraph/internal/platform/logging"
)

// Config stores runtime configuration for the batch pipeline.
type Config struct {
	AppEnv   string `validate:"oneof=dev staging prod"`
	LogLevel logging.Level

	DBURL string

	APIFootballHost          string `validate:"required"`
	APIFootballKey           string
	APIFootballCacheDir      string
	APIFootballRequestBudget int     `validate:"gte=0"`
	APIFootballRateLimitRPS  float64 `validate:"gt=0"`
	APIFootballBreaker       bool
	APIFootballRetryWait     time.Duration

	TransfermarktBaseURL string `validate:"required"`

	SeasonYearFrom int `validate:"gte=1900"`
	SeasonYearTo   int `validate:"gtefield=SeasonYearFrom"`

	SimilarityThreshold    int   `validate:"gte=0,lte=100"`
	PlayerCandidateLimit   int   `validate:"gte=1"`
	TeamCandidateLimit     int   `validate:"gte=1"`
	DefaultTeamValue       int64 `validate:"gt=0"`
	LongSeasonMinMatches   int   `validate:"gte=1"`
	AssumedRosterSize      int   `validate:"gte=1"`
	IngestWorkers          int   `validate:"gte=1"`
	ReconcileFetchWorkers  int   `validate:"gte=1"`
	ResolveWorkers         int   `validate:"gte=1"`
	GraphWorkers           int   `validate:"gte=1"`
	GraphChunkSize         int   `validate:"gte=1"`
	CSVOutputDir           string
	UnresolvedDumpDir      string
}

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// LoadDotenv reads a .env file when present; missing files are fine.
func LoadDotenv() {
	_ = godotenv.Load()
}

func Load() (Config, error) {
	logLevel, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	requestBudget, err := getEnvAsInt("API_FOOTBALL_REQUEST_BUDGET", 0)
	if err != nil {
		return Config{}, err
	}
	rateLimitRPS, err := getEnvAsFloat("API_FOOTBALL_RATE_LIMIT_RPS", 2)
	if err != nil {
		return Config{}, err
	}
	breakerEnabled, err := getEnvAsBool("API_FOOTBALL_BREAKER_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	retryWait, err := getEnvAsDuration("API_FOOTBALL_RETRY_WAIT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}

	yearFrom, err := getEnvAsInt("SEASON_YEAR_FROM", 2018)
	if err != nil {
		return Config{}, err
	}
	yearTo, err := getEnvAsInt("SEASON_YEAR_TO", time.Now().Year())
	if err != nil {
		return Config{}, err
	}

	threshold, err := getEnvAsInt("SIMILARITY_THRESHOLD", 70)
	if err != nil {
		return Config{}, err
	}
	playerCandidates, err := getEnvAsInt("PLAYER_CANDIDATE_LIMIT", 10)
	if err != nil {
		return Config{}, err
	}
	teamCandidates, err := getEnvAsInt("TEAM_CANDIDATE_LIMIT", 5)
	if err != nil {
		return Config{}, err
	}
	defaultTeamValue, err := getEnvAsInt("DEFAULT_TEAM_VALUE", 100)
	if err != nil {
		return Config{}, err
	}
	longSeasonMin, err := getEnvAsInt("LONG_SEASON_MIN_MATCHES", 10)
	if err != nil {
		return Config{}, err
	}
	rosterSize, err := getEnvAsInt("ASSUMED_ROSTER_SIZE", 10)
	if err != nil {
		return Config{}, err
	}

	ingestWorkers, err := getEnvAsInt("INGEST_WORKERS", 14)
	if err != nil {
		return Config{}, err
	}
	reconcileWorkers, err := getEnvAsInt("RECONCILE_FETCH_WORKERS", 14)
	if err != nil {
		return Config{}, err
	}
	resolveWorkers, err := getEnvAsInt("RESOLVE_WORKERS", 12)
	if err != nil {
		return Config{}, err
	}
	graphWorkers, err := getEnvAsInt("GRAPH_WORKERS", 14)
	if err != nil {
		return Config{}, err
	}
	graphChunkSize, err := getEnvAsInt("GRAPH_CHUNK_SIZE", 100000)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:   getEnv("APP_ENV", EnvDev),
		LogLevel: logLevel,

		DBURL: strings.TrimSpace(getEnv("DB_URL", "")),

		APIFootballHost:          getEnv("API_FOOTBALL_HOST", "api-football-v1.p.rapidapi.com"),
		APIFootballKey:           strings.TrimSpace(getEnv("API_FOOTBALL_KEY", "")),
		APIFootballCacheDir:      getEnv("API_FOOTBALL_CACHE_DIR", ".rapid_api_cache"),
		APIFootballRequestBudget: requestBudget,
		APIFootballRateLimitRPS:  rateLimitRPS,
		APIFootballBreaker:       breakerEnabled,
		APIFootballRetryWait:     retryWait,

		TransfermarktBaseURL: getEnv("TRANSFERMARKT_BASE_URL", "https://www.transfermarkt.com"),

		SeasonYearFrom: yearFrom,
		SeasonYearTo:   yearTo,

		SimilarityThreshold:   threshold,
		PlayerCandidateLimit:  playerCandidates,
		TeamCandidateLimit:    teamCandidates,
		DefaultTeamValue:      int64(defaultTeamValue),
		LongSeasonMinMatches:  longSeasonMin,
		AssumedRosterSize:     rosterSize,
		IngestWorkers:         ingestWorkers,
		ReconcileFetchWorkers: reconcileWorkers,
		ResolveWorkers:        resolveWorkers,
		GraphWorkers:          graphWorkers,
		GraphChunkSize:        graphChunkSize,
		CSVOutputDir:          getEnv("CSV_OUTPUT_DIR", "csv_files"),
		UnresolvedDumpDir:     getEnv("UNRESOLVED_DUMP_DIR", ".not_found"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func parseLogLevel(raw string) (logging.Level, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return logging.LevelInfo, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}
