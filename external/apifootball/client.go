// Package apifootball wraps the RapidAPI football stats service behind
// the ingestion and reconciliation provider interfaces.
package apifootball

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/calciodata/footballgraph/internal/platform/logging"
	"github.com/calciodata/footballgraph/internal/platform/resilience"
	"github.com/calciodata/footballgraph/internal/usecase"
)

const (
	defaultHost      = "api-football-v1.p.rapidapi.com"
	apiVersion       = "v3"
	lowQuotaFloor    = 10
	defaultRetryWait = 15 * time.Second
)

var errAPILimitReached = fmt.Errorf("%w: stats api request limit reached", usecase.ErrDependencyUnavailable)

type ClientConfig struct {
	HTTPClient        *http.Client
	Host              string
	APIKey            string
	CacheDir          string
	RequestsPerSecond float64
	// RequestBudget caps live requests per client; zero means unlimited.
	// Cache hits never count against it.
	RequestBudget  int
	RetryWait      time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.BreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	host           string
	apiKey         string
	cacheDir       string
	limiter        *rate.Limiter
	retryWait      time.Duration
	logger         *logging.Logger
	breaker        *resilience.Breaker
	breakerEnabled bool

	mu            sync.Mutex
	requestBudget int
	requestsSoFar int
}

func NewClient(cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: stats api key is required", usecase.ErrInvalidInput)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultHost
	}

	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = defaultRetryWait
	}
	breakerCfg := resilience.NormalizeBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        fmt.Sprintf("https://%s/%s", host, apiVersion),
		host:           host,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		cacheDir:       cfg.CacheDir,
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		retryWait:      retryWait,
		logger:         logger,
		breaker:        resilience.NewBreaker(breakerCfg),
		breakerEnabled: breakerCfg.Enabled,
		requestBudget:  cfg.RequestBudget,
	}, nil
}

type paging struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

type envelope struct {
	Errors   json.RawMessage   `json:"errors"`
	Paging   paging            `json:"paging"`
	Response []json.RawMessage `json:"response"`
}

func hasErrors(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "[]", "{}":
		return false
	}
	return true
}

// cacheKey matches cached payloads on the full URL plus the sorted
// parameter set.
func cacheKey(fullURL string, params url.Values) string {
	h := fullURL
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, key+"_"+params.Get(key))
		}
		h += "_" + strings.Join(parts, "_")
	}
	sum := md5.Sum([]byte(h))
	return hex.EncodeToString(sum[:])
}

func (c *Client) readCache(fullURL string, params url.Values) (envelope, bool) {
	if c.cacheDir == "" {
		return envelope{}, false
	}

	payload, err := os.ReadFile(filepath.Join(c.cacheDir, cacheKey(fullURL, params)))
	if err != nil {
		return envelope{}, false
	}

	var env envelope
	if err := sonic.Unmarshal(payload, &env); err != nil {
		c.logger.Warn("discarding unreadable cache entry", "url", fullURL, "error", err)
		return envelope{}, false
	}

	return env, true
}

func (c *Client) writeCache(fullURL string, params url.Values, payload []byte) {
	if c.cacheDir == "" {
		return
	}

	path := filepath.Join(c.cacheDir, cacheKey(fullURL, params))
	if _, err := os.Stat(path); err == nil {
		return
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		c.logger.Warn("cache write failed", "url", fullURL, "error", err)
	}
}

func (c *Client) consumeBudget() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.requestBudget > 0 && c.requestsSoFar >= c.requestBudget {
		return crerr.Wrapf(errAPILimitReached, "budget=%d", c.requestBudget)
	}
	c.requestsSoFar++
	return nil
}

// send performs one cached, rate-limited call. A 429 or a near-exhausted
// quota header gets a single retry after the configured wait.
func (c *Client) send(ctx context.Context, path string, params url.Values) (envelope, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")

	if env, ok := c.readCache(fullURL, params); ok {
		c.logger.Debug("cache hit", "url", fullURL)
		return env, nil
	}

	if c.breakerEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "stats api circuit breaker rejected request", "state", c.breaker.State())
			return envelope{}, fmt.Errorf("%w: stats provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}
	if err := c.consumeBudget(); err != nil {
		return envelope{}, err
	}

	retried := false
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return envelope{}, err
		}

		payload, status, remaining, err := c.doRequest(ctx, fullURL, params)
		if err != nil {
			if c.breakerEnabled {
				c.breaker.RecordFailure()
			}
			return envelope{}, err
		}

		if status == http.StatusTooManyRequests || remaining < lowQuotaFloor {
			if retried {
				if c.breakerEnabled {
					c.breaker.RecordFailure()
				}
				return envelope{}, crerr.Wrapf(errAPILimitReached, "status=%d remaining=%d", status, remaining)
			}
			c.logger.WarnContext(ctx, "stats api throttling, backing off", "status", status, "remaining", remaining, "wait", c.retryWait)
			retried = true
			select {
			case <-ctx.Done():
				return envelope{}, ctx.Err()
			case <-time.After(c.retryWait):
			}
			continue
		}

		if status != http.StatusOK {
			if c.breakerEnabled {
				c.breaker.RecordFailure()
			}
			return envelope{}, fmt.Errorf("stats api status %d for %s", status, fullURL)
		}

		var env envelope
		if err := sonic.Unmarshal(payload, &env); err != nil {
			if c.breakerEnabled {
				c.breaker.RecordFailure()
			}
			return envelope{}, fmt.Errorf("decode stats api payload: %w", err)
		}
		if hasErrors(env.Errors) {
			if c.breakerEnabled {
				c.breaker.RecordFailure()
			}
			return envelope{}, fmt.Errorf("stats api errors for %s: %s", fullURL, string(env.Errors))
		}

		if c.breakerEnabled {
			c.breaker.RecordSuccess()
		}
		c.writeCache(fullURL, params, payload)
		return env, nil
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string, params url.Values) ([]byte, int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("build stats api request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("stats api request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read stats api response: %w", err)
	}

	remaining := lowQuotaFloor
	if header := resp.Header.Get("x-ratelimit-requests-remaining"); header != "" {
		if parsed, err := strconv.Atoi(header); err == nil {
			remaining = parsed
		}
	}

	return payload, resp.StatusCode, remaining, nil
}

// sendPaginated walks every page of a listing. A failed page returns what
// was collected so far rather than dropping the whole listing.
func (c *Client) sendPaginated(ctx context.Context, path string, params url.Values) []json.RawMessage {
	var out []json.RawMessage
	page := 1
	for {
		pageParams := url.Values{}
		for key, values := range params {
			pageParams[key] = values
		}
		pageParams.Set("page", strconv.Itoa(page))

		env, err := c.send(ctx, path, pageParams)
		if err != nil {
			c.logger.WarnContext(ctx, "returning partial paginated result", "path", path, "page", page, "error", err)
			return out
		}
		out = append(out, env.Response...)

		total := env.Paging.Total
		if total < 1 {
			total = 1
		}
		current := env.Paging.Current
		if current < 1 {
			current = page
		}
		c.logger.Debug("pagination progress", "path", path, "current", current, "total", total)
		if current >= total {
			return out
		}
		page = current + 1
	}
}
