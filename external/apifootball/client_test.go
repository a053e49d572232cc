package apifootball

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"

	"github.com/calciodata/footballgraph/internal/platform/logging"
	"github.com/calciodata/footballgraph/internal/platform/resilience"
	"github.com/calciodata/footballgraph/internal/usecase"
)

// testClient points the client at a local server by stuffing the full
// test URL into the version prefix.
func testClient(t *testing.T, server *httptest.Server, cfg ClientConfig) *Client {
	t.Helper()

	cfg.APIKey = "test-key"
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1000
	}
	cfg.Logger = logging.NewNop()

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.baseURL = server.URL + "/" + apiVersion
	client.httpClient = server.Client()
	return client
}

func leaguesBody() string {
	return `{
		"errors": [],
		"paging": {"current": 1, "total": 1},
		"response": [
			{
				"league": {"id": 135, "name": "Serie A", "type": "League", "logo": "l.png"},
				"country": {"name": "Italy", "code": "IT"},
				"seasons": [
					{"year": 2020, "start": "2020-08-01", "end": "2021-05-31"},
					{"year": 2021, "start": "bad", "end": "2022-05-31"}
				]
			},
			{
				"league": {"id": 136, "name": "Coppa Italia", "type": "Cup", "logo": "c.png"},
				"country": {"name": "Italy", "code": "IT"},
				"seasons": []
			}
		]
	}`
}

func TestClient_FetchLeagues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-RapidAPI-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		fmt.Fprint(w, leaguesBody())
	}))
	defer server.Close()

	client := testClient(t, server, ClientConfig{})

	leagues, err := client.FetchLeagues(context.Background())
	if err != nil {
		t.Fatalf("fetch leagues: %v", err)
	}
	if len(leagues) != 1 {
		t.Fatalf("cup competition survived the filter: got=%d want=1", len(leagues))
	}
	if leagues[0].ID != 135 || leagues[0].CountryCode != "IT" {
		t.Fatalf("unexpected league: %+v", leagues[0])
	}
	if len(leagues[0].Seasons) != 2 {
		t.Fatalf("unexpected season count: got=%d want=2", len(leagues[0].Seasons))
	}
	if leagues[0].Seasons[0].StartDate == nil || leagues[0].Seasons[0].EndDate == nil {
		t.Fatalf("valid season dates must parse")
	}
	if leagues[0].Seasons[1].StartDate != nil {
		t.Fatalf("unparseable season start must stay nil")
	}
}

func TestClient_CacheHitSkipsServer(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		fmt.Fprint(w, leaguesBody())
	}))
	defer server.Close()

	client := testClient(t, server, ClientConfig{CacheDir: t.TempDir()})

	for i := 0; i < 3; i++ {
		if _, err := client.FetchLeagues(context.Background()); err != nil {
			t.Fatalf("fetch leagues run %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Fatalf("cache not used: server hits got=%d want=1", got)
	}
}

func TestClient_FetchLeaguePlayers_Paginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		fmt.Fprintf(w, `{
			"errors": [],
			"paging": {"current": %s, "total": 2},
			"response": [
				{
					"player": {"id": %s0, "firstname": "Paulo", "lastname": "Dybala", "photo": "p.png"},
					"statistics": [
						{"team": {"id": 496, "name": "Juventus", "logo": "j.png"}, "games": {"appearences": 25, "position": "Attacker"}}
					]
				}
			]
		}`, page, page)
	}))
	defer server.Close()

	client := testClient(t, server, ClientConfig{})

	players, err := client.FetchLeaguePlayers(context.Background(), 135, 2020)
	if err != nil {
		t.Fatalf("fetch league players: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("pagination did not walk both pages: got=%d want=2", len(players))
	}
	if players[0].PlayerID != 10 || players[1].PlayerID != 20 {
		t.Fatalf("unexpected player ids: %d, %d", players[0].PlayerID, players[1].PlayerID)
	}
	if players[0].Position != "Attacker" || players[0].Stats[0].Appearances != 25 {
		t.Fatalf("unexpected player mapping: %+v", players[0])
	}
}

func TestClient_FetchLeaguePlayers_PartialOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{
			"errors": [],
			"paging": {"current": 1, "total": 3},
			"response": [{"player": {"id": 10, "firstname": "Paulo", "lastname": "Dybala"}, "statistics": []}]
		}`)
	}))
	defer server.Close()

	client := testClient(t, server, ClientConfig{})

	players, err := client.FetchLeaguePlayers(context.Background(), 135, 2020)
	if err != nil {
		t.Fatalf("fetch league players: %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("expected the first page as a partial result: got=%d", len(players))
	}
}

func TestClient_FetchTeamTransfers_Dates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"errors": [],
			"paging": {"current": 1, "total": 1},
			"response": [
				{
					"player": {"id": 10},
					"transfers": [
						{"date": "2021-01-15", "teams": {"in": {"id": 505}, "out": {"id": 496}}},
						{"date": "311220", "teams": {"in": {"id": 496}, "out": {"id": 505}}},
						{"date": "soon", "teams": {"in": {"id": 496}, "out": {"id": 505}}}
					]
				}
			]
		}`)
	}))
	defer server.Close()

	client := testClient(t, server, ClientConfig{})

	histories, err := client.FetchTeamTransfers(context.Background(), 496)
	if err != nil {
		t.Fatalf("fetch team transfers: %v", err)
	}
	if len(histories) != 1 || len(histories[0].Transfers) != 3 {
		t.Fatalf("unexpected shape: %+v", histories)
	}

	events := histories[0].Transfers
	if events[0].Date == nil || !events[0].Date.Equal(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("iso date not parsed: %v", events[0].Date)
	}
	if events[1].Date == nil || !events[1].Date.Equal(time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("six-digit date not parsed: %v", events[1].Date)
	}
	if events[2].Date != nil || events[2].RawDate != "soon" {
		t.Fatalf("junk date must stay nil with raw text kept: %+v", events[2])
	}
}

func TestClient_RequestBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, leaguesBody())
	}))
	defer server.Close()

	client := testClient(t, server, ClientConfig{RequestBudget: 1})

	if _, err := client.FetchLeagues(context.Background()); err != nil {
		t.Fatalf("first request should fit the budget: %v", err)
	}
	_, err := client.FetchTeamLeagues(context.Background(), 496)
	if err == nil || !crerr.Is(err, errAPILimitReached) {
		t.Fatalf("expected budget exhaustion, got %v", err)
	}
	if !errors.Is(err, usecase.ErrDependencyUnavailable) {
		t.Fatalf("budget exhaustion must read as a dependency failure, got %v", err)
	}
}

func TestClient_BreakerRejectsAfterFailures(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(t, server, ClientConfig{
		CircuitBreaker: resilience.BreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
		},
	})

	if _, err := client.FetchLeagues(context.Background()); err == nil {
		t.Fatalf("expected the failing request to error")
	}
	_, err := client.FetchTeamLeagues(context.Background(), 496)
	if !errors.Is(err, usecase.ErrDependencyUnavailable) {
		t.Fatalf("open breaker must reject with a dependency failure, got %v", err)
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Fatalf("rejected request must not reach the server: hits=%d", got)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{Logger: logging.NewNop()})
	if !errors.Is(err, usecase.ErrInvalidInput) {
		t.Fatalf("expected invalid input for a missing api key, got %v", err)
	}
}

func TestClient_RetriesOnceOn429(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			w.Header().Set("x-ratelimit-requests-remaining", "100")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("x-ratelimit-requests-remaining", "100")
		fmt.Fprint(w, leaguesBody())
	}))
	defer server.Close()

	client := testClient(t, server, ClientConfig{RetryWait: 10 * time.Millisecond})

	leagues, err := client.FetchLeagues(context.Background())
	if err != nil {
		t.Fatalf("fetch leagues after retry: %v", err)
	}
	if len(leagues) != 1 {
		t.Fatalf("unexpected league count after retry: %d", len(leagues))
	}
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Fatalf("expected exactly one retry: hits=%d", got)
	}
}

func TestCacheKeyIsStable(t *testing.T) {
	params := url.Values{}
	params.Set("league", "135")
	params.Set("season", "2020")

	first := cacheKey("https://example.test/v3/players", params)
	second := cacheKey("https://example.test/v3/players", params)
	if first != second {
		t.Fatalf("cache key not deterministic: %q vs %q", first, second)
	}
	if strings.ContainsAny(first, "/:") {
		t.Fatalf("cache key must be a bare hex digest: %q", first)
	}
}
