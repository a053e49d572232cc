// Package transfermarkt scrapes the public market value rankings that
// feed the valuation pipeline.
package transfermarkt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/calciodata/footballgraph/internal/platform/logging"
	"github.com/calciodata/footballgraph/internal/usecase"
)

const (
	defaultBaseURL    = "https://www.transfermarkt.co.uk"
	teamRankingPath   = "/spieler-statistik/wertvollstemannschaften/marktwertetop"
	playerRankingPath = "/spieler-statistik/wertvollstespieler/marktwertetop"
	defaultUserAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36"
)

var (
	millionFinder = regexp.MustCompile(`[^0-9]([0-9]+\.[0-9]+)m`)
	billionFinder = regexp.MustCompile(`[^0-9]([0-9]+\.[0-9]+)bn`)
)

type ScraperConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	MaxRetries int
	PageDelay  time.Duration
	RetryWait  time.Duration
	Logger     *logging.Logger
}

// Scraper pages through the team and player market value rankings and
// extracts (name, context, value-in-millions) rows.
type Scraper struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	pageDelay  time.Duration
	retryWait  time.Duration
	logger     *logging.Logger
}

func NewScraper(cfg ScraperConfig) *Scraper {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}
	pageDelay := cfg.PageDelay
	if pageDelay <= 0 {
		pageDelay = 200 * time.Millisecond
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = 5 * time.Second
	}

	return &Scraper{
		httpClient: httpClient,
		baseURL:    baseURL,
		maxRetries: maxRetries,
		pageDelay:  pageDelay,
		retryWait:  retryWait,
		logger:     logger,
	}
}

// CollectTeamValues scrapes up to upToPage ranking pages of team market
// values. Context carries the league name.
func (s *Scraper) CollectTeamValues(ctx context.Context, upToPage int) ([]usecase.ScrapedEntity, error) {
	return s.collect(ctx, teamRankingPath, upToPage, extractTeamRows)
}

// CollectPlayerValues scrapes up to upToPage ranking pages of player
// market values. Context carries the team name.
func (s *Scraper) CollectPlayerValues(ctx context.Context, upToPage int) ([]usecase.ScrapedEntity, error) {
	return s.collect(ctx, playerRankingPath, upToPage, extractPlayerRows)
}

func (s *Scraper) collect(
	ctx context.Context,
	path string,
	upToPage int,
	extract func(doc *html.Node) []usecase.ScrapedEntity,
) ([]usecase.ScrapedEntity, error) {
	var out []usecase.ScrapedEntity
	retries := 0

	for page := 1; page <= upToPage; page++ {
		s.logger.InfoContext(ctx, "scraping ranking page", "path", path, "page", page)

		doc, status, err := s.fetchPage(ctx, path, page)
		if err != nil {
			return out, err
		}
		if status != http.StatusOK {
			retries++
			if retries >= s.maxRetries {
				s.logger.WarnContext(ctx, "max retries reached, returning partial scrape", "path", path, "page", page)
				return out, nil
			}
			s.logger.WarnContext(ctx, "ranking page fetch failed, retrying", "status", status, "page", page)
			page--
			if err := sleepCtx(ctx, s.retryWait); err != nil {
				return out, err
			}
			continue
		}
		retries = 0

		rows := extract(doc)
		if len(rows) == 0 {
			s.logger.WarnContext(ctx, "ranking page yielded no rows", "path", path, "page", page)
		}
		out = append(out, rows...)

		if page < upToPage {
			if err := sleepCtx(ctx, s.pageDelay); err != nil {
				return out, err
			}
		}
	}

	return out, nil
}

func (s *Scraper) fetchPage(ctx context.Context, path string, page int) (*html.Node, int, error) {
	fullURL := fmt.Sprintf("%s%s?ajax=yw1&page=%d", s.baseURL, path, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("scrape request page=%d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("parse ranking page %d: %w", page, err)
	}

	return doc, resp.StatusCode, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// extractTeamRows reads the team ranking table: the team link sits in the
// third cell, the league link in the fourth, the bold value in the fifth.
func extractTeamRows(doc *html.Node) []usecase.ScrapedEntity {
	var out []usecase.ScrapedEntity
	for _, row := range rankingRows(doc) {
		cells := directChildren(row, "td")
		if len(cells) < 5 {
			continue
		}
		teamName := attrValue(findDescendant(cells[2], "a"), "title")
		leagueName := attrValue(findDescendant(cells[3], "a"), "title")
		value := parseMarketValue(textContent(findDescendant(cells[4], "b")))
		if teamName == "" || leagueName == "" || value == 0 {
			continue
		}
		out = append(out, usecase.ScrapedEntity{Name: teamName, Context: leagueName, Value: value})
	}
	return out
}

// extractPlayerRows reads the player ranking table: the player link sits
// inside the nested hauptlink cell, the team link in the fifth cell, the
// value link in the sixth.
func extractPlayerRows(doc *html.Node) []usecase.ScrapedEntity {
	var out []usecase.ScrapedEntity
	for _, row := range rankingRows(doc) {
		cells := directChildren(row, "td")
		if len(cells) < 6 {
			continue
		}
		nameCell := findDescendantWithClass(cells[1], "td", "hauptlink")
		playerName := attrValue(findDescendant(nameCell, "a"), "title")
		teamName := attrValue(findDescendant(cells[4], "a"), "title")
		value := parseMarketValue(textContent(findDescendant(cells[5], "a")))
		if playerName == "" || teamName == "" || value == 0 {
			continue
		}
		out = append(out, usecase.ScrapedEntity{Name: playerName, Context: teamName, Value: value})
	}
	return out
}

// parseMarketValue converts "€123.45m" or "€1.20bn" to whole millions.
func parseMarketValue(text string) int64 {
	if match := millionFinder.FindStringSubmatch(text); match != nil {
		parsed, err := strconv.ParseFloat(match[1], 64)
		if err == nil {
			return int64(parsed)
		}
	}
	if match := billionFinder.FindStringSubmatch(text); match != nil {
		parsed, err := strconv.ParseFloat(match[1], 64)
		if err == nil {
			return int64(parsed * 1000)
		}
	}
	return 0
}

func rankingRows(doc *html.Node) []*html.Node {
	grid := findByID(doc, "yw1")
	if grid == nil {
		return nil
	}
	table := findDescendantWithClass(grid, "table", "items")
	if table == nil {
		return nil
	}
	body := findDescendant(table, "tbody")
	if body == nil {
		return nil
	}
	return directChildren(body, "tr")
}

func findByID(n *html.Node, id string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && attrValue(n, "id") == id {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func findDescendant(n *html.Node, tag string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findDescendant(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func findDescendantWithClass(n *html.Node, tag, class string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.Data == tag && hasClass(n, class) {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findDescendantWithClass(child, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func directChildren(n *html.Node, tag string) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == tag {
			out = append(out, child)
		}
	}
	return out
}

func attrValue(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, part := range strings.Fields(attrValue(n, "class")) {
		if part == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			buf.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
