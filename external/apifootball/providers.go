package apifootball

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/calciodata/footballgraph/internal/usecase"
)

// leagueTypeLeague filters out cups and friendlies.
const leagueTypeLeague = "League"

type leaguePayload struct {
	League struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
		Logo string `json:"logo"`
	} `json:"league"`
	Country struct {
		Name string `json:"name"`
		Code string `json:"code"`
	} `json:"country"`
	Seasons []struct {
		Year  int    `json:"year"`
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"seasons"`
}

type playerPayload struct {
	Player struct {
		ID        int64  `json:"id"`
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		Photo     string `json:"photo"`
	} `json:"player"`
	Statistics []struct {
		Team struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
			Logo string `json:"logo"`
		} `json:"team"`
		Games struct {
			Appearances int    `json:"appearences"`
			Position    string `json:"position"`
		} `json:"games"`
	} `json:"statistics"`
}

type transferPayload struct {
	Player struct {
		ID int64 `json:"id"`
	} `json:"player"`
	Transfers []struct {
		Date  string `json:"date"`
		Teams struct {
			In struct {
				ID int64 `json:"id"`
			} `json:"in"`
			Out struct {
				ID int64 `json:"id"`
			} `json:"out"`
		} `json:"teams"`
	} `json:"transfers"`
}

// FetchLeagues lists every competition of type League together with its
// season calendar. Unparseable season dates surface as nil bounds.
func (c *Client) FetchLeagues(ctx context.Context) ([]usecase.ExternalLeague, error) {
	c.logger.InfoContext(ctx, "requesting leagues")
	env, err := c.send(ctx, "leagues", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch leagues: %w", err)
	}

	out := make([]usecase.ExternalLeague, 0, len(env.Response))
	for _, raw := range env.Response {
		var item leaguePayload
		if err := sonic.Unmarshal(raw, &item); err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable league row", "error", err)
			continue
		}
		if item.League.Type != leagueTypeLeague {
			continue
		}

		external := usecase.ExternalLeague{
			ID:          item.League.ID,
			Name:        item.League.Name,
			CountryCode: item.Country.Code,
			LogoURL:     item.League.Logo,
		}
		for _, season := range item.Seasons {
			external.Seasons = append(external.Seasons, usecase.ExternalSeason{
				Year:      season.Year,
				StartDate: parseDate(season.Start),
				EndDate:   parseDate(season.End),
			})
		}
		out = append(out, external)
	}

	return out, nil
}

// FetchLeaguePlayers pages through a league's season roster. Partial
// pagination returns the pages that succeeded.
func (c *Client) FetchLeaguePlayers(ctx context.Context, leagueID int64, year int) ([]usecase.ExternalPlayerSeason, error) {
	c.logger.InfoContext(ctx, "requesting league players", "league_id", leagueID, "year", year)

	params := url.Values{}
	params.Set("league", strconv.FormatInt(leagueID, 10))
	params.Set("season", strconv.Itoa(year))
	rows := c.sendPaginated(ctx, "players", params)

	out := make([]usecase.ExternalPlayerSeason, 0, len(rows))
	for _, raw := range rows {
		var item playerPayload
		if err := sonic.Unmarshal(raw, &item); err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable player row", "league_id", leagueID, "error", err)
			continue
		}

		external := usecase.ExternalPlayerSeason{
			PlayerID:  item.Player.ID,
			FirstName: item.Player.FirstName,
			LastName:  item.Player.LastName,
			PhotoURL:  item.Player.Photo,
		}
		for _, stat := range item.Statistics {
			if external.Position == "" {
				external.Position = stat.Games.Position
			}
			external.Stats = append(external.Stats, usecase.ExternalTeamStat{
				TeamID:      stat.Team.ID,
				TeamName:    stat.Team.Name,
				LogoURL:     stat.Team.Logo,
				Appearances: stat.Games.Appearances,
			})
		}
		out = append(out, external)
	}

	return out, nil
}

// FetchTeamLeagues lists the league competitions a team has entered and
// the years it played them.
func (c *Client) FetchTeamLeagues(ctx context.Context, teamID int64) ([]usecase.ExternalTeamLeague, error) {
	c.logger.InfoContext(ctx, "requesting team leagues", "team_id", teamID)

	params := url.Values{}
	params.Set("team", strconv.FormatInt(teamID, 10))
	env, err := c.send(ctx, "leagues", params)
	if err != nil {
		return nil, fmt.Errorf("fetch team leagues team_id=%d: %w", teamID, err)
	}

	out := make([]usecase.ExternalTeamLeague, 0, len(env.Response))
	for _, raw := range env.Response {
		var item leaguePayload
		if err := sonic.Unmarshal(raw, &item); err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable league row", "team_id", teamID, "error", err)
			continue
		}
		if item.League.Type != leagueTypeLeague {
			continue
		}

		external := usecase.ExternalTeamLeague{LeagueID: item.League.ID}
		for _, season := range item.Seasons {
			external.Years = append(external.Years, season.Year)
		}
		out = append(out, external)
	}

	return out, nil
}

// FetchTeamTransfers lists per-player transfer histories touching a team.
func (c *Client) FetchTeamTransfers(ctx context.Context, teamID int64) ([]usecase.PlayerTransferHistory, error) {
	c.logger.InfoContext(ctx, "requesting team transfers", "team_id", teamID)

	params := url.Values{}
	params.Set("team", strconv.FormatInt(teamID, 10))
	env, err := c.send(ctx, "transfers", params)
	if err != nil {
		return nil, fmt.Errorf("fetch team transfers team_id=%d: %w", teamID, err)
	}

	out := make([]usecase.PlayerTransferHistory, 0, len(env.Response))
	for _, raw := range env.Response {
		history, ok := mapTransferRow(raw)
		if !ok {
			c.logger.WarnContext(ctx, "skipping undecodable transfer row", "team_id", teamID)
			continue
		}
		out = append(out, history)
	}

	return out, nil
}

func mapTransferRow(raw json.RawMessage) (usecase.PlayerTransferHistory, bool) {
	var item transferPayload
	if err := sonic.Unmarshal(raw, &item); err != nil {
		return usecase.PlayerTransferHistory{}, false
	}

	history := usecase.PlayerTransferHistory{PlayerID: item.Player.ID}
	for _, transfer := range item.Transfers {
		history.Transfers = append(history.Transfers, usecase.TransferEvent{
			Date:      parseTransferDate(transfer.Date),
			RawDate:   transfer.Date,
			OutTeamID: transfer.Teams.Out.ID,
			InTeamID:  transfer.Teams.In.ID,
		})
	}

	return history, true
}

func parseDate(text string) *time.Time {
	parsed, err := time.Parse("2006-01-02", text)
	if err != nil {
		return nil
	}
	return &parsed
}

// parseTransferDate accepts ISO dates plus the feed's legacy six-digit
// ddmmyy spelling, e.g. "311220" for 2020-12-31.
func parseTransferDate(text string) *time.Time {
	if len(text) == 6 {
		day, errD := strconv.Atoi(text[:2])
		month, errM := strconv.Atoi(text[2:4])
		year, errY := strconv.Atoi(text[4:])
		if errD == nil && errM == nil && errY == nil && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			parsed := time.Date(2000+year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if parsed.Day() == day && int(parsed.Month()) == month {
				return &parsed
			}
		}
		return nil
	}
	return parseDate(text)
}
