package team

import "fmt"

// Team is a club identified by the upstream stats feed.
type Team struct {
	ID       int64
	Name     string
	ImageURL string
}

func (t Team) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("team id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}

	return nil
}

// Membership records a league/year in which a team competed. The resolver
// relies on it to disambiguate same-named teams across leagues.
type Membership struct {
	TeamID   int64
	LeagueID int64
	Year     int
}

func (m Membership) Validate() error {
	if m.TeamID <= 0 {
		return fmt.Errorf("membership team id is required")
	}
	if m.LeagueID <= 0 {
		return fmt.Errorf("membership league id is required")
	}
	if m.Year <= 0 {
		return fmt.Errorf("membership year is required")
	}

	return nil
}
