package league

import (
	"fmt"
	"time"
)

// League is a national competition owning a calendar of seasons.
type League struct {
	ID          int64
	DisplayName string
	CountryCode string
	ImageURL    string
}

func (l League) Validate() error {
	if l.ID <= 0 {
		return fmt.Errorf("league id is required")
	}
	if l.DisplayName == "" {
		return fmt.Errorf("league display name is required")
	}

	return nil
}

// Season is a league's yearly competition window. Year is a dense integer
// key used for equality elsewhere, not derived from the dates.
type Season struct {
	LeagueID  int64
	Year      int
	StartDate time.Time
	EndDate   time.Time
}

func (s Season) Validate() error {
	if s.LeagueID <= 0 {
		return fmt.Errorf("season league id is required")
	}
	if s.Year <= 0 {
		return fmt.Errorf("season year is required")
	}
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		return fmt.Errorf("season dates are required")
	}
	if !s.StartDate.Before(s.EndDate) {
		return fmt.Errorf("season start date must precede end date")
	}

	return nil
}

// Brackets reports whether the date falls strictly inside the season window.
func (s Season) Brackets(date time.Time) bool {
	return s.StartDate.Before(date) && s.EndDate.After(date)
}

// Overlaps reports whether two seasons share any part of their windows.
func (s Season) Overlaps(other Season) bool {
	return s.StartDate.Before(other.EndDate) && other.StartDate.Before(s.EndDate)
}
