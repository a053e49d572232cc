package militancy

import (
	"fmt"
	"time"
)

// Militancy is a dated interval of a player's membership on a team.
// (PlayerID, TeamID, Year) is the natural key from the upstream feed.
// Bounds stay nil until ingestion or reconciliation resolves them.
type Militancy struct {
	PlayerID    int64
	TeamID      int64
	Year        int
	StartDate   *time.Time
	EndDate     *time.Time
	Appearances int
}

func (m Militancy) Validate() error {
	if m.PlayerID <= 0 {
		return fmt.Errorf("militancy player id is required")
	}
	if m.TeamID <= 0 {
		return fmt.Errorf("militancy team id is required")
	}
	if m.Year <= 0 {
		return fmt.Errorf("militancy year is required")
	}
	if m.Appearances < 0 {
		return fmt.Errorf("militancy appearances must not be negative")
	}
	if m.StartDate != nil && m.EndDate != nil && !m.StartDate.Before(*m.EndDate) {
		return fmt.Errorf("militancy start date must precede end date")
	}

	return nil
}

// Bounded reports whether both interval bounds are known.
func (m Militancy) Bounded() bool {
	return m.StartDate != nil && m.EndDate != nil
}

// Brackets reports whether the date falls strictly inside the interval.
// Unbounded intervals bracket nothing.
func (m Militancy) Brackets(date time.Time) bool {
	return m.Bounded() && m.StartDate.Before(date) && m.EndDate.After(date)
}

// Contains reports whether other's interval nests inside m's interval.
// This is the co-militancy test: containment, not general overlap.
func (m Militancy) Contains(other Militancy) bool {
	if !m.Bounded() || !other.Bounded() {
		return false
	}
	return !other.StartDate.Before(*m.StartDate) && !other.EndDate.After(*m.EndDate)
}

// Overlaps reports whether two bounded intervals share any time span.
func (m Militancy) Overlaps(other Militancy) bool {
	if !m.Bounded() || !other.Bounded() {
		return false
	}
	return m.StartDate.Before(*other.EndDate) && other.StartDate.Before(*m.EndDate)
}
