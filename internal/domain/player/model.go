package player

import (
	"fmt"
	"strings"
)

// Player is an athlete in the canonical store. Value is a derived market
// value estimate, zero until a propagation pass assigns one.
type Player struct {
	ID       int64
	Name     string
	Surname  string
	Position string
	ImageURL string
	Value    float64
}

func (p Player) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("player id is required")
	}
	if p.Name == "" && p.Surname == "" {
		return fmt.Errorf("player name is required")
	}

	return nil
}

func (p Player) FullName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}
