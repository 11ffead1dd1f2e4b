// Package ship holds ship definitions, per-player upgrade levels and the
// stats derived from them.
package ship

import (
	"errors"
	"fmt"
	"log"
)

// Stat names accepted by Upgrade.
const (
	StatHorizontal = "horizontal"
	StatVertical   = "vertical"
	StatAmmo       = "ammo"
)

var (
	ErrUnknownStat = errors.New("unknown ship stat")
	ErrMaxLevel    = errors.New("stat already at max level")
	ErrNoShip      = errors.New("no ship definition available")
)

// Definition is the static blueprint of a ship.
type Definition struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"displayName" json:"displayName"`

	BaseHorizontalManeuver float64 `yaml:"baseHorizontalManeuver" json:"baseHorizontalManeuver"`
	BaseVerticalManeuver   float64 `yaml:"baseVerticalManeuver" json:"baseVerticalManeuver"`
	BaseAmmo               int     `yaml:"baseAmmo" json:"baseAmmo"`

	MaxHorizontalManeuverLevel int `yaml:"maxHorizontalManeuverLevel" json:"maxHorizontalManeuverLevel"`
	MaxVerticalManeuverLevel   int `yaml:"maxVerticalManeuverLevel" json:"maxVerticalManeuverLevel"`
	MaxAmmoLevel               int `yaml:"maxAmmoLevel" json:"maxAmmoLevel"`

	HorizontalManeuverPerLevel float64 `yaml:"horizontalManeuverPerLevel" json:"horizontalManeuverPerLevel"`
	VerticalManeuverPerLevel   float64 `yaml:"verticalManeuverPerLevel" json:"verticalManeuverPerLevel"`
	AmmoPerLevel               int     `yaml:"ammoPerLevel" json:"ammoPerLevel"`
}

// DefaultDefinition returns the starter ship.
func DefaultDefinition() Definition {
	return Definition{
		ID:                         "star_sparrow_1",
		DisplayName:                "Star Sparrow",
		BaseHorizontalManeuver:     5,
		BaseVerticalManeuver:       3,
		BaseAmmo:                   20,
		MaxHorizontalManeuverLevel: 10,
		MaxVerticalManeuverLevel:   10,
		MaxAmmoLevel:               10,
		HorizontalManeuverPerLevel: 0.5,
		VerticalManeuverPerLevel:   0.3,
		AmmoPerLevel:               2,
	}
}

// UpgradeState is the persisted progress for one ship.
type UpgradeState struct {
	ShipID                  string `json:"shipId"`
	HorizontalManeuverLevel int    `json:"horizontalManeuverLevel"`
	VerticalManeuverLevel   int    `json:"verticalManeuverLevel"`
	AmmoLevel               int    `json:"ammoLevel"`
}

// Stats are the values the player controller consumes.
type Stats struct {
	HorizontalSpeed float64 `json:"horizontalSpeed"`
	VerticalSpeed   float64 `json:"verticalSpeed"`
	MaxAmmo         int     `json:"maxAmmo"`
}

// Saver persists upgrade state.
type Saver interface {
	Save(state UpgradeState) error
}

// Manager resolves the current ship and its upgrade state.
type Manager struct {
	ships   []Definition
	current *Definition
	state   UpgradeState
	saver   Saver
}

// NewManager picks the ship named by state, falling back to defaultID.
// The saver may be nil, in which case Save is a no-op.
func NewManager(ships []Definition, defaultID string, state UpgradeState, saver Saver) (*Manager, error) {
	m := &Manager{
		ships: ships,
		state: state,
		saver: saver,
	}

	m.current = m.find(state.ShipID)
	if m.current == nil {
		m.current = m.find(defaultID)
		if m.current == nil && len(ships) > 0 {
			m.current = &m.ships[0]
		}
		if m.current == nil {
			return nil, ErrNoShip
		}
		if state.ShipID != "" {
			log.Printf("⚠️ Saved ship %q not found, using %q", state.ShipID, m.current.ID)
		}
		m.state.ShipID = m.current.ID
	}

	return m, nil
}

func (m *Manager) find(id string) *Definition {
	if id == "" {
		return nil
	}
	for i := range m.ships {
		if m.ships[i].ID == id {
			return &m.ships[i]
		}
	}
	return nil
}

// Current returns the active ship definition.
func (m *Manager) Current() Definition { return *m.current }

// State returns the current upgrade levels.
func (m *Manager) State() UpgradeState { return m.state }

// HorizontalManeuver is the left/right speed.
func (m *Manager) HorizontalManeuver() float64 {
	return m.current.BaseHorizontalManeuver +
		float64(m.state.HorizontalManeuverLevel)*m.current.HorizontalManeuverPerLevel
}

// VerticalManeuver is the up/down speed.
func (m *Manager) VerticalManeuver() float64 {
	return m.current.BaseVerticalManeuver +
		float64(m.state.VerticalManeuverLevel)*m.current.VerticalManeuverPerLevel
}

// MaxAmmo is the bullet capacity.
func (m *Manager) MaxAmmo() int {
	return m.current.BaseAmmo + m.state.AmmoLevel*m.current.AmmoPerLevel
}

// Stats bundles the derived values.
func (m *Manager) Stats() Stats {
	return Stats{
		HorizontalSpeed: m.HorizontalManeuver(),
		VerticalSpeed:   m.VerticalManeuver(),
		MaxAmmo:         m.MaxAmmo(),
	}
}

// Upgrade raises one stat by a level and saves. The new level only takes
// effect once the save succeeds.
func (m *Manager) Upgrade(stat string) error {
	next := m.state
	var level *int
	var max int

	switch stat {
	case StatHorizontal:
		level, max = &next.HorizontalManeuverLevel, m.current.MaxHorizontalManeuverLevel
	case StatVertical:
		level, max = &next.VerticalManeuverLevel, m.current.MaxVerticalManeuverLevel
	case StatAmmo:
		level, max = &next.AmmoLevel, m.current.MaxAmmoLevel
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStat, stat)
	}

	if *level >= max {
		return ErrMaxLevel
	}
	*level++

	if m.saver != nil {
		if err := m.saver.Save(next); err != nil {
			return fmt.Errorf("save upgrade: %w", err)
		}
	}
	m.state = next
	return nil
}

// Save persists the current state.
func (m *Manager) Save() error {
	if m.saver == nil {
		return nil
	}
	return m.saver.Save(m.state)
}
