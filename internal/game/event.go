package game

import (
	"time"

	"github.com/goccy/go-json"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeStateChange
	EventTypeLevelLoaded
	EventTypeLevelPassed
	EventTypeMeteorSpawn
	EventTypeFire
	EventTypeMeteorDestroyed
	EventTypePlayerHit
	EventTypeUpgrade
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is one line of the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	TickNum   uint64          `json:"tickNum"`
	Source    string          `json:"source"` // rate limiting key
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeStateChange:
		return "state_change"
	case EventTypeLevelLoaded:
		return "level_loaded"
	case EventTypeLevelPassed:
		return "level_passed"
	case EventTypeMeteorSpawn:
		return "meteor_spawn"
	case EventTypeFire:
		return "fire"
	case EventTypeMeteorDestroyed:
		return "meteor_destroyed"
	case EventTypePlayerHit:
		return "player_hit"
	case EventTypeUpgrade:
		return "upgrade"
	default:
		return "unknown"
	}
}

// StateChangePayload records a session state transition
type StateChangePayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Score int    `json:"score"`
	Lives int    `json:"lives"`
}

// LevelPayload identifies a level
type LevelPayload struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Score int    `json:"score,omitempty"`
}

// SpawnPayload describes a spawned meteor
type SpawnPayload struct {
	EntityID uint64 `json:"entityId"`
	Template string `json:"template"`
	Pos      Vec3   `json:"pos"`
}

// FirePayload describes a fired bullet
type FirePayload struct {
	EntityID uint64 `json:"entityId"`
	Ammo     int    `json:"ammo"`
}

// ScorePayload records score gained
type ScorePayload struct {
	Points int `json:"points"`
	Total  int `json:"total"`
}

// PlayerHitPayload records a life lost
type PlayerHitPayload struct {
	Lives int `json:"lives"`
}

// UpgradePayload records a ship upgrade
type UpgradePayload struct {
	ShipID string `json:"shipId"`
	Stat   string `json:"stat"`
	Level  int    `json:"level"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}
