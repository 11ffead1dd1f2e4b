package game

import (
	"sync/atomic"
	"time"

	"meteor-dodge/internal/pool"
)

// ResourceLimits caps what a snapshot may carry
type ResourceLimits struct {
	MaxEntities int // Active entities copied per snapshot
	MaxPools    int // Pool stat rows per snapshot
}

// DefaultLimits provides production-safe default limits
var DefaultLimits = ResourceLimits{
	MaxEntities: 512,
	MaxPools:    8,
}

// EntitySnapshot is an immutable copy of one active entity
type EntitySnapshot struct {
	ID       uint64  `json:"id"`
	Kind     string  `json:"kind"`
	Template string  `json:"template"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Radius   float64 `json:"radius"`
	Age      float64 `json:"age,omitempty"` // explosions only
}

// PlayerSnapshot is the ship state
type PlayerSnapshot struct {
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Z               float64 `json:"z"`
	Ammo            int     `json:"ammo"`
	MaxAmmo         int     `json:"maxAmmo"`
	HorizontalSpeed float64 `json:"horizontalSpeed"`
	VerticalSpeed   float64 `json:"verticalSpeed"`
	Input           Input   `json:"input"`
}

// SessionSnapshot is the run state shown on the HUD
type SessionSnapshot struct {
	State            string  `json:"state"`
	Score            int     `json:"score"`
	Lives            int     `json:"lives"`
	LevelIndex       int     `json:"levelIndex"`
	LevelName        string  `json:"levelName"`
	LevelPassed      bool    `json:"levelPassed"`
	Progress         float64 `json:"progress"`
	LevelTimeScale   float64 `json:"levelTimeScale"`
	WarningIntensity float64 `json:"warningIntensity"`
	WarningMessage   string  `json:"warningMessage"`
}

// AreaSnapshot is the playable rectangle of the current level
type AreaSnapshot struct {
	MinX            float64 `json:"minX"`
	MaxX            float64 `json:"maxX"`
	MinY            float64 `json:"minY"`
	MaxY            float64 `json:"maxY"`
	BackgroundColor string  `json:"backgroundColor"`
}

// ShakeSnapshot captures camera shake state
type ShakeSnapshot struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Active  bool    `json:"active"`
}

// GameSnapshot is a complete immutable game state
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`
	Seed       int64     `json:"seed"`

	Entities []EntitySnapshot `json:"entities"`
	Player   PlayerSnapshot   `json:"player"`
	Session  SessionSnapshot  `json:"session"`
	Area     AreaSnapshot     `json:"area"`
	Shake    ShakeSnapshot    `json:"shake"`
	Pools    []pool.Stats     `json:"pools"`

	MeteorSpeed    float64 `json:"meteorSpeed"`
	ActiveEntities int     `json:"activeEntities"`
	TotalEntities  int     `json:"totalEntities"`
}

// Clone returns a deep copy that is safe to keep after the pool reuses the
// slot.
func (s *GameSnapshot) Clone() *GameSnapshot {
	c := *s
	c.Entities = append([]EntitySnapshot(nil), s.Entities...)
	c.Pools = append([]pool.Stats(nil), s.Pools...)
	return &c
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure
// Uses triple buffering for lock-free producer/consumer
type SnapshotPool struct {
	snapshots [3]GameSnapshot
	limits    ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits ResourceLimits) *SnapshotPool {
	p := &SnapshotPool{limits: limits}
	for i := range p.snapshots {
		p.snapshots[i] = GameSnapshot{
			Entities: make([]EntitySnapshot, 0, limits.MaxEntities),
			Pools:    make([]pool.Stats, 0, limits.MaxPools),
		}
	}
	return p
}

// AcquireWrite gets the next write slot (producer only, called from the tick)
// Returns a snapshot with reset slices but preserved capacity
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	entities := snap.Entities[:0]
	pools := snap.Pools[:0]
	*snap = GameSnapshot{Entities: entities, Pools: pools}

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()
	return snap
}

// PublishWrite marks write complete and advances read pointer
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// Limits returns the resource limits
func (p *SnapshotPool) Limits() ResourceLimits {
	return p.limits
}
