package game

import (
	"math"
	"math/rand"

	"meteor-dodge/internal/content"
)

// Spawner defaults.
const (
	DefaultSpawnZ      = 20.0
	spawnAreaMargin    = 2.0
	maxHorizontalAngle = 8.0 // degrees of yaw either side
	maxDownAngle       = 4.0 // degrees of pitch either side
	minForwardZ        = -0.1
)

// MeteorSpawner drops a random meteor from the level's set every interval.
type MeteorSpawner struct {
	Interval        float64
	Center          Vec3
	RangeX, RangeY  float64
	MeteorSpeed     float64
	DestroyDistance float64

	meteors       *EntityPool
	hitExplosions *EntityPool
	templates     []*Template

	timer float64
	rng   *rand.Rand
}

// NewMeteorSpawner creates a spawner drawing randomness from rng.
func NewMeteorSpawner(rng *rand.Rand) *MeteorSpawner {
	return &MeteorSpawner{
		Interval:        1.2,
		Center:          Vec3{Z: DefaultSpawnZ},
		RangeX:          2.5,
		RangeY:          1.5,
		MeteorSpeed:     8,
		DestroyDistance: DefaultDestroyDistance,
		rng:             rng,
	}
}

// SetPools wires the meteor pool and the explosion pool handed to meteors.
func (s *MeteorSpawner) SetPools(meteors, hitExplosions *EntityPool) {
	s.meteors = meteors
	s.hitExplosions = hitExplosions
}

// ApplyLevelArea centers the spawn area on the level and takes its tempo
// and meteor set.
func (s *MeteorSpawner) ApplyLevelArea(level content.Level, templates []*Template) {
	s.Center.X = (level.MinX + level.MaxX) * 0.5
	s.Center.Y = (level.MinY + level.MaxY) * 0.5

	s.RangeX = (level.MaxX-level.MinX)*0.5 + spawnAreaMargin
	s.RangeY = (level.MaxY-level.MinY)*0.5 + spawnAreaMargin

	s.Interval = level.SpawnInterval
	s.MeteorSpeed = level.BaseMeteorSpeed
	s.templates = templates
}

// Templates returns the meteor set in use.
func (s *MeteorSpawner) Templates() []*Template { return s.templates }

// Reset restarts the interval timer.
func (s *MeteorSpawner) Reset() { s.timer = 0 }

// Update advances the timer and spawns when the interval elapses. Returns
// the spawned meteor, if any.
func (s *MeteorSpawner) Update(dt float64) *Entity {
	s.timer += dt
	if s.timer < s.Interval {
		return nil
	}
	s.timer = 0
	return s.Spawn()
}

// Spawn places one meteor. Returns nil when there is no pool, no meteor set
// or the pool could not produce one.
func (s *MeteorSpawner) Spawn() *Entity {
	if s.meteors == nil || len(s.templates) == 0 {
		return nil
	}

	tmpl := s.templates[s.rng.Intn(len(s.templates))]
	if tmpl == nil {
		return nil
	}

	pos := s.Center
	pos.X += s.symmetric(s.RangeX)
	pos.Y += s.symmetric(s.RangeY)

	e, ok := s.meteors.Acquire(tmpl)
	if !ok {
		return nil
	}
	e.Pos = pos

	if m, ok := e.Body.(*Meteor); ok {
		m.SetPools(s.meteors, s.hitExplosions)
		m.SetSpawnPosition(pos)
		m.SetDestroyDistance(s.DestroyDistance)

		yaw := degToRad(s.symmetric(maxHorizontalAngle))
		pitch := degToRad(s.symmetric(maxDownAngle))
		m.SetDirection(spawnDirection(yaw, pitch))
	}

	return e
}

// symmetric returns a uniform value in [-r, r].
func (s *MeteorSpawner) symmetric(r float64) float64 {
	return (s.rng.Float64()*2 - 1) * r
}

// spawnDirection rotates Back by pitch around X then yaw around Y, and keeps
// the result heading towards the player.
func spawnDirection(yaw, pitch float64) Vec3 {
	cp := math.Cos(pitch)
	dir := Vec3{
		X: -cp * math.Sin(yaw),
		Y: math.Sin(pitch),
		Z: -cp * math.Cos(yaw),
	}
	if dir.Z > minForwardZ {
		dir.Z = minForwardZ
	}
	return dir.Normalized()
}
