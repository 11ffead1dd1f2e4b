package game

import (
	"math"
	"testing"

	"meteor-dodge/internal/content"
	"meteor-dodge/internal/pool"
)

// fakeFX records what entity bodies ask of the engine
type fakeFX struct {
	score  int
	hits   int
	shakes [][2]float64
	sched  *Scheduler
	speed  float64
}

func newFakeFX() *fakeFX {
	return &fakeFX{sched: NewScheduler(), speed: 8}
}

func (f *fakeFX) addScore(points int) { f.score += points }
func (f *fakeFX) playerHit()          { f.hits++ }
func (f *fakeFX) shakeCamera(d, m float64) {
	f.shakes = append(f.shakes, [2]float64{d, m})
}
func (f *fakeFX) after(delay float64, fn func()) { f.sched.After(delay, fn) }
func (f *fakeFX) meteorSpeed() float64           { return f.speed }

var (
	testBullet    = &Template{Name: "bullet", Kind: content.KindBullet, Radius: 0.1}
	testMeteor    = &Template{Name: "rock", Kind: content.KindMeteor, Radius: 0.5, SpeedMultiplier: 1.5}
	testExplosion = &Template{Name: "boom", Kind: content.KindExplosion, Radius: 0.5, Lifetime: 1}
)

func newTestPool(w *World, name string, def *Template, size int) *EntityPool {
	return pool.New[*Template, *Entity](w, pool.Options[*Template]{
		Name:            name,
		DefaultTemplate: def,
		InitialSize:     size,
	})
}

func newTestEngine(t *testing.T, c *content.Content) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{
		TickRate:         60,
		StartLives:       3,
		Seed:             42,
		BulletPrewarm:    10,
		ExplosionPrewarm: 10,
	}, c, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func poolByName(stats []pool.Stats, name string) pool.Stats {
	for _, s := range stats {
		if s.Name == name {
			return s
		}
	}
	return pool.Stats{}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
