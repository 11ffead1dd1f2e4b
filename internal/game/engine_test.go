package game

import (
	"errors"
	"testing"
	"time"

	"meteor-dodge/internal/content"
	"meteor-dodge/internal/ship"
)

const testDt = 1.0 / 60

// TestNewEngine verifies pools are prewarmed and the welcome screen shows
func TestNewEngine(t *testing.T) {
	e := newTestEngine(t, nil)

	stats := e.PoolStats()
	if len(stats) != 4 {
		t.Fatalf("Expected 4 pools, got %d", len(stats))
	}
	for _, name := range []string{PoolBullets, PoolExplosions, PoolHitExplosions} {
		if s := poolByName(stats, name); s.Idle != 10 || s.Tracked != 10 {
			t.Errorf("%s: expected 10 idle and tracked, got %d/%d", name, s.Idle, s.Tracked)
		}
	}
	if s := poolByName(stats, PoolMeteors); s.Templates != 0 {
		t.Errorf("Meteor pool should start without queues, got %d", s.Templates)
	}

	snap := e.Snapshot()
	if snap.Session.State != "welcome" {
		t.Errorf("Expected welcome, got %s", snap.Session.State)
	}
	if snap.Player.MaxAmmo != 20 || snap.Area.MaxX != 4 {
		t.Errorf("Unexpected snapshot: ammo %d, maxX %f", snap.Player.MaxAmmo, snap.Area.MaxX)
	}
	if len(snap.Pools) != 4 {
		t.Errorf("Snapshot should carry pool stats, got %d", len(snap.Pools))
	}
}

// TestNewEngineInvalidContent verifies content is validated
func TestNewEngineInvalidContent(t *testing.T) {
	c := content.Default()
	c.Levels = nil

	if _, err := NewEngine(EngineConfig{}, c, nil); err == nil {
		t.Error("Expected an error for content without levels")
	}
}

// TestEngineFrozenOnWelcome verifies no simulation time passes before Play
func TestEngineFrozenOnWelcome(t *testing.T) {
	e := newTestEngine(t, nil)
	before := e.player.Pos

	for i := 0; i < 120; i++ {
		e.Step(testDt)
	}

	if e.TickCount() != 120 {
		t.Errorf("Expected 120 ticks, got %d", e.TickCount())
	}
	if e.player.Pos != before {
		t.Error("Player should not fall on the welcome screen")
	}
	if s := poolByName(e.PoolStats(), PoolMeteors); s.Acquires != 0 {
		t.Errorf("No meteors should spawn, got %d", s.Acquires)
	}
}

// TestEnginePauseResume verifies pausing freezes the world
func TestEnginePauseResume(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Play()
	e.Step(testDt)

	if !e.Pause() {
		t.Fatal("Pause failed")
	}
	pos := e.player.Pos
	for i := 0; i < 10; i++ {
		e.Step(testDt)
	}
	if e.player.Pos != pos {
		t.Error("Player moved while paused")
	}
	if e.Pause() {
		t.Error("Pausing twice should fail")
	}

	if !e.Resume() || e.Resume() {
		t.Error("Resume should work exactly once")
	}
	e.Step(testDt)
	if e.player.Pos == pos {
		t.Error("Player should fall again after resume")
	}

	e.BackToMenu()
	if snap := e.Snapshot(); snap.Session.State != "welcome" || snap.Session.Score != 0 {
		t.Errorf("Expected fresh welcome screen, got %s score %d", snap.Session.State, snap.Session.Score)
	}
}

// TestEngineBulletDestroysMeteor verifies the full bullet hit path
func TestEngineBulletDestroysMeteor(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Play()

	// Meteor ahead of the ship, moving away slower than a bullet
	m, err := e.Spawn("meteor_medium", Vec3{Z: 3}, Vec3{Z: 1})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if ok, err := e.Fire(); !ok || err != nil {
		t.Fatalf("Fire failed: %v %v", ok, err)
	}

	for i := 0; i < 60 && e.session.Score() == 0; i++ {
		e.Step(testDt)
	}

	if e.session.Score() != BulletHitScore {
		t.Fatalf("Expected score %d, got %d", BulletHitScore, e.session.Score())
	}
	if m.Active || !e.meteors.IsIdle(m) {
		t.Error("Hit meteor should be back in its pool")
	}
	if e.player.Ammo != 19 {
		t.Errorf("Expected 19 ammo, got %d", e.player.Ammo)
	}
	if s := poolByName(e.PoolStats(), PoolExplosions); s.Idle != 9 {
		t.Errorf("Expected one explosion out, idle=%d", s.Idle)
	}

	for i := 0; i < 70; i++ {
		e.Step(testDt)
	}
	if s := poolByName(e.PoolStats(), PoolExplosions); s.Idle != 10 {
		t.Errorf("Explosion should be released after a second, idle=%d", s.Idle)
	}
}

// TestEngineMeteorHitsPlayer verifies lives, explosion and shake
func TestEngineMeteorHitsPlayer(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Play()

	m, err := e.Spawn("meteor_medium", Vec3{Z: 2}, Back)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	for i := 0; i < 60 && e.session.Lives() == 3; i++ {
		e.Step(testDt)
	}

	if e.session.Lives() != 2 {
		t.Fatalf("Expected 2 lives, got %d", e.session.Lives())
	}
	if !e.meteors.IsIdle(m) {
		t.Error("Meteor should return to its pool after the hit")
	}
	if !e.shake.Active() || e.shake.Magnitude() != 0.25 {
		t.Error("Expected the big camera shake")
	}
	if s := poolByName(e.PoolStats(), PoolHitExplosions); s.Idle != 9 {
		t.Errorf("Expected one hit explosion out, idle=%d", s.Idle)
	}
}

// TestEngineLevelPassed verifies the timer, the freeze and NextLevel
func TestEngineLevelPassed(t *testing.T) {
	c := content.Default()
	c.Levels[0].Duration = 0.5
	e := newTestEngine(t, c)
	e.Play()

	if e.NextLevel() {
		t.Error("NextLevel before passing should fail")
	}

	for i := 0; i < 120 && !e.session.LevelPassed(); i++ {
		e.Step(testDt)
	}
	if !e.session.LevelPassed() {
		t.Fatal("Level should have passed")
	}

	pos := e.player.Pos
	e.Step(testDt)
	if e.player.Pos != pos {
		t.Error("Passed level should freeze the simulation")
	}

	if !e.NextLevel() {
		t.Fatal("NextLevel failed")
	}
	if e.levels.Index() != 1 || e.session.LevelPassed() {
		t.Errorf("Expected level 2 running, index=%d passed=%v", e.levels.Index(), e.session.LevelPassed())
	}
	if e.NextLevel() {
		t.Error("NextLevel twice should fail")
	}
}

// TestEngineBoundaryGameOver verifies diving into the floor ends the run
func TestEngineBoundaryGameOver(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Play()
	e.SetInput(Input{Y: -1, Active: true})

	for i := 0; i < 200 && e.session.State() == StatePlaying; i++ {
		e.Step(testDt)
	}

	if e.session.State() != StateGameOver {
		t.Errorf("Expected game over, got %s", e.session.State())
	}
}

// TestEngineFire verifies firing needs a run and ammo
func TestEngineFire(t *testing.T) {
	e := newTestEngine(t, nil)

	if _, err := e.Fire(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Expected ErrNotPlaying, got %v", err)
	}

	e.Play()
	for i := 0; i < 20; i++ {
		if ok, err := e.Fire(); !ok || err != nil {
			t.Fatalf("Shot %d failed: %v %v", i, ok, err)
		}
	}
	if ok, err := e.Fire(); ok || err != nil {
		t.Errorf("Expected an empty magazine, got %v %v", ok, err)
	}

	// Play refills
	e.Play()
	if e.player.Ammo != 20 {
		t.Errorf("Expected ammo refilled, got %d", e.player.Ammo)
	}
	if s := poolByName(e.PoolStats(), PoolBullets); s.Idle != s.Tracked {
		t.Errorf("Play should return every bullet, idle=%d tracked=%d", s.Idle, s.Tracked)
	}
}

// TestEngineUpgrade verifies upgrades apply only outside a run
func TestEngineUpgrade(t *testing.T) {
	e := newTestEngine(t, nil)

	stats, err := e.Upgrade(ship.StatAmmo)
	if err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	if stats.MaxAmmo != 22 || e.player.MaxAmmo != 22 {
		t.Errorf("Expected 22 max ammo, got %d / %d", stats.MaxAmmo, e.player.MaxAmmo)
	}

	if _, err := e.Upgrade("shields"); !errors.Is(err, ship.ErrUnknownStat) {
		t.Errorf("Expected ErrUnknownStat, got %v", err)
	}

	e.Play()
	if _, err := e.Upgrade(ship.StatAmmo); !errors.Is(err, ErrUpgradeInGame) {
		t.Errorf("Expected ErrUpgradeInGame, got %v", err)
	}

	_, state, _ := e.ShipInfo()
	if state.AmmoLevel != 1 {
		t.Errorf("Expected ammo level 1, got %d", state.AmmoLevel)
	}
}

// TestEngineSpawnUnknown verifies only meteor templates can be spawned
func TestEngineSpawnUnknown(t *testing.T) {
	e := newTestEngine(t, nil)

	for _, name := range []string{"nope", "bullet"} {
		if _, err := e.Spawn(name, Vec3{}, Back); !errors.Is(err, ErrUnknownTemplate) {
			t.Errorf("%s: expected ErrUnknownTemplate, got %v", name, err)
		}
	}
}

// TestEngineOnTick verifies the tick hook sees entity counts
func TestEngineOnTick(t *testing.T) {
	e := newTestEngine(t, nil)
	var got TickStats
	calls := 0
	e.OnTick = func(s TickStats) {
		got = s
		calls++
	}

	e.Step(testDt)

	if calls != 1 {
		t.Fatalf("Expected 1 call, got %d", calls)
	}
	if got.TotalEntities != 30 || got.ActiveEntities != 0 {
		t.Errorf("Expected 30 idle entities, got total=%d active=%d", got.TotalEntities, got.ActiveEntities)
	}
}

// TestEngineAutoPlay verifies the pilot starts runs and keeps them going
func TestEngineAutoPlay(t *testing.T) {
	e, err := NewEngine(EngineConfig{TickRate: 60, Seed: 7, BulletPrewarm: 10, ExplosionPrewarm: 10, AutoPlay: true}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	for i := 0; i < 600; i++ {
		e.Step(testDt)
	}

	if e.session.State() == StateWelcome {
		t.Error("Autopilot should have started a run")
	}
	if s := poolByName(e.PoolStats(), PoolMeteors); s.Acquires == 0 {
		t.Error("Expected meteors to spawn")
	}
}

// TestEngineDeterministic verifies equal seeds replay equally
func TestEngineDeterministic(t *testing.T) {
	run := func() *GameSnapshot {
		e, err := NewEngine(EngineConfig{TickRate: 60, Seed: 99, AutoPlay: true}, nil, nil)
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}
		for i := 0; i < 300; i++ {
			e.Step(testDt)
		}
		return e.Snapshot()
	}

	a, b := run(), run()
	if a.Session.Score != b.Session.Score || a.Session.Lives != b.Session.Lives {
		t.Errorf("Sessions diverged: %+v vs %+v", a.Session, b.Session)
	}
	if a.Player.X != b.Player.X || a.Player.Y != b.Player.Y {
		t.Errorf("Players diverged: %+v vs %+v", a.Player, b.Player)
	}
	if len(a.Entities) != len(b.Entities) {
		t.Fatalf("Entity counts diverged: %d vs %d", len(a.Entities), len(b.Entities))
	}
	for i := range a.Entities {
		if a.Entities[i] != b.Entities[i] {
			t.Fatalf("Entity %d diverged: %+v vs %+v", i, a.Entities[i], b.Entities[i])
		}
	}
}

// TestEngineStartStop verifies the ticker drives the engine
func TestEngineStartStop(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Start()
	e.Start()
	time.Sleep(100 * time.Millisecond)
	e.Stop()
	e.Stop()

	if e.TickCount() == 0 {
		t.Error("Expected ticks while running")
	}
}

// TestEngineRestart verifies the loop runs again after Stop
func TestEngineRestart(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Start()
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	stopped := e.TickCount()
	e.Start()
	defer e.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.TickCount() > stopped+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("Expected ticks after restart, stuck at %d", e.TickCount())
}

// TestEngineEventLog verifies gameplay emits events
func TestEngineEventLog(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.StartEventLog(""); err != nil {
		t.Fatalf("StartEventLog failed: %v", err)
	}

	e.Play()
	e.Fire()
	e.StopEventLog()

	stats := e.EventLogStats()
	if stats.Total < 3 {
		t.Errorf("Expected state, level and fire events, got %d", stats.Total)
	}
	if stats.Written != stats.Total || stats.Pending != 0 {
		t.Errorf("Stop should drain the buffer, written=%d pending=%d", stats.Written, stats.Pending)
	}
}
