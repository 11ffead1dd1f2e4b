package game

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"meteor-dodge/internal/content"
	"meteor-dodge/internal/game/spatial"
	"meteor-dodge/internal/pool"
	"meteor-dodge/internal/ship"
)

// Pool names, used in logs, metrics and the API.
const (
	PoolBullets       = "bullets"
	PoolExplosions    = "explosions"
	PoolHitExplosions = "hit_explosions"
	PoolMeteors       = "meteors"
)

// Collision grid coverage on the X/Z plane.
const (
	gridOriginX = -20.0
	gridOriginZ = -10.0
	gridWidth   = 40.0
	gridDepth   = 40.0
	gridCell    = 2.0
)

var (
	ErrNotPlaying      = errors.New("no run in progress")
	ErrUpgradeInGame   = errors.New("upgrades are only available outside a run")
	ErrUnknownTemplate = errors.New("unknown template")
)

// EngineConfig configures a new engine
type EngineConfig struct {
	TickRate         int
	StartLives       int
	Seed             int64 // 0 picks a time based seed
	BulletPrewarm    int
	ExplosionPrewarm int
	AutoPlay         bool
	Observer         pool.Observer // optional pool metrics sink
}

// TickStats describes one completed tick, for metrics
type TickStats struct {
	Duration       time.Duration
	ActiveEntities int
	TotalEntities  int
}

// Engine runs the fixed-step simulation. Every mutation goes through the
// engine lock; pools and entities are only touched inside it.
type Engine struct {
	mu sync.RWMutex

	content   *content.Content
	templates map[string]*Template

	world         *World
	bullets       *EntityPool
	explosions    *EntityPool
	hitExplosions *EntityPool
	meteors       *EntityPool

	session   *Session
	player    *Player
	spawner   *MeteorSpawner
	levels    *LevelManager
	shake     *CameraShake
	scheduler *Scheduler
	ships     *ship.Manager
	pilot     *autopilot

	grid      *spatial.Grid
	colliders []*Entity

	tickRate  int
	running   bool
	ticker    *time.Ticker
	stopChan  chan struct{}
	tickCount uint64

	// Deterministic RNG for replay consistency
	rng  *rand.Rand
	seed int64

	snapshotPool *SnapshotPool
	eventLog     *EventLog

	// Called after every tick, outside the lock
	OnTick func(TickStats)
}

// NewEngine builds the world, the pools and every gameplay collaborator
// from content. ships may be nil, in which case the starter ship is used.
func NewEngine(cfg EngineConfig, c *content.Content, ships *ship.Manager) (*Engine, error) {
	if c == nil {
		c = content.Default()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if ships == nil {
		def := ship.DefaultDefinition()
		m, err := ship.NewManager([]ship.Definition{def}, def.ID, ship.UpgradeState{}, nil)
		if err != nil {
			return nil, err
		}
		ships = m
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	e := &Engine{
		content:      c,
		templates:    make(map[string]*Template, len(c.Templates)),
		scheduler:    NewScheduler(),
		shake:        NewCameraShake(rng),
		ships:        ships,
		grid:         spatial.NewGrid(gridOriginX, gridOriginZ, gridWidth, gridDepth, gridCell, DefaultLimits.MaxEntities),
		colliders:    make([]*Entity, 0, DefaultLimits.MaxEntities),
		tickRate:     cfg.TickRate,
		stopChan:     make(chan struct{}),
		rng:          rng,
		seed:         seed,
		snapshotPool: NewSnapshotPool(DefaultLimits),
		eventLog:     NewEventLog(),
	}
	if cfg.AutoPlay {
		e.pilot = &autopilot{}
	}

	for _, spec := range c.Templates {
		e.templates[spec.Name] = NewTemplate(spec)
	}

	e.world = NewWorld(e)
	e.bullets = pool.New[*Template, *Entity](e.world, pool.Options[*Template]{
		Name:            PoolBullets,
		DefaultTemplate: e.templates[c.Bullet],
		InitialSize:     cfg.BulletPrewarm,
		Observer:        cfg.Observer,
	})
	e.explosions = pool.New[*Template, *Entity](e.world, pool.Options[*Template]{
		Name:            PoolExplosions,
		DefaultTemplate: e.templates[c.Explosion],
		InitialSize:     cfg.ExplosionPrewarm,
		Observer:        cfg.Observer,
	})
	e.hitExplosions = pool.New[*Template, *Entity](e.world, pool.Options[*Template]{
		Name:            PoolHitExplosions,
		DefaultTemplate: e.templates[c.PlayerHitExplosion],
		InitialSize:     cfg.ExplosionPrewarm,
		Observer:        cfg.Observer,
	})
	e.meteors = pool.New[*Template, *Entity](e.world, pool.Options[*Template]{
		Name:     PoolMeteors,
		Observer: cfg.Observer,
	})

	e.session = NewSession(cfg.StartLives)
	e.session.OnStateChange = e.onStateChange
	e.session.OnLevelPassed = e.onLevelPassed

	e.player = NewPlayer(e.session)
	e.player.SetPools(e.bullets, e.explosions)
	e.player.ApplyShipStats(ships.Stats())

	e.spawner = NewMeteorSpawner(rng)
	e.spawner.SetPools(e.meteors, e.hitExplosions)

	e.levels = NewLevelManager(c.Levels, e.spawner, e.player, e.session, e.resolveTemplates)
	e.levels.LoadLevel(0)
	e.respawnPlayer()

	e.produceSnapshot()
	return e, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.stopChan = make(chan struct{})
	ticks, stop := e.ticker.C, e.stopChan
	e.mu.Unlock()

	dt := 1.0 / float64(e.tickRate)
	go func() {
		for {
			select {
			case <-ticks:
				e.Step(dt)
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS (seed %d)", e.tickRate, e.seed)
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Game engine stopped")
}

// Step advances the whole game by dt seconds of wall time. It is the only
// place simulation time moves.
func (e *Engine) Step(dt float64) {
	start := time.Now()

	e.mu.Lock()
	e.step(dt)
	total, active := e.world.Count()
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(TickStats{
			Duration:       time.Since(start),
			ActiveEntities: active,
			TotalEntities:  total,
		})
	}
}

func (e *Engine) step(dt float64) {
	e.tickCount++

	if e.pilot != nil {
		e.pilot.manage(e)
	}

	simDt := dt * e.session.TimeScale()
	e.session.Update(simDt)

	if simDt > 0 {
		if e.pilot != nil {
			e.pilot.drive(e, simDt)
		}

		e.player.Update(simDt)

		if spawned := e.spawner.Update(simDt); spawned != nil {
			e.emit(EventTypeMeteorSpawn, spawned.Template.Name, SpawnPayload{
				EntityID: spawned.ID,
				Template: spawned.Template.Name,
				Pos:      spawned.Pos,
			})
		}

		// Updates may release entities but never add to the world
		entities := e.world.Entities()
		for i := 0; i < len(entities); i++ {
			ent := entities[i]
			if !ent.Active {
				continue
			}
			if u, ok := ent.Body.(Updatable); ok {
				u.Update(simDt)
			}
		}

		e.resolveCollisions()
		e.scheduler.Advance(simDt)
	}

	e.shake.Update(simDt)
	e.produceSnapshot()
}

// resolveCollisions runs the broad phase on the grid and dispatches hits.
func (e *Engine) resolveCollisions() {
	e.grid.Clear()
	e.colliders = e.colliders[:0]

	for _, ent := range e.world.Entities() {
		if !ent.Active {
			continue
		}
		if _, ok := ent.Body.(Collidable); !ok {
			continue
		}
		e.grid.Insert(uint32(len(e.colliders)), ent.Pos.X, ent.Pos.Z)
		e.colliders = append(e.colliders, ent)
	}

	reach := e.maxRadius() * 2

	// Bullets against meteors
	for _, ent := range e.colliders {
		b, ok := ent.Body.(*Bullet)
		if !ok || !ent.Active {
			continue
		}
		bs := b.Bounds()
		for _, idx := range e.grid.QueryRadius(ent.Pos.X, ent.Pos.Z, reach) {
			other := e.colliders[idx]
			m, ok := other.Body.(*Meteor)
			if !ok || !other.Active {
				continue
			}
			if bs.Overlaps(m.Bounds()) {
				b.HitMeteor(m)
				break
			}
		}
	}

	// Meteors against the player, then against each other
	ps := e.player.Bounds()
	for i, ent := range e.colliders {
		m, ok := ent.Body.(*Meteor)
		if !ok || !ent.Active {
			continue
		}
		ms := m.Bounds()
		if ms.Overlaps(ps) {
			m.Collide(ms.ContactPoint(ps), true)
			continue
		}

		for _, idx := range e.grid.QueryRadius(ent.Pos.X, ent.Pos.Z, reach) {
			if int(idx) <= i {
				continue
			}
			other := e.colliders[idx]
			om, ok := other.Body.(*Meteor)
			if !ok || !other.Active {
				continue
			}
			oms := om.Bounds()
			if ms.Overlaps(oms) {
				contact := ms.ContactPoint(oms)
				m.Collide(contact, false)
				om.Collide(contact, false)
				break
			}
		}
	}
}

func (e *Engine) maxRadius() float64 {
	r := PlayerRadius
	for _, t := range e.templates {
		if t.Radius > r {
			r = t.Radius
		}
	}
	return r
}

// resolveTemplates maps meteor names to templates, skipping unknown names.
func (e *Engine) resolveTemplates(names []string) []*Template {
	out := make([]*Template, 0, len(names))
	for _, n := range names {
		if t, ok := e.templates[n]; ok {
			out = append(out, t)
			continue
		}
		log.Printf("⚠️ Unknown meteor template %q", n)
	}
	return out
}

// respawnPlayer puts the ship in the middle of the current level.
func (e *Engine) respawnPlayer() {
	lvl, ok := e.levels.Current()
	if !ok {
		e.player.Respawn(Vec3{})
		return
	}
	e.player.Respawn(Vec3{
		X: (lvl.MinX + lvl.MaxX) * 0.5,
		Y: (lvl.MinY + lvl.MaxY) * 0.5,
	})
}

// releaseAll hands every active entity back to its pool and drops pending
// actions that would release them later.
func (e *Engine) releaseAll() {
	for _, ent := range append([]*Entity(nil), e.world.Entities()...) {
		if !ent.Active {
			continue
		}
		if p, ok := ent.Body.(Poolable); ok {
			p.ReturnToPool()
		} else {
			ent.Active = false
		}
	}
	e.scheduler.Clear()
	e.shake.Reset()
	e.spawner.Reset()
}

// =============================================================================
// effects implementation, called by entity bodies inside the tick
// =============================================================================

func (e *Engine) addScore(points int) {
	e.session.AddScore(points)
	e.emit(EventTypeMeteorDestroyed, "", ScorePayload{Points: points, Total: e.session.Score()})
}

func (e *Engine) playerHit() {
	e.session.PlayerHit()
	e.emit(EventTypePlayerHit, "player", PlayerHitPayload{Lives: e.session.Lives()})
}

func (e *Engine) shakeCamera(duration, magnitude float64) {
	e.shake.Shake(duration, magnitude)
}

func (e *Engine) after(delay float64, fn func()) { e.scheduler.After(delay, fn) }

func (e *Engine) meteorSpeed() float64 { return e.player.MeteorSpeed() }

func (e *Engine) emit(t EventType, source string, payload interface{}) {
	e.eventLog.EmitSimple(t, e.tickCount, source, payload)
}

func (e *Engine) onStateChange(from, to State) {
	log.Printf("🕹️ %s -> %s (score %d, lives %d)", from, to, e.session.Score(), e.session.Lives())
	e.emit(EventTypeStateChange, "", StateChangePayload{
		From:  from.String(),
		To:    to.String(),
		Score: e.session.Score(),
		Lives: e.session.Lives(),
	})
}

func (e *Engine) onLevelPassed() {
	lvl, _ := e.levels.Current()
	log.Printf("🏁 Level %d passed: %s", e.levels.Index()+1, lvl.Name)
	e.emit(EventTypeLevelPassed, "", LevelPayload{
		Index: e.levels.Index(),
		Name:  lvl.Name,
		Score: e.session.Score(),
	})
}

// =============================================================================
// Controls
// =============================================================================

// Play starts a new run from the first level.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.play()
}

func (e *Engine) play() {
	e.releaseAll()
	e.session.Play()
	e.player.ApplyShipStats(e.ships.Stats())
	e.levels.LoadLevel(0)
	e.emitLevelLoaded()
	e.respawnPlayer()
}

func (e *Engine) emitLevelLoaded() {
	lvl, _ := e.levels.Current()
	e.emit(EventTypeLevelLoaded, "", LevelPayload{Index: e.levels.Index(), Name: lvl.Name})
}

// Pause pauses a running game.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Pause()
}

// Resume continues a paused game.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Resume()
}

// NextLevel moves on after a level was passed.
func (e *Engine) NextLevel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextLevel()
}

func (e *Engine) nextLevel() bool {
	if !e.session.NextLevel() {
		return false
	}
	e.levels.LoadNextLevel()
	e.emitLevelLoaded()
	return true
}

// BackToMenu abandons the run and returns to the welcome screen.
func (e *Engine) BackToMenu() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseAll()
	e.session.BackToMenu()
	e.levels.LoadLevel(0)
	e.emitLevelLoaded()
	e.respawnPlayer()
}

// SetInput stores a joystick sample for the next ticks.
func (e *Engine) SetInput(in Input) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.player.SetInput(in)
}

// Fire shoots one bullet. Only possible while the simulation runs.
func (e *Engine) Fire() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.TimeScale() == 0 {
		return false, ErrNotPlaying
	}
	return e.fire(), nil
}

func (e *Engine) fire() bool {
	ent, ok := e.player.Fire()
	if !ok {
		return false
	}
	e.emit(EventTypeFire, "player", FirePayload{EntityID: ent.ID, Ammo: e.player.Ammo})
	return true
}

// Upgrade raises a ship stat and refreshes the player. Not allowed during
// a run.
func (e *Engine) Upgrade(stat string) (ship.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st := e.session.State(); st == StatePlaying || st == StatePaused {
		return ship.Stats{}, ErrUpgradeInGame
	}
	if err := e.ships.Upgrade(stat); err != nil {
		return ship.Stats{}, err
	}

	stats := e.ships.Stats()
	e.player.ApplyShipStats(stats)
	if lvl, ok := e.levels.Current(); ok {
		e.player.ApplyLevelData(lvl)
	}

	state := e.ships.State()
	level := state.AmmoLevel
	switch stat {
	case ship.StatHorizontal:
		level = state.HorizontalManeuverLevel
	case ship.StatVertical:
		level = state.VerticalManeuverLevel
	}
	e.emit(EventTypeUpgrade, "", UpgradePayload{ShipID: state.ShipID, Stat: stat, Level: level})
	log.Printf("🔧 Upgraded %s to level %d", stat, level)

	return stats, nil
}

// ShipInfo returns the ship definition, levels and derived stats.
func (e *Engine) ShipInfo() (ship.Definition, ship.UpgradeState, ship.Stats) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ships.Current(), e.ships.State(), e.ships.Stats()
}

// Spawn places a meteor of the named template at pos heading along dir.
// Used by tools and tests to build exact scenes.
func (e *Engine) Spawn(name string, pos, dir Vec3) (*Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.templates[name]
	if !ok || t.Kind != content.KindMeteor {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	ent, ok := e.meteors.Acquire(t)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	ent.Pos = pos
	m := ent.Body.(*Meteor)
	m.SetPools(e.meteors, e.hitExplosions)
	m.SetSpawnPosition(pos)
	m.SetDirection(dir)
	return ent, nil
}

// =============================================================================
// Observation
// =============================================================================

// PoolStats returns counters for every pool.
func (e *Engine) PoolStats() []pool.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.poolStats(nil)
}

func (e *Engine) poolStats(dst []pool.Stats) []pool.Stats {
	return append(dst,
		e.bullets.Stats(),
		e.explosions.Stats(),
		e.hitExplosions.Stats(),
		e.meteors.Stats(),
	)
}

// Levels returns the level list.
func (e *Engine) Levels() []content.Level {
	return e.content.Levels
}

// GetSnapshot returns the latest published snapshot. The pointer is
// overwritten after two more ticks; use Snapshot for a stable copy.
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// Snapshot returns a copy of the latest snapshot.
func (e *Engine) Snapshot() *GameSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotPool.AcquireRead().Clone()
}

// TickCount returns the number of completed ticks.
func (e *Engine) TickCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	snap.TickNumber = e.tickCount
	snap.Seed = e.seed

	limit := e.snapshotPool.Limits().MaxEntities
	for _, ent := range e.world.Entities() {
		if !ent.Active {
			continue
		}
		snap.ActiveEntities++
		if len(snap.Entities) >= limit {
			continue
		}
		es := EntitySnapshot{
			ID:       ent.ID,
			Kind:     ent.Template.Kind,
			Template: ent.Template.Name,
			X:        ent.Pos.X,
			Y:        ent.Pos.Y,
			Z:        ent.Pos.Z,
			Radius:   ent.Template.Radius,
		}
		if x, ok := ent.Body.(*Explosion); ok {
			es.Age = x.Age
		}
		snap.Entities = append(snap.Entities, es)
	}
	snap.TotalEntities = len(e.world.Entities())

	snap.Player = PlayerSnapshot{
		X:               e.player.Pos.X,
		Y:               e.player.Pos.Y,
		Z:               e.player.Pos.Z,
		Ammo:            e.player.Ammo,
		MaxAmmo:         e.player.MaxAmmo,
		HorizontalSpeed: e.player.HorizontalSpeed,
		VerticalSpeed:   e.player.VerticalSpeed,
		Input:           e.player.Input(),
	}

	intensity, msg := e.session.Warning()
	lvl, _ := e.levels.Current()
	snap.Session = SessionSnapshot{
		State:            e.session.State().String(),
		Score:            e.session.Score(),
		Lives:            e.session.Lives(),
		LevelIndex:       e.levels.Index(),
		LevelName:        lvl.Name,
		LevelPassed:      e.session.LevelPassed(),
		Progress:         e.session.Progress(),
		LevelTimeScale:   e.session.LevelTimeScale(),
		WarningIntensity: intensity,
		WarningMessage:   msg,
	}
	snap.Area = AreaSnapshot{
		MinX:            lvl.MinX,
		MaxX:            lvl.MaxX,
		MinY:            lvl.MinY,
		MaxY:            lvl.MaxY,
		BackgroundColor: lvl.BackgroundColor,
	}
	snap.Shake = ShakeSnapshot{
		OffsetX: e.shake.OffsetX,
		OffsetY: e.shake.OffsetY,
		Active:  e.shake.Active(),
	}
	snap.Pools = e.poolStats(snap.Pools)
	snap.MeteorSpeed = e.player.MeteorSpeed()

	e.snapshotPool.PublishWrite()
}

// StartEventLog starts the event log writer
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and stops the event log writer
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EventLogStats returns event log counters
func (e *Engine) EventLogStats() EventLogStats {
	return e.eventLog.Stats()
}

// GridStats returns broad phase occupancy from the last tick
func (e *Engine) GridStats() spatial.GridStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.grid.Stats()
}
