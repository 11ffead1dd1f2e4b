package game

import (
	"log"

	"meteor-dodge/internal/content"
)

// LevelManager loads level data into the spawner, the player and the
// session.
type LevelManager struct {
	levels  []content.Level
	current int
	loaded  bool

	spawner *MeteorSpawner
	player  *Player
	session *Session

	resolve func(names []string) []*Template
}

// NewLevelManager wires the collaborators. resolve maps a level's meteor
// names to templates.
func NewLevelManager(levels []content.Level, spawner *MeteorSpawner, player *Player, session *Session, resolve func([]string) []*Template) *LevelManager {
	return &LevelManager{
		levels:  levels,
		spawner: spawner,
		player:  player,
		session: session,
		resolve: resolve,
	}
}

// LoadLevel applies level index. Out of range indexes load level 0. Does
// nothing when there are no levels.
func (lm *LevelManager) LoadLevel(index int) {
	if len(lm.levels) == 0 {
		return
	}
	if index < 0 || index >= len(lm.levels) {
		index = 0
	}

	lm.current = index
	lm.loaded = true
	level := lm.levels[index]

	if lm.spawner != nil {
		var templates []*Template
		if lm.resolve != nil {
			templates = lm.resolve(level.Meteors)
		}
		lm.spawner.ApplyLevelArea(level, templates)
	}
	if lm.player != nil {
		lm.player.ApplyLevelData(level)
	}
	if lm.session != nil {
		lm.session.StartLevelTimer(level)
	}

	log.Printf("🌠 Level %d loaded: %s", index+1, level.Name)
}

// LoadNextLevel loads the following level, wrapping to the first.
func (lm *LevelManager) LoadNextLevel() {
	next := lm.current + 1
	if next >= len(lm.levels) {
		next = 0
	}
	lm.LoadLevel(next)
}

// ReloadLevel loads the current level again.
func (lm *LevelManager) ReloadLevel() {
	lm.LoadLevel(lm.current)
}

// Current returns the loaded level.
func (lm *LevelManager) Current() (content.Level, bool) {
	if !lm.loaded {
		return content.Level{}, false
	}
	return lm.levels[lm.current], true
}

// Index returns the current level index.
func (lm *LevelManager) Index() int { return lm.current }

// Levels returns every level in order.
func (lm *LevelManager) Levels() []content.Level { return lm.levels }
