package game

import (
	"math"

	"meteor-dodge/internal/content"
)

// Autopilot tuning.
const (
	pilotFireCooldown = 0.35 // seconds between shots
	pilotLookAhead    = 8.0  // how far down +Z threats are considered
	pilotDodgeMargin  = 0.8
	pilotAimMargin    = 0.2
)

// autopilot plays the game by itself: it starts runs, moves on after a
// passed level, holds the ship near mid height, sidesteps meteors and shoots
// the ones lined up ahead. Used for unattended demo servers.
type autopilot struct {
	cooldown float64
}

// manage drives the menus. Called every tick, even while time is stopped.
func (a *autopilot) manage(e *Engine) {
	switch e.session.State() {
	case StateWelcome, StateGameOver:
		e.play()
	case StatePlaying:
		if e.session.LevelPassed() {
			e.nextLevel()
		}
	}
}

// drive produces joystick input and fire commands.
func (a *autopilot) drive(e *Engine, dt float64) {
	p := e.player
	lvl, ok := e.levels.Current()
	if !ok {
		return
	}

	midY := (lvl.MinY + lvl.MaxY) * 0.5
	in := Input{Active: true}
	in.Y = clamp((midY-p.Pos.Y)*1.5+0.3, -1, 1)

	threat, target := a.scan(e)
	switch {
	case threat != nil:
		if threat.Pos.X >= p.Pos.X {
			in.X = -1
		} else {
			in.X = 1
		}
	default:
		midX := (lvl.MinX + lvl.MaxX) * 0.5
		in.X = clamp((midX-p.Pos.X)*0.5, -1, 1)
	}
	p.SetInput(in)

	a.cooldown -= dt
	if target != nil && a.cooldown <= 0 {
		if e.fire() {
			a.cooldown = pilotFireCooldown
		}
	}
}

// scan returns the closest meteor on a collision course and the closest one
// lined up for a shot.
func (a *autopilot) scan(e *Engine) (threat, target *Entity) {
	p := e.player
	threatZ, targetZ := math.Inf(1), math.Inf(1)

	for _, ent := range e.world.Entities() {
		if !ent.Active || ent.Template.Kind != content.KindMeteor {
			continue
		}
		dz := ent.Pos.Z - p.Pos.Z
		if dz < 0 || dz > pilotLookAhead {
			continue
		}
		dx := math.Abs(ent.Pos.X - p.Pos.X)
		dy := math.Abs(ent.Pos.Y - p.Pos.Y)
		reach := ent.Template.Radius + PlayerRadius

		if dx < reach+pilotDodgeMargin && dy < reach+pilotDodgeMargin && dz < threatZ {
			threat, threatZ = ent, dz
		}
		if dx < ent.Template.Radius+pilotAimMargin && dy < ent.Template.Radius+pilotAimMargin && dz < targetZ {
			target, targetZ = ent, dz
		}
	}
	return threat, target
}
