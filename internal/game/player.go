package game

import (
	"math"

	"meteor-dodge/internal/content"
	"meteor-dodge/internal/ship"
)

// Player tuning.
const (
	JoystickDeadZone       = 0.1
	BoundaryWarnDistance   = 1.5
	boundaryEpsilon        = 0.001
	boundaryIntensityDelta = 0.01

	PlayerRadius = 0.5

	// Level timer speed at the bottom and the top of the area.
	timeScaleLow  = 1.5
	timeScaleHigh = 0.5

	MessagePullUp  = "PULL UP!"
	MessageTooHigh = "TOO HIGH!"
)

// Input is a joystick sample in [-1,1] on both axes.
type Input struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Active bool    `json:"active"`
}

// Player is the ship controller: gravity, joystick movement, boundary
// checks and firing.
type Player struct {
	Pos        Vec3
	FireOffset Vec3

	HorizontalSpeed float64
	VerticalSpeed   float64
	MaxAmmo         int
	Ammo            int

	DeadZone        float64
	WarningDistance float64

	bullets    *EntityPool
	explosions *EntityPool
	session    *Session

	level                  *content.Level
	minX, maxX, minY, maxY float64
	lastIntensity          float64
	lastMessage            string

	input       Input
	meteorSpeed float64
}

// NewPlayer creates a player reporting to session. Without level data the
// player does not move.
func NewPlayer(session *Session) *Player {
	p := &Player{
		FireOffset:      Vec3{Z: 0.6},
		HorizontalSpeed: 5,
		VerticalSpeed:   3,
		MaxAmmo:         20,
		DeadZone:        JoystickDeadZone,
		WarningDistance: BoundaryWarnDistance,
		session:         session,
		lastIntensity:   -1,
		meteorSpeed:     8,
	}
	p.Ammo = p.MaxAmmo
	return p
}

// SetPools wires the bullet pool and the pool for bullet hit explosions.
func (p *Player) SetPools(bullets, explosions *EntityPool) {
	p.bullets = bullets
	p.explosions = explosions
}

// ApplyShipStats takes speeds and ammo capacity from the ship and refills.
func (p *Player) ApplyShipStats(s ship.Stats) {
	p.HorizontalSpeed = s.HorizontalSpeed
	p.VerticalSpeed = s.VerticalSpeed
	p.MaxAmmo = s.MaxAmmo
	p.Ammo = p.MaxAmmo
}

// ApplyLevelData sets the movement area. Speeds are raised to the level's
// required minimums, never lowered.
func (p *Player) ApplyLevelData(level content.Level) {
	p.level = &level
	p.minX, p.maxX = level.MinX, level.MaxX
	p.minY, p.maxY = level.MinY, level.MaxY

	p.lastIntensity = -1
	p.lastMessage = ""

	p.HorizontalSpeed = math.Max(p.HorizontalSpeed, level.RequiredHorizontalSpeed)
	p.VerticalSpeed = math.Max(p.VerticalSpeed, level.RequiredVerticalSpeed)
}

// Respawn puts the ship at pos and clears the joystick.
func (p *Player) Respawn(pos Vec3) {
	p.Pos = pos
	p.input = Input{}
}

// SetInput stores the latest joystick sample.
func (p *Player) SetInput(in Input) {
	in.X = clamp(in.X, -1, 1)
	in.Y = clamp(in.Y, -1, 1)
	p.input = in
}

// Input returns the current joystick sample.
func (p *Player) Input() Input { return p.input }

// Update applies gravity, joystick input and boundary rules for dt seconds.
func (p *Player) Update(dt float64) {
	if p.level == nil {
		return
	}
	lvl := p.level
	pos := p.Pos

	t := inverseLerp(lvl.MinY, lvl.MaxY, pos.Y)

	gravity := lvl.BaseGravity - (t-0.5)*2*lvl.GravityRange
	if gravity < 0 {
		gravity = 0
	}
	pos.Y -= gravity * dt

	if p.input.Active {
		in := p.input
		if math.Hypot(in.X, in.Y) < p.DeadZone {
			in.X, in.Y = 0, 0
		}
		pos.X += in.X * p.HorizontalSpeed * dt
		pos.Y += in.Y * p.VerticalSpeed * dt
	}

	pos.X = clamp(pos.X, p.minX, p.maxX)
	pos.Y = clamp(pos.Y, p.minY, p.maxY)
	p.Pos = pos

	if p.session != nil {
		if pos.Y <= p.minY+boundaryEpsilon || pos.Y >= p.maxY-boundaryEpsilon {
			p.session.ForceGameOver()
			return
		}
		p.updateBoundaryWarning(pos.Y)
	}

	p.meteorSpeed = lvl.BaseMeteorSpeed * (1 + (1-t)*lvl.MeteorSpeedFactor)

	if p.session != nil {
		scale := lerp(timeScaleLow, timeScaleHigh, t)
		p.session.SetLevelTimeScale(math.Round(scale*10) / 10)
	}
}

// updateBoundaryWarning pushes intensity and direction to the session, but
// only when they changed noticeably.
func (p *Player) updateBoundaryWarning(y float64) {
	distMin := math.Abs(y - p.minY)
	distMax := math.Abs(p.maxY - y)
	edge := math.Min(distMin, distMax)

	intensity := 0.0
	if p.WarningDistance > 0 && edge < p.WarningDistance {
		intensity = 1 - edge/p.WarningDistance
	}

	msg := MessageTooHigh
	if distMin < distMax {
		msg = MessagePullUp
	}
	if intensity <= 0 {
		msg = ""
	}

	if math.Abs(intensity-p.lastIntensity) > boundaryIntensityDelta {
		p.session.SetBoundaryWarning(intensity)
		p.lastIntensity = intensity
	}
	if msg != p.lastMessage {
		p.session.SetBoundaryDirection(msg)
		p.lastMessage = msg
	}
}

// MeteorSpeed is the shared meteor speed derived from the ship's height.
func (p *Player) MeteorSpeed() float64 { return p.meteorSpeed }

// Fire spawns a bullet at the fire point. Needs ammo and a bullet pool.
func (p *Player) Fire() (*Entity, bool) {
	if p.Ammo <= 0 || p.bullets == nil {
		return nil, false
	}

	e, ok := p.bullets.AcquireDefault()
	if !ok {
		return nil, false
	}
	e.Pos = p.Pos.Add(p.FireOffset)
	if b, ok := e.Body.(*Bullet); ok {
		b.SetPools(p.bullets, p.explosions)
		b.ResetStart()
	}

	p.Ammo--
	return e, true
}

// Bounds is the ship's collision sphere.
func (p *Player) Bounds() Sphere {
	return Sphere{Center: p.Pos, Radius: PlayerRadius}
}
