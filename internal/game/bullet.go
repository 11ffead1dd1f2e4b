package game

// Bullet tuning.
const (
	BulletSpeed     = 15.0 // units per second along +Z
	BulletMaxTravel = 20.0 // distance before the bullet returns itself
	BulletHitScore  = 10

	explosionDelay = 1.0 // seconds an explosion stays before release
)

// Bullet flies straight ahead until it travels MaxTravel or hits a meteor.
type Bullet struct {
	entity *Entity
	fx     effects

	pool       *EntityPool // where the bullet returns; nil only deactivates
	explosions *EntityPool // small explosion on meteor hit

	MoveSpeed float64
	MaxTravel float64
	start     Vec3
}

func newBullet(e *Entity, fx effects) *Bullet {
	return &Bullet{
		entity:    e,
		fx:        fx,
		MoveSpeed: BulletSpeed,
		MaxTravel: BulletMaxTravel,
	}
}

// SetPools wires the bullet to its own pool and the explosion pool.
func (b *Bullet) SetPools(bullets, explosions *EntityPool) {
	b.pool = bullets
	b.explosions = explosions
}

func (b *Bullet) enable() { b.start = b.entity.Pos }

// ResetStart records the current position as the travel origin.
func (b *Bullet) ResetStart() { b.start = b.entity.Pos }

// Update moves the bullet and returns it once it has gone far enough.
func (b *Bullet) Update(dt float64) {
	b.entity.Pos.Z += b.MoveSpeed * dt
	if b.entity.Pos.Dist(b.start) >= b.MaxTravel {
		b.ReturnToPool()
	}
}

// Bounds is the bullet's collision sphere.
func (b *Bullet) Bounds() Sphere {
	return Sphere{Center: b.entity.Pos, Radius: b.entity.Template.Radius}
}

// HitMeteor scores, spawns a small explosion and returns both bodies.
func (b *Bullet) HitMeteor(m *Meteor) {
	b.fx.addScore(BulletHitScore)
	spawnExplosion(b.explosions, b.fx, b.entity.Pos, explosionDelay)
	b.fx.shakeCamera(0.1, 0.08)

	m.ReturnToPool()
	b.ReturnToPool()
}

// ReturnToPool releases the bullet, or just deactivates it without a pool.
func (b *Bullet) ReturnToPool() {
	if b.pool != nil {
		b.pool.Release(b.entity)
		return
	}
	b.entity.Active = false
}
