package game

// DefaultDestroyDistance is how far a meteor travels from its spawn point
// before it returns itself.
const DefaultDestroyDistance = 25.0

// Meteor drifts towards the player at the shared meteor speed scaled by its
// template multiplier.
type Meteor struct {
	entity *Entity
	fx     effects

	pool          *EntityPool
	hitExplosions *EntityPool

	SpeedMultiplier float64
	spawn           Vec3
	dir             Vec3
	destroyDistSq   float64
}

func newMeteor(e *Entity, fx effects) *Meteor {
	m := &Meteor{
		entity:          e,
		fx:              fx,
		SpeedMultiplier: e.Template.SpeedMultiplier,
		dir:             Back,
	}
	m.SetDestroyDistance(DefaultDestroyDistance)
	return m
}

// SetPools wires the meteor to its pool and the explosion pool used on hits.
func (m *Meteor) SetPools(meteors, hitExplosions *EntityPool) {
	m.pool = meteors
	m.hitExplosions = hitExplosions
}

// SetSpawnPosition records the origin used for the travel limit.
func (m *Meteor) SetSpawnPosition(p Vec3) { m.spawn = p }

// SetDirection normalizes dir; near zero vectors fall back to Back.
func (m *Meteor) SetDirection(dir Vec3) {
	if dir.LenSq() > 0.0001 {
		m.dir = dir.Normalized()
		return
	}
	m.dir = Back
}

// Direction returns the unit travel direction.
func (m *Meteor) Direction() Vec3 { return m.dir }

// SetDestroyDistance changes the travel limit.
func (m *Meteor) SetDestroyDistance(d float64) { m.destroyDistSq = d * d }

// Update moves the meteor and returns it past the travel limit.
func (m *Meteor) Update(dt float64) {
	speed := m.fx.meteorSpeed() * m.SpeedMultiplier
	m.entity.Pos = m.entity.Pos.Add(m.dir.Scale(speed * dt))

	if m.entity.Pos.DistSq(m.spawn) >= m.destroyDistSq {
		m.ReturnToPool()
	}
}

// Bounds is the meteor's collision sphere.
func (m *Meteor) Bounds() Sphere {
	return Sphere{Center: m.entity.Pos, Radius: m.entity.Template.Radius}
}

// Collide handles contact with the player or another meteor at contact.
func (m *Meteor) Collide(contact Vec3, hitPlayer bool) {
	if spawnExplosion(m.hitExplosions, m.fx, contact, explosionDelay) {
		m.fx.shakeCamera(0.25, 0.25)
	}
	if hitPlayer {
		m.fx.playerHit()
	}
	m.ReturnToPool()
}

// ReturnToPool releases the meteor, or just deactivates it without a pool.
func (m *Meteor) ReturnToPool() {
	if m.pool != nil {
		m.pool.Release(m.entity)
		return
	}
	m.entity.Active = false
}
