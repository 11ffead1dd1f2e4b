package game

import (
	"log"

	"meteor-dodge/internal/content"
	"meteor-dodge/internal/pool"
)

// Template is a spawnable blueprint. Templates are compared by pointer, so
// two templates with the same name are still distinct pool keys.
type Template struct {
	Name            string
	Kind            string
	Radius          float64
	SpeedMultiplier float64
	Lifetime        float64
}

// NewTemplate builds a template from its content definition.
func NewTemplate(spec content.TemplateSpec) *Template {
	mult := spec.SpeedMultiplier
	if mult == 0 {
		mult = 1
	}
	return &Template{
		Name:            spec.Name,
		Kind:            spec.Kind,
		Radius:          spec.Radius,
		SpeedMultiplier: mult,
		Lifetime:        spec.Lifetime,
	}
}

// EntityPool is the pool type every gameplay pool uses.
type EntityPool = pool.Manager[*Template, *Entity]

// Capabilities an entity body may implement. The engine discovers them by
// type assertion instead of looking up components by name.
type (
	// Updatable bodies advance with simulation time.
	Updatable interface {
		Update(dt float64)
	}

	// Collidable bodies take part in overlap tests.
	Collidable interface {
		Bounds() Sphere
	}

	// Poolable bodies know how to give their entity back.
	Poolable interface {
		ReturnToPool()
	}

	// enabler is notified when the pool activates the entity.
	enabler interface {
		enable()
	}
)

// Entity is one instance living in the world. Body holds the kind specific
// behaviour (*Bullet, *Meteor or *Explosion).
type Entity struct {
	ID       uint64
	Template *Template
	Pos      Vec3
	Active   bool
	Body     any

	destroyed bool
}

// Destroyed reports whether the world has dropped the entity for good.
func (e *Entity) Destroyed() bool { return e.destroyed }

// effects is what entity bodies may do to the rest of the game. The engine
// implements it; calls happen inside the tick.
type effects interface {
	addScore(points int)
	playerHit()
	shakeCamera(duration, magnitude float64)
	after(delay float64, fn func())
	meteorSpeed() float64
}

// World owns every entity ever instantiated and implements the pool host
// contract for them.
type World struct {
	fx       effects
	nextID   uint64
	entities []*Entity // instantiation order
}

// NewWorld creates an empty world whose bodies report to fx.
func NewWorld(fx effects) *World {
	return &World{
		fx:       fx,
		entities: make([]*Entity, 0, 64),
	}
}

// Instantiate creates a new inactive entity with the body for tmpl's kind.
func (w *World) Instantiate(tmpl *Template) *Entity {
	if tmpl == nil {
		return nil
	}

	w.nextID++
	e := &Entity{ID: w.nextID, Template: tmpl}

	switch tmpl.Kind {
	case content.KindBullet:
		e.Body = newBullet(e, w.fx)
	case content.KindMeteor:
		e.Body = newMeteor(e, w.fx)
	case content.KindExplosion:
		e.Body = &Explosion{entity: e}
	default:
		log.Printf("⚠️ Template %q has unknown kind %q", tmpl.Name, tmpl.Kind)
	}

	w.entities = append(w.entities, e)
	return e
}

// SetActive toggles simulation participation.
func (w *World) SetActive(e *Entity, active bool) {
	wasActive := e.Active
	e.Active = active
	if active && !wasActive {
		if en, ok := e.Body.(enabler); ok {
			en.enable()
		}
	}
}

// Destroy removes e from the world.
func (w *World) Destroy(e *Entity) {
	e.Active = false
	e.destroyed = true
	for i, other := range w.entities {
		if other == e {
			w.entities = append(w.entities[:i], w.entities[i+1:]...)
			return
		}
	}
}

// Entities returns the live entity list. The slice is owned by the world.
func (w *World) Entities() []*Entity { return w.entities }

// Count returns total and active entity counts.
func (w *World) Count() (total, active int) {
	for _, e := range w.entities {
		if e.Active {
			active++
		}
	}
	return len(w.entities), active
}

// Explosion is a short lived visual. It has no behaviour beyond aging; the
// code that spawned it schedules its release.
type Explosion struct {
	entity *Entity
	pool   *EntityPool
	Age    float64
}

func (x *Explosion) enable() { x.Age = 0 }

// Update ages the explosion.
func (x *Explosion) Update(dt float64) { x.Age += dt }

// ReturnToPool gives the explosion back, or just hides it without a pool.
func (x *Explosion) ReturnToPool() {
	if x.pool != nil {
		x.pool.Release(x.entity)
		return
	}
	x.entity.Active = false
}

// spawnExplosion takes an explosion from p at pos and schedules its release
// after delay seconds. Reports whether one was spawned.
func spawnExplosion(p *EntityPool, fx effects, pos Vec3, delay float64) bool {
	if p == nil {
		return false
	}
	e, ok := p.AcquireDefault()
	if !ok {
		return false
	}
	e.Pos = pos
	if x, ok := e.Body.(*Explosion); ok {
		x.pool = p
		if e.Template.Lifetime > 0 {
			delay = e.Template.Lifetime
		}
	}
	fx.after(delay, func() {
		if e.Active {
			p.Release(e)
		}
	})
	return true
}
