package game

import (
	"testing"

	"meteor-dodge/internal/content"
)

// TestWorldHostsPool verifies the world backs a pool end to end
func TestWorldHostsPool(t *testing.T) {
	w := NewWorld(newFakeFX())
	bullets := newTestPool(w, "bullets", testBullet, 3)

	total, active := w.Count()
	if total != 3 || active != 0 {
		t.Errorf("Expected 3 idle entities after prewarm, got total=%d active=%d", total, active)
	}

	e, ok := bullets.AcquireDefault()
	if !ok {
		t.Fatal("AcquireDefault failed")
	}
	if _, ok := e.Body.(*Bullet); !ok {
		t.Errorf("Expected bullet body, got %T", e.Body)
	}
	if _, active = w.Count(); active != 1 {
		t.Errorf("Expected 1 active entity, got %d", active)
	}

	bullets.Release(e)
	if e.Active || !bullets.IsIdle(e) {
		t.Error("Released bullet should be inactive and idle")
	}
}

// TestWorldBodies verifies every kind gets its body and capabilities
func TestWorldBodies(t *testing.T) {
	w := NewWorld(newFakeFX())

	tests := []struct {
		tmpl       *Template
		updatable  bool
		collidable bool
	}{
		{testBullet, true, true},
		{testMeteor, true, true},
		{testExplosion, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl.Kind, func(t *testing.T) {
			e := w.Instantiate(tt.tmpl)
			if _, ok := e.Body.(Updatable); ok != tt.updatable {
				t.Errorf("Updatable = %v, want %v", ok, tt.updatable)
			}
			if _, ok := e.Body.(Collidable); ok != tt.collidable {
				t.Errorf("Collidable = %v, want %v", ok, tt.collidable)
			}
			if _, ok := e.Body.(Poolable); !ok {
				t.Error("Every body should be Poolable")
			}
		})
	}

	if w.Instantiate(nil) != nil {
		t.Error("Instantiate(nil) should return nil")
	}
}

// TestWorldDestroyUntracked verifies a foreign instance is destroyed by a
// pool without a default template
func TestWorldDestroyUntracked(t *testing.T) {
	w := NewWorld(newFakeFX())
	meteors := newTestPool(w, "meteors", nil, 0)

	stray := w.Instantiate(testMeteor)
	w.SetActive(stray, true)

	meteors.Release(stray)

	if !stray.Destroyed() {
		t.Error("Untracked release without default should destroy")
	}
	if total, _ := w.Count(); total != 0 {
		t.Errorf("Destroyed entity should leave the world, %d left", total)
	}
}

// TestNewTemplate verifies content specs convert with a default multiplier
func TestNewTemplate(t *testing.T) {
	tmpl := NewTemplate(content.TemplateSpec{Name: "m", Kind: content.KindMeteor, Radius: 1})
	if tmpl.SpeedMultiplier != 1 {
		t.Errorf("Expected default multiplier 1, got %f", tmpl.SpeedMultiplier)
	}
	if NewTemplate(content.TemplateSpec{Name: "m"}) == tmpl {
		t.Error("Templates must have distinct identity")
	}
}
