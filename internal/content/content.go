// Package content loads the data-driven parts of the game: levels, entity
// templates and ship definitions.
package content

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"meteor-dodge/internal/ship"
)

// Template kinds.
const (
	KindMeteor    = "meteor"
	KindBullet    = "bullet"
	KindExplosion = "explosion"
)

var ErrNoLevels = errors.New("content has no levels")

// TemplateSpec describes a spawnable blueprint.
type TemplateSpec struct {
	Name            string  `yaml:"name" json:"name"`
	Kind            string  `yaml:"kind" json:"kind"`
	Radius          float64 `yaml:"radius" json:"radius"`
	SpeedMultiplier float64 `yaml:"speedMultiplier" json:"speedMultiplier"` // meteors
	Lifetime        float64 `yaml:"lifetime" json:"lifetime"`               // explosions, seconds
}

// Level is one stage of the run.
type Level struct {
	Name     string  `yaml:"name" json:"name"`
	Duration float64 `yaml:"duration" json:"duration"` // seconds at time scale 1

	MinX float64 `yaml:"minX" json:"minX"`
	MaxX float64 `yaml:"maxX" json:"maxX"`
	MinY float64 `yaml:"minY" json:"minY"`
	MaxY float64 `yaml:"maxY" json:"maxY"`

	BaseGravity  float64 `yaml:"baseGravity" json:"baseGravity"`
	GravityRange float64 `yaml:"gravityRange" json:"gravityRange"`

	RequiredVerticalSpeed   float64 `yaml:"requiredVerticalSpeed" json:"requiredVerticalSpeed"`
	RequiredHorizontalSpeed float64 `yaml:"requiredHorizontalSpeed" json:"requiredHorizontalSpeed"`

	SpawnInterval     float64  `yaml:"spawnInterval" json:"spawnInterval"`
	BaseMeteorSpeed   float64  `yaml:"baseMeteorSpeed" json:"baseMeteorSpeed"`
	MeteorSpeedFactor float64  `yaml:"meteorSpeedFactor" json:"meteorSpeedFactor"`
	Meteors           []string `yaml:"meteors" json:"meteors"`

	BackgroundColor string `yaml:"backgroundColor" json:"backgroundColor"`
}

// Content is the whole data file.
type Content struct {
	Templates          []TemplateSpec    `yaml:"templates"`
	Bullet             string            `yaml:"bullet"`
	Explosion          string            `yaml:"explosion"`
	PlayerHitExplosion string            `yaml:"playerHitExplosion"`
	Levels             []Level           `yaml:"levels"`
	Ships              []ship.Definition `yaml:"ships"`
	DefaultShip        string            `yaml:"defaultShip"`
}

// Template returns the spec with the given name.
func (c *Content) Template(name string) (TemplateSpec, bool) {
	for _, t := range c.Templates {
		if t.Name == name {
			return t, true
		}
	}
	return TemplateSpec{}, false
}

// Load reads and validates a YAML content file. An empty path returns the
// built-in content.
func Load(path string) (*Content, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML content.
func Parse(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks cross references and level geometry.
func (c *Content) Validate() error {
	if len(c.Levels) == 0 {
		return ErrNoLevels
	}

	kinds := make(map[string]string, len(c.Templates))
	for _, t := range c.Templates {
		if t.Name == "" {
			return errors.New("template without name")
		}
		if _, dup := kinds[t.Name]; dup {
			return fmt.Errorf("duplicate template %q", t.Name)
		}
		switch t.Kind {
		case KindMeteor, KindBullet, KindExplosion:
		default:
			return fmt.Errorf("template %q: unknown kind %q", t.Name, t.Kind)
		}
		kinds[t.Name] = t.Kind
	}

	wantKind := func(field, name, kind string) error {
		if name == "" {
			return nil
		}
		if k, ok := kinds[name]; !ok || k != kind {
			return fmt.Errorf("%s: %q is not a %s template", field, name, kind)
		}
		return nil
	}
	if err := wantKind("bullet", c.Bullet, KindBullet); err != nil {
		return err
	}
	if err := wantKind("explosion", c.Explosion, KindExplosion); err != nil {
		return err
	}
	if err := wantKind("playerHitExplosion", c.PlayerHitExplosion, KindExplosion); err != nil {
		return err
	}

	for i, l := range c.Levels {
		if l.MinX >= l.MaxX || l.MinY >= l.MaxY {
			return fmt.Errorf("level %d (%s): empty playable area", i, l.Name)
		}
		if l.Duration <= 0 {
			return fmt.Errorf("level %d (%s): duration must be positive", i, l.Name)
		}
		if l.SpawnInterval <= 0 {
			return fmt.Errorf("level %d (%s): spawn interval must be positive", i, l.Name)
		}
		for _, m := range l.Meteors {
			if err := wantKind(fmt.Sprintf("level %d", i), m, KindMeteor); err != nil {
				return err
			}
		}
	}

	return nil
}
