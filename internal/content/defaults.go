package content

import "meteor-dodge/internal/ship"

// Default returns the built-in content used when no file is configured.
func Default() *Content {
	base := Level{
		Duration:                30,
		MinX:                    -4,
		MaxX:                    4,
		MinY:                    -3,
		MaxY:                    3,
		BaseGravity:             0.5,
		GravityRange:            0.2,
		RequiredVerticalSpeed:   3,
		RequiredHorizontalSpeed: 5,
		SpawnInterval:           1.2,
		BaseMeteorSpeed:         8,
		MeteorSpeedFactor:       0.5,
		BackgroundColor:         "#000000",
	}

	l1 := base
	l1.Name = "Level 1"
	l1.Meteors = []string{"meteor_small", "meteor_medium"}

	l2 := base
	l2.Name = "Level 2"
	l2.Duration = 40
	l2.SpawnInterval = 0.9
	l2.BaseMeteorSpeed = 9
	l2.BaseGravity = 0.6
	l2.Meteors = []string{"meteor_small", "meteor_medium", "meteor_large"}
	l2.BackgroundColor = "#0b0b2e"

	l3 := base
	l3.Name = "Level 3"
	l3.Duration = 45
	l3.MinX, l3.MaxX = -5, 5
	l3.SpawnInterval = 0.7
	l3.BaseMeteorSpeed = 10
	l3.MeteorSpeedFactor = 0.8
	l3.GravityRange = 0.3
	l3.Meteors = []string{"meteor_small", "meteor_large"}
	l3.BackgroundColor = "#2e0b0b"

	return &Content{
		Templates: []TemplateSpec{
			{Name: "meteor_small", Kind: KindMeteor, Radius: 0.35, SpeedMultiplier: 1.3},
			{Name: "meteor_medium", Kind: KindMeteor, Radius: 0.55, SpeedMultiplier: 1.0},
			{Name: "meteor_large", Kind: KindMeteor, Radius: 0.9, SpeedMultiplier: 0.75},
			{Name: "bullet", Kind: KindBullet, Radius: 0.1},
			{Name: "explosion_small", Kind: KindExplosion, Radius: 0.5, Lifetime: 1},
			{Name: "explosion_big", Kind: KindExplosion, Radius: 1.2, Lifetime: 1},
		},
		Bullet:             "bullet",
		Explosion:          "explosion_small",
		PlayerHitExplosion: "explosion_big",
		Levels:             []Level{l1, l2, l3},
		Ships:              []ship.Definition{ship.DefaultDefinition()},
		DefaultShip:        ship.DefaultDefinition().ID,
	}
}
