package game

import "math/rand"

// CameraShake jitters the view offset for a short time. A new shake
// replaces whatever is running.
type CameraShake struct {
	OffsetX float64
	OffsetY float64

	duration  float64
	magnitude float64
	elapsed   float64
	active    bool

	rng *rand.Rand
}

// NewCameraShake creates an idle shake drawing offsets from rng.
func NewCameraShake(rng *rand.Rand) *CameraShake {
	return &CameraShake{rng: rng}
}

// Shake starts a shake of duration seconds with offsets up to magnitude.
func (s *CameraShake) Shake(duration, magnitude float64) {
	s.duration = duration
	s.magnitude = magnitude
	s.elapsed = 0
	s.active = true
}

// Update moves the offset while the shake lasts, then snaps back to zero.
func (s *CameraShake) Update(dt float64) {
	if !s.active {
		return
	}
	if s.elapsed < s.duration {
		s.OffsetX = (s.rng.Float64()*2 - 1) * s.magnitude
		s.OffsetY = (s.rng.Float64()*2 - 1) * s.magnitude
		s.elapsed += dt
		return
	}
	s.Reset()
}

// Reset stops the shake.
func (s *CameraShake) Reset() {
	s.OffsetX, s.OffsetY = 0, 0
	s.elapsed = 0
	s.duration = 0
	s.magnitude = 0
	s.active = false
}

// Active reports whether a shake is running.
func (s *CameraShake) Active() bool { return s.active }

// Magnitude returns the running shake's magnitude.
func (s *CameraShake) Magnitude() float64 { return s.magnitude }
