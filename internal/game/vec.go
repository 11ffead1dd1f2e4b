package game

import "math"

// Vec3 is a position or direction in world units. +Z points away from the
// player, towards where meteors come from.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Back is the default travel direction of meteors.
var Back = Vec3{0, 0, -1}

func (v Vec3) Add(o Vec3) Vec3       { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3       { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3  { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) LenSq() float64        { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }
func (v Vec3) Len() float64          { return math.Sqrt(v.LenSq()) }
func (v Vec3) Dist(o Vec3) float64   { return v.Sub(o).Len() }
func (v Vec3) DistSq(o Vec3) float64 { return v.Sub(o).LenSq() }

// Normalized returns v scaled to unit length, or the zero vector.
func (v Vec3) Normalized() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Sphere is a collision volume.
type Sphere struct {
	Center Vec3
	Radius float64
}

// Overlaps reports whether two spheres intersect.
func (s Sphere) Overlaps(o Sphere) bool {
	r := s.Radius + o.Radius
	return s.Center.DistSq(o.Center) < r*r
}

// ContactPoint returns the point on the segment between the centers where
// the surfaces meet, weighted by radius.
func (s Sphere) ContactPoint(o Sphere) Vec3 {
	total := s.Radius + o.Radius
	if total == 0 {
		return s.Center
	}
	return s.Center.Add(o.Center.Sub(s.Center).Scale(s.Radius / total))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func lerp(a, b, t float64) float64 { return a + (b-a)*clamp01(t) }

// inverseLerp maps v from [a,b] to [0,1], clamped. A degenerate range maps
// to 0.
func inverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return clamp01((v - a) / (b - a))
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
