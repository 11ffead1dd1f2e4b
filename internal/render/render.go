// Package render draws a game snapshot into a still frame. The server uses
// it for the debug frame endpoint; it never touches live game state.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"math"
	"os"
	"sort"

	"meteor-dodge/internal/content"
	"meteor-dodge/internal/game"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Config holds frame settings
type Config struct {
	Width         int
	Height        int
	PixelsPerUnit float64 // world units to pixels at depth zero
	FontPath      string  // optional TTF/OTF for the HUD; empty uses a bitmap face
	FontSize      float64
}

// DefaultConfig returns a small frame suited to polling
func DefaultConfig() Config {
	return Config{
		Width:         640,
		Height:        360,
		PixelsPerUnit: 40,
		FontSize:      16,
	}
}

// Renderer rasterizes snapshots. Safe for concurrent use: every frame gets
// its own context.
type Renderer struct {
	cfg  Config
	face font.Face
}

// New creates a renderer. A font that fails to load falls back to the
// built-in bitmap face.
func New(cfg Config) *Renderer {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.PixelsPerUnit <= 0 {
		cfg.PixelsPerUnit = def.PixelsPerUnit
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = def.FontSize
	}

	r := &Renderer{cfg: cfg, face: basicfont.Face7x13}
	if cfg.FontPath != "" {
		face, err := loadFace(cfg.FontPath, cfg.FontSize)
		if err != nil {
			log.Printf("⚠️ HUD font %s unavailable, using bitmap font: %v", cfg.FontPath, err)
		} else {
			r.face = face
		}
	}
	return r
}

func loadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Size returns the frame dimensions
func (r *Renderer) Size() (int, int) { return r.cfg.Width, r.cfg.Height }

// Draw renders snap and returns the frame
func (r *Renderer) Draw(snap *game.GameSnapshot) image.Image {
	return r.draw(snap).Image()
}

// EncodePNG renders snap and writes it as PNG
func (r *Renderer) EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	return r.draw(snap).EncodePNG(w)
}

func (r *Renderer) draw(snap *game.GameSnapshot) *gg.Context {
	dc := gg.NewContext(r.cfg.Width, r.cfg.Height)
	dc.SetFontFace(r.face)

	r.drawBackground(dc, snap.Area.BackgroundColor)

	// World layers move with the camera shake, the HUD does not
	dc.Push()
	dc.Translate(snap.Shake.OffsetX*r.cfg.PixelsPerUnit, -snap.Shake.OffsetY*r.cfg.PixelsPerUnit)
	r.drawArea(dc, snap.Area)
	r.drawEntities(dc, snap.Entities)
	r.drawPlayer(dc, snap.Player)
	dc.Pop()

	r.drawHUD(dc, snap)
	return dc
}

// project maps a world point to screen space with a simple depth falloff.
// Returns the screen position and the scale at that depth.
func (r *Renderer) project(x, y, z float64) (float64, float64, float64) {
	depth := math.Max(z, -0.9)
	scale := r.cfg.PixelsPerUnit / (1 + depth*0.08)
	cx := float64(r.cfg.Width) / 2
	cy := float64(r.cfg.Height) / 2
	return cx + x*scale, cy - y*scale, scale
}

func (r *Renderer) drawBackground(dc *gg.Context, hex string) {
	dc.SetColor(parseHexColor(hex, color.RGBA{5, 5, 16, 255}))
	dc.DrawRectangle(0, 0, float64(r.cfg.Width), float64(r.cfg.Height))
	dc.Fill()

	// Deterministic starfield
	for i := 0; i < 40; i++ {
		x := float64((i*67 + i*i*3) % r.cfg.Width)
		y := float64((i*47 + i*i*2) % r.cfg.Height)
		size := 1.0
		if i%3 == 0 {
			size = 1.5
		}
		dc.SetColor(color.NRGBA{200, 200, 230, 120})
		dc.DrawCircle(x, y, size)
		dc.Fill()
	}
}

func (r *Renderer) drawArea(dc *gg.Context, a game.AreaSnapshot) {
	x0, y0, _ := r.project(a.MinX, a.MaxY, 0)
	x1, y1, _ := r.project(a.MaxX, a.MinY, 0)

	dc.SetColor(color.NRGBA{90, 110, 160, 120})
	dc.SetLineWidth(1)
	dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
	dc.Stroke()
}

func (r *Renderer) drawEntities(dc *gg.Context, entities []game.EntitySnapshot) {
	// Painter's order: far first
	ordered := make([]game.EntitySnapshot, len(entities))
	copy(ordered, entities)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Z > ordered[j].Z })

	for _, e := range ordered {
		x, y, scale := r.project(e.X, e.Y, e.Z)
		radius := math.Max(e.Radius*scale, 1)

		switch e.Kind {
		case content.KindMeteor:
			dc.SetColor(color.RGBA{140, 100, 70, 255})
			dc.DrawCircle(x, y, radius)
			dc.Fill()
			dc.SetColor(color.RGBA{90, 60, 40, 255})
			dc.SetLineWidth(1.5)
			dc.DrawCircle(x, y, radius)
			dc.Stroke()
		case content.KindBullet:
			dc.SetColor(color.RGBA{255, 240, 120, 255})
			dc.DrawCircle(x, y, math.Max(radius, 2))
			dc.Fill()
		case content.KindExplosion:
			// Grow and fade over the first second
			t := math.Min(e.Age, 1)
			alpha := uint8(220 * (1 - t))
			dc.SetColor(color.NRGBA{255, 140, 40, alpha})
			dc.DrawCircle(x, y, radius*(0.5+t))
			dc.Fill()
		}
	}
}

func (r *Renderer) drawPlayer(dc *gg.Context, p game.PlayerSnapshot) {
	x, y, scale := r.project(p.X, p.Y, p.Z)
	size := game.PlayerRadius * scale

	dc.SetColor(color.RGBA{90, 200, 255, 255})
	dc.MoveTo(x, y-size)
	dc.LineTo(x+size, y+size*0.7)
	dc.LineTo(x-size, y+size*0.7)
	dc.ClosePath()
	dc.Fill()
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.GameSnapshot) {
	s := snap.Session
	w := float64(r.cfg.Width)
	h := float64(r.cfg.Height)

	dc.SetColor(color.White)
	dc.DrawString(fmt.Sprintf("SCORE %d", s.Score), 10, 20)
	dc.DrawString(fmt.Sprintf("LIVES %d", s.Lives), 10, 38)
	dc.DrawString(fmt.Sprintf("AMMO %d/%d", snap.Player.Ammo, snap.Player.MaxAmmo), 10, 56)
	dc.DrawStringAnchored(s.LevelName, w-10, 20, 1, 0)

	// Level progress
	barW := w * 0.4
	barX := (w - barW) / 2
	dc.SetColor(color.NRGBA{255, 255, 255, 60})
	dc.DrawRectangle(barX, 10, barW, 6)
	dc.Fill()
	dc.SetColor(color.RGBA{120, 220, 120, 255})
	dc.DrawRectangle(barX, 10, barW*s.Progress, 6)
	dc.Fill()

	if s.WarningMessage != "" {
		dc.SetColor(color.NRGBA{255, 60, 60, uint8(80 + 175*s.WarningIntensity)})
		dc.DrawStringAnchored(s.WarningMessage, w/2, h-30, 0.5, 0.5)
	}

	if banner := stateBanner(s); banner != "" {
		dc.SetColor(color.NRGBA{0, 0, 0, 140})
		dc.DrawRectangle(0, h/2-20, w, 40)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawStringAnchored(banner, w/2, h/2, 0.5, 0.5)
	}
}

func stateBanner(s game.SessionSnapshot) string {
	switch {
	case s.State == game.StateWelcome.String():
		return "METEOR DODGE - PRESS PLAY"
	case s.State == game.StatePaused.String():
		return "PAUSED"
	case s.State == game.StateGameOver.String():
		return fmt.Sprintf("GAME OVER - SCORE %d", s.Score)
	case s.LevelPassed:
		return "LEVEL PASSED"
	}
	return ""
}

// parseHexColor parses #rrggbb, returning fallback on anything else
func parseHexColor(hex string, fallback color.RGBA) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return fallback
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return fallback
	}
	return color.RGBA{r, g, b, 255}
}
