package api

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"meteor-dodge/internal/game"
	"meteor-dodge/internal/ship"

	"github.com/goccy/go-json"
)

// maxBodyBytes caps control request bodies
const maxBodyBytes = 4 << 10

// Handler methods for routerHandlers

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, map[string]interface{}{
		"tick":           h.engine.TickCount(),
		"state":          snap.Session.State,
		"activeEntities": snap.ActiveEntities,
		"totalEntities":  snap.TotalEntities,
		"pools":          h.engine.PoolStats(),
		"eventLog":       h.engine.EventLogStats(),
		"grid":           h.engine.GridStats(),
		"rateLimit":      h.rateLimiter.Stats(),
	})
}

func (h *routerHandlers) handleGetPools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.PoolStats())
}

func (h *routerHandlers) handleGetLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Levels())
}

func (h *routerHandlers) handleGetShip(w http.ResponseWriter, r *http.Request) {
	def, state, stats := h.engine.ShipInfo()
	writeJSON(w, map[string]interface{}{
		"ship":     def,
		"upgrades": state,
		"stats":    stats,
	})
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Frame rendering disabled", http.StatusNotFound)
		return
	}

	// Render into a buffer so an encode failure can still become a 500
	start := time.Now()
	var buf bytes.Buffer
	if err := h.renderer.EncodePNG(&buf, h.engine.Snapshot()); err != nil {
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handlePlay(w http.ResponseWriter, r *http.Request) {
	h.engine.Play()
	writeJSON(w, map[string]bool{"ok": true})
}

func (h *routerHandlers) handlePause(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Pause() {
		writeError(w, "Nothing to pause", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (h *routerHandlers) handleResume(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Resume() {
		writeError(w, "Game is not paused", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (h *routerHandlers) handleNextLevel(w http.ResponseWriter, r *http.Request) {
	if !h.engine.NextLevel() {
		writeError(w, "Level not passed yet", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (h *routerHandlers) handleMenu(w http.ResponseWriter, r *http.Request) {
	h.engine.BackToMenu()
	writeJSON(w, map[string]bool{"ok": true})
}

func (h *routerHandlers) handlePlayerInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Active *bool   `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	// A sample with no explicit flag means the stick is held
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	in := game.Input{X: req.X, Y: req.Y, Active: active}
	h.engine.SetInput(in)
	writeJSON(w, in)
}

func (h *routerHandlers) handlePlayerFire(w http.ResponseWriter, r *http.Request) {
	fired, err := h.engine.Fire()
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, map[string]bool{"fired": fired})
}

func (h *routerHandlers) handleShipUpgrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stat string `json:"stat"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	stats, err := h.engine.Upgrade(req.Stat)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleSpawnMeteor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template  string    `json:"template"`
		Position  game.Vec3 `json:"position"`
		Direction game.Vec3 `json:"direction"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ent, err := h.engine.Spawn(req.Template, req.Position, req.Direction)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": ent.ID, "template": req.Template})
}

// statusFor maps engine and ship errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ship.ErrUnknownStat), errors.Is(err, game.ErrUnknownTemplate):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotPlaying), errors.Is(err, game.ErrUpgradeInGame), errors.Is(err, ship.ErrMaxLevel):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// decodeBody parses a JSON body, writing a 400 on failure
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
