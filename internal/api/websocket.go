package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"meteor-dodge/internal/game"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	wsWriteWait      = 2 * time.Second
	wsMaxMessageSize = 512
)

// Events pushed to clients
const (
	EventGameState = "game:state"
	EventPoolStats = "pool:stats"
)

// wsClient tracks a WebSocket connection with its source IP.
// Viewers without control rights only receive pushes.
type wsClient struct {
	conn    *websocket.Conn
	ip      string
	control bool
}

// wsMessage is the envelope of every server push
type wsMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// wsCommand is a client request. Type is "input" or "fire".
type wsCommand struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Active *bool   `json:"active,omitempty"`
}

// WebSocketHub manages all WebSocket connections with DoS protection
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	stopChan   chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	engine     EngineInterface
	origins    *OriginChecker
	adminToken string
	upgrader   websocket.Upgrader

	// Connection limiting per IP
	slots *SlotLimiter
}

// NewWebSocketHub creates a new hub with connection limiting. engine may
// be nil, in which case client commands are ignored. With a non-empty
// adminToken only connections presenting it may send commands.
func NewWebSocketHub(engine EngineInterface, origins *OriginChecker, adminToken string) *WebSocketHub {
	if origins == nil {
		origins = NewOriginChecker(nil)
	}
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		stopChan:   make(chan struct{}),
		engine:     engine,
		origins:    origins,
		adminToken: adminToken,
		slots:      NewSlotLimiter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if h.origins.Allowed(origin) {
		return true
	}

	log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
	RecordConnectionRejected("origin")
	return false
}

// Run starts the hub. Returns after Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stopChan:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			if h.remove(conn) {
				count := h.ClientCount()
				log.Printf("📱 Client disconnected (%d remaining)", count)
				UpdateWSConnections(count)
			}

		case message := <-h.broadcast:
			h.send(message)
			IncrementWSMessages()
		}
	}
}

// send writes message to every client, dropping the ones that fail
func (h *WebSocketHub) send(message []byte) {
	var failed []*websocket.Conn

	h.mu.RLock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range failed {
		h.remove(conn)
	}
	if len(failed) > 0 {
		UpdateWSConnections(h.ClientCount())
	}
}

// remove drops a client and frees its IP slot. Reports whether it was known.
func (h *WebSocketHub) remove(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[conn]
	if !ok {
		return false
	}
	h.slots.Release(client.ip)
	delete(h.clients, conn)
	conn.Close()
	return true
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, client := range h.clients {
		h.slots.Release(client.ip)
		conn.Close()
		delete(h.clients, conn)
	}
	UpdateWSConnections(0)
}

// Stop shuts the hub down and closes every connection
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(wsMessage{Event: event, Data: data})
	if err != nil {
		log.Printf("⚠️ WebSocket encode %s failed: %v", event, err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes snapshots every interval and refreshes the
// pool gauges. Stops with the hub.
func (h *WebSocketHub) StartBroadcastLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
			}

			if h.engine == nil {
				continue
			}

			// Gauges are useful with or without viewers
			pools := h.engine.PoolStats()
			UpdatePoolGauges(pools)
			UpdateEventLogStats(h.engine.EventLogStats())

			if h.ClientCount() == 0 {
				continue
			}
			h.Broadcast(EventGameState, h.engine.Snapshot())
			h.Broadcast(EventPoolStats, pools)
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.slots.Take(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.slots.Release(ip) // Release the slot we reserved
		return
	}
	conn.SetReadLimit(wsMaxMessageSize)

	client := &wsClient{conn: conn, ip: ip, control: h.canControl(r)}
	select {
	case h.register <- client:
	case <-h.stopChan:
		h.slots.Release(ip)
		conn.Close()
		return
	}

	go h.readLoop(client)
}

// canControl reports whether the handshake carries the admin token, as a
// header or the token query parameter
func (h *WebSocketHub) canControl(r *http.Request) bool {
	if h.adminToken == "" {
		return true
	}
	token := requestToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return tokenEqual(token, h.adminToken)
}

// readLoop applies client commands until the connection drops
func (h *WebSocketHub) readLoop(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client.conn:
		case <-h.stopChan:
		}
	}()

	warned := false
	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Printf("📨 Ignoring malformed WebSocket message from %s", client.ip)
			continue
		}

		if !client.control {
			RecordConnectionRejected("auth")
			if !warned {
				log.Printf("🔒 Ignoring commands from read-only viewer %s", client.ip)
				warned = true
			}
			continue
		}
		h.apply(cmd)
	}
}

func (h *WebSocketHub) apply(cmd wsCommand) {
	if h.engine == nil {
		return
	}

	switch cmd.Type {
	case "input":
		active := true
		if cmd.Active != nil {
			active = *cmd.Active
		}
		h.engine.SetInput(game.Input{X: cmd.X, Y: cmd.Y, Active: active})
	case "fire":
		// Out-of-run fire is not an error worth reporting over the socket
		h.engine.Fire()
	}
}
