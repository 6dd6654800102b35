package overlay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections of overlay viewers and
// tracks whether any of them is currently visible.
type ConnectionManager struct {
	connections map[*Connection]struct{}
	latest      []byte
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	visMu        sync.Mutex
	visible      bool
	onVisibility func(visible bool)
	visQueue     []bool
	visDraining  bool
}

// Connection represents a WebSocket connection to an overlay viewer
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	hidden      bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  32,
		CheckOrigin: func(r *http.Request) bool {
			// broadcast software loads the overlay from arbitrary local origins
			return true
		},
	}
}

// clientMessage is what viewers send upstream
type clientMessage struct {
	Type   string `json:"type"`
	Hidden bool   `json:"hidden"`
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		visible: true,
	}
}

// OnVisibilityChange registers fn to be called when the viewers as a whole
// go from visible to hidden or back. Viewers are hidden only when at least one
// is connected and every connected viewer reported itself hidden.
func (cm *ConnectionManager) OnVisibilityChange(fn func(visible bool)) {
	cm.visMu.Lock()
	defer cm.visMu.Unlock()
	cm.onVisibility = fn
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	bufSize := cm.config.SendBufferSize
	if bufSize <= 0 {
		bufSize = 1
	}
	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, bufSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)
	cm.updateVisibility()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("overlay viewer connected")
	return nil
}

// registerConnection adds a connection and queues the latest state for it
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = struct{}{}
	if cm.latest != nil {
		conn.Send <- cm.latest
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	if exists {
		delete(cm.connections, conn)
		close(conn.Send)
	}
	cm.mu.Unlock()

	if exists {
		log.Info().Str("connection_id", conn.ID).Msg("overlay viewer disconnected")
		cm.updateVisibility()
	}
}

func (cm *ConnectionManager) setHidden(conn *Connection, hidden bool) {
	cm.mu.Lock()
	if _, ok := cm.connections[conn]; !ok || conn.hidden == hidden {
		cm.mu.Unlock()
		return
	}
	conn.hidden = hidden
	cm.mu.Unlock()

	log.Debug().Str("connection_id", conn.ID).Bool("hidden", hidden).Msg("viewer visibility changed")
	cm.updateVisibility()
}

// updateVisibility recomputes the aggregate and queues transitions for the
// callback. The callback runs outside visMu on a single drain goroutine, so it
// sees transitions in order and a slow callback never blocks connects or
// disconnects.
func (cm *ConnectionManager) updateVisibility() {
	cm.visMu.Lock()
	defer cm.visMu.Unlock()

	cm.mu.RLock()
	visible := len(cm.connections) == 0
	for conn := range cm.connections {
		if !conn.hidden {
			visible = true
			break
		}
	}
	cm.mu.RUnlock()

	if visible == cm.visible {
		return
	}
	cm.visible = visible
	if cm.onVisibility == nil {
		return
	}
	cm.visQueue = append(cm.visQueue, visible)
	if !cm.visDraining {
		cm.visDraining = true
		go cm.drainVisibility()
	}
}

func (cm *ConnectionManager) drainVisibility() {
	for {
		cm.visMu.Lock()
		if len(cm.visQueue) == 0 {
			cm.visDraining = false
			cm.visMu.Unlock()
			return
		}
		visible := cm.visQueue[0]
		cm.visQueue = cm.visQueue[1:]
		fn := cm.onVisibility
		cm.visMu.Unlock()

		fn(visible)
	}
}

// Broadcast sends data to every viewer and keeps it for viewers that connect later
func (cm *ConnectionManager) Broadcast(data []byte) {
	var slow []*Connection

	cm.mu.Lock()
	cm.latest = data
	for conn := range cm.connections {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	total := len(cm.connections)
	cm.mu.Unlock()

	for _, conn := range slow {
		log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().Int("connections", total).Msg("overlay state broadcasted")
}

// Stats reports how many viewers are connected and how many of them are visible
func (cm *ConnectionManager) Stats() (total, visible int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for conn := range cm.connections {
		if !conn.hidden {
			visible++
		}
	}
	return len(cm.connections), visible
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case "visibility":
		c.Manager.setHidden(c, msg.Hidden)
	default:
		log.Debug().Str("connection_id", c.ID).Str("type", msg.Type).Msg("ignoring unknown client message")
	}
}
