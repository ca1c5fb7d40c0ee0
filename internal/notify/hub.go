package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize int64 = 1024
)

// Client is one websocket connection of one user.
type Client struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
}

type directMessage struct {
	userID  string
	payload []byte
}

// Hub fans toast events out to every open connection of the target user.
// Toasts are user-scoped, so there is no broadcast path.
type Hub struct {
	mu          sync.RWMutex
	userClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	direct     chan directMessage

	log *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		userClients: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		direct:      make(chan directMessage, 256),
		log:         log,
	}
}

// Run is the hub's main loop. Call it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.userClients[c.UserID] == nil {
				h.userClients[c.UserID] = make(map[*Client]bool)
			}
			h.userClients[c.UserID][c] = true
			h.mu.Unlock()
			h.log.Debug("websocket client registered",
				zap.String("user_id", c.UserID), zap.String("client_id", c.ID))

		case c := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.userClients[c.UserID]; ok {
				if _, ok := clients[c]; ok {
					delete(clients, c)
					if len(clients) == 0 {
						delete(h.userClients, c.UserID)
					}
					close(c.send)
				}
			}
			h.mu.Unlock()

		case dm := <-h.direct:
			h.mu.RLock()
			for c := range h.userClients[dm.userID] {
				select {
				case c.send <- dm.payload:
				default:
					// slow consumer, drop the connection
					go func(c *Client) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Deliver implements Sink: toast events go to every connection of the user.
func (h *Hub) Deliver(userID string, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error("marshal toast event", zap.Error(err))
		return
	}
	h.direct <- directMessage{userID: userID, payload: payload}
}

// ConnectedClients reports the number of open connections for a user.
func (h *Hub) ConnectedClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// auth happens in middleware before the upgrade; the gateway sits behind
	// the app's own origin
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and attaches the connection to the hub. The
// caller must have resolved the authenticated user id already.
func (h *Hub) ServeWS(c *gin.Context, userID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		hub:    h,
		send:   make(chan []byte, 64),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so control frames are processed. Clients only
// receive; anything they send besides pongs is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
