package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"Gin_postgres_redis_library/models"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Client is one open websocket. A user may have several.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Delivery is a published notification on its way to the user's clients.
type Delivery struct {
	UserID  string
	Payload []byte
}

// Hub fans notifications from Redis out to the websocket clients of this process.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub accepts websocket upgrades from the given origins; none means same-origin only.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		}
	}
	return h
}

// Subscribe feeds the hub from the Redis notification channels until ctx ends.
func (h *Hub) Subscribe(ctx context.Context, rdb redis.UniversalClient) {
	ps := rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	in := make(chan Delivery)
	go func() {
		defer close(in)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				userID := strings.TrimPrefix(msg.Channel, channelPrefix)
				if userID == "" || strings.Contains(userID, ":") {
					continue
				}
				select {
				case in <- Delivery{UserID: userID, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	h.Run(ctx, in)
}

// Run serves registrations and deliveries until ctx ends or in closes. A hub runs once.
func (h *Hub) Run(ctx context.Context, in <-chan Delivery) {
	defer close(h.done)
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[c.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.UserID] = set
			}
			set[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()
		case d, ok := <-in:
			if !ok {
				return
			}
			h.mu.Lock()
			for c := range h.clients[d.UserID] {
				select {
				case c.Send <- d.Payload:
				default:
					// slow reader
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Connected reports how many clients userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.Send)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.drop(c)
		}
	}
}

// Serve upgrades the request and streams userID's notifications until either side closes.
// The backlog of unread notifications is sent first.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string, backlog []models.Notification) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{UserID: userID, Conn: conn, Send: make(chan []byte, sendBuffer+len(backlog))}
	for i := len(backlog) - 1; i >= 0; i-- {
		if b, err := json.Marshal(backlog[i]); err == nil {
			c.Send <- b
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	}

	go h.writePump(c)
	h.readPump(ctx, c)
	return nil
}

// readPump discards client frames; it exists to process pongs and notice the close.
func (h *Hub) readPump(ctx context.Context, c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		case <-ctx.Done():
		}
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("notification stream closed", "user_id", c.UserID, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
