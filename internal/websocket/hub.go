package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"wandernest-backend/internal/handlers"
	"wandernest-backend/internal/middleware"
	"wandernest-backend/internal/models"
	"wandernest-backend/internal/services"
)

const (
	maxFrameBytes = 1 << 20
	writeWait     = 10 * time.Second
	frameBacklog  = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type chatService interface {
	Chat(ctx context.Context, in services.ChatInput) (*models.NormalizedReply, error)
}

type authenticator interface {
	Enabled() bool
	Authenticate(token string) (*models.User, error)
}

// client is one socket. gorilla allows a single concurrent writer, so all
// writes go through mu.
type client struct {
	conn *websocket.Conn
	user *models.User
	mu   sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub serves chat over websockets. Each text frame is a chat request and is
// answered with one reply frame, in arrival order.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	chat        chatService
	auth        authenticator
	limiter     middleware.Limiter
}

// NewHub builds a hub. Every frame counts against limiter under the same
// caller key as POST /chat; a nil limiter disables the check.
func NewHub(chat chatService, auth authenticator, limiter middleware.Limiter) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		chat:        chat,
		auth:        auth,
		limiter:     limiter,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var user *models.User
	if h.auth != nil && h.auth.Enabled() {
		// Authenticate via token query param
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		u, err := h.auth.Authenticate(tokenStr)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		user = u
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	c := &client{conn: conn, user: user}
	h.registerConnection(c)
	defer h.unregisterConnection(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if user != nil {
		ctx = middleware.WithUser(ctx, user)
	}
	key := middleware.ClientKey(r.WithContext(ctx))

	// The reader runs beside the chat loop so a disconnect cancels the
	// provider call in flight.
	frames := make(chan []byte, frameBacklog)
	go func() {
		defer close(frames)
		defer cancel()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for data := range frames {
		if ctx.Err() != nil {
			return
		}
		if err := h.handleFrame(ctx, c, r, key, data); err != nil {
			return
		}
	}
}

func (h *Hub) handleFrame(ctx context.Context, c *client, r *http.Request, key string, data []byte) error {
	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, key)
		if err != nil {
			log.Printf("rate limiter error: %v", err)
			allowed = true
		}
		if !allowed {
			_, body := handlers.ServiceErrorBody(&services.RateLimitError{Message: "Too many requests. Please try again later."}, r)
			return c.writeJSON(body)
		}
	}

	var req models.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		_, body := handlers.ServiceErrorBody(&services.ValidationError{Fields: map[string]string{"body": "invalid JSON"}}, r)
		return c.writeJSON(body)
	}

	in := services.ChatInput{Request: req, RequestID: uuid.NewString()}
	if c.user != nil {
		id := c.user.ID
		in.UserID = &id
	}

	reply, err := h.chat.Chat(ctx, in)
	if err != nil {
		_, body := handlers.ServiceErrorBody(err, r)
		body.Error.RequestID = in.RequestID
		return c.writeJSON(body)
	}
	return c.writeJSON(reply)
}

func userKey(c *client) uuid.UUID {
	if c.user == nil {
		return uuid.Nil
	}
	return c.user.ID
}

func (h *Hub) registerConnection(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := userKey(c)
	h.connections[key] = append(h.connections[key], c)
	log.Printf("WebSocket connected: user %s (total: %d)", key, len(h.connections[key]))
}

func (h *Hub) unregisterConnection(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	key := userKey(c)
	conns := h.connections[key]
	for i, other := range conns {
		if other == c {
			h.connections[key] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[key]) == 0 {
		delete(h.connections, key)
	}

	log.Printf("WebSocket disconnected: user %s", key)
}

// ConnectionCount returns the number of open sockets for userID.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Close sends a going-away frame to every socket. Hijacked connections are
// not closed by http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conns := range h.connections {
		for _, c := range conns {
			c.mu.Lock()
			c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			c.mu.Unlock()
			c.conn.Close()
		}
	}
}
