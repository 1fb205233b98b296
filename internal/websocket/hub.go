package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"chathub-backend/internal/models"
	"chathub-backend/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenParser resolves a socket token to a session ID.
type TokenParser interface {
	ParseSocketToken(token string) (string, error)
}

// SessionLookup finds live sessions by ID.
type SessionLookup interface {
	Get(id string) (*session.Session, bool)
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans chat events out to every open tab of a session. With Redis the
// events travel over pub/sub so any instance can publish them.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	redisClient *redis.Client
	tokens      TokenParser
	sessions    SessionLookup
	cancelFuncs map[string]context.CancelFunc
}

func NewHub(redisClient *redis.Client, tokens TokenParser, sessions SessionLookup) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		redisClient: redisClient,
		tokens:      tokens,
		sessions:    sessions,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

func channelFor(sessionID string) string {
	return "session_updates:" + sessionID
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.tokens.ParseSocketToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if h.sessions != nil {
		sess, ok := h.sessions.Get(sessionID)
		if !ok || !sess.Authenticated() {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn}
	h.registerConnection(sessionID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// First tab of this session subscribes to its channel
	if len(h.connections[sessionID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	log.Printf("[ws] connected: session %s (total: %d)", shortID(sessionID), len(h.connections[sessionID]))
}

func (h *Hub) unregisterConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.Printf("[ws] disconnected: session %s", shortID(sessionID))
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID string) {
	pubsub := h.redisClient.Subscribe(ctx, channelFor(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

// Publish sends msg to the session's open sockets. Delivery is best effort.
func (h *Hub) Publish(ctx context.Context, sessionID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] marshal %s: %v", msg.Type, err)
		return
	}

	if h.redisClient != nil {
		if err := h.redisClient.Publish(ctx, channelFor(sessionID), data).Err(); err != nil {
			log.Printf("[ws] publish %s: %v", msg.Type, err)
		}
		return
	}
	h.broadcast(sessionID, data)
}

// Connections reports how many sockets a session has open.
func (h *Hub) Connections(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

func (h *Hub) broadcast(sessionID string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			log.Printf("[ws] write to session %s: %v", shortID(sessionID), err)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
