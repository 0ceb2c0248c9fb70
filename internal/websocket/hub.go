package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"code-assistant/internal/models"
	"code-assistant/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tokenParser interface {
	ParseConversationToken(tokenStr string) (uuid.UUID, error)
}

// Hub fans conversation events out to the sockets watching that
// conversation. With a Redis client, events arrive over pub/sub so any
// server instance can publish them; without one, Publish delivers locally.
type Hub struct {
	mu          sync.RWMutex
	writeMu     sync.Mutex
	connections map[uuid.UUID][]*websocket.Conn
	redisClient *redis.Client
	tokens      tokenParser
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

func NewHub(redisClient *redis.Client, tokens tokenParser) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*websocket.Conn),
		redisClient: redisClient,
		tokens:      tokens,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := h.tokens.ParseConversationToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(conversationID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(conversationID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Publish delivers an event to local sockets. Used when no Redis client is
// configured; otherwise services.RedisPublisher is the publisher.
func (h *Hub) Publish(ctx context.Context, conversationID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", msg.Type, err)
		return
	}
	h.broadcast(conversationID, data)
}

func (h *Hub) registerConnection(conversationID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conversationID] = append(h.connections[conversationID], conn)

	// Start pub/sub subscription on the first connection for this conversation
	if h.redisClient != nil && len(h.connections[conversationID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[conversationID] = cancel
		go h.subscribeToPubSub(ctx, conversationID)
	}

	log.Printf("WebSocket connected: conversation %s (total: %d)", conversationID, len(h.connections[conversationID]))
}

func (h *Hub) unregisterConnection(conversationID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[conversationID]
	for i, c := range conns {
		if c == conn {
			h.connections[conversationID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[conversationID]) == 0 {
		delete(h.connections, conversationID)
		if cancel, ok := h.cancelFuncs[conversationID]; ok {
			cancel()
			delete(h.cancelFuncs, conversationID)
		}
	}

	log.Printf("WebSocket disconnected: conversation %s", conversationID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, conversationID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, services.ConversationChannel(conversationID))
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
			h.broadcast(conversationID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(conversationID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns := append([]*websocket.Conn(nil), h.connections[conversationID]...)
	h.mu.RUnlock()

	// gorilla connections allow one concurrent writer
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write failed: conversation %s: %v", conversationID, err)
		}
	}
}

func (h *Hub) connectionCount(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[conversationID])
}
