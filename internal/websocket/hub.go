package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-chatbot-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const streamChannel = "chat_stream"

// Hub fans answer deltas out to the websocket clients watching a session.
// With Redis configured, deltas also cross instances through a pub/sub
// channel so a client can be connected anywhere.
type Hub struct {
	// SessionID -> connected clients (a session can be open in several tabs)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	// instanceId marks deltas this hub published to Redis so the
	// subscription loop can skip them; local delivery already happened.
	instanceId string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionId] = append(h.clients[client.SessionId], client)
			h.mu.Unlock()
			h.logger.Info("hub", "client registered", map[string]interface{}{"session_id": client.SessionId})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionId]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionId] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionId]) == 0 {
					delete(h.clients, client.SessionId)
				}
			}
			h.mu.Unlock()
		}
	}
}

type streamPayload struct {
	SessionId string `json:"session_id"`
	Delta     string `json:"delta"`
	Origin    string `json:"origin"`
}

// PublishDelta implements the streaming sink used by the chat service.
func (h *Hub) PublishDelta(sessionId, delta string) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":  "delta",
		"delta": delta,
	})

	h.deliverLocal(sessionId, data)

	if h.rdb != nil {
		jsonPayload, _ := json.Marshal(streamPayload{
			SessionId: sessionId,
			Delta:     delta,
			Origin:    h.instanceId,
		})
		h.rdb.Publish(context.Background(), streamChannel, jsonPayload)
	}
}

func (h *Hub) deliverLocal(sessionId string, data []byte) {
	h.mu.RLock()
	clients := h.clients[sessionId]
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("hub", "client buffer full, dropping connection", map[string]interface{}{
				"session_id": sessionId,
			})
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, streamChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.handleStreamPayload([]byte(msg.Payload))
	}
}

func (h *Hub) handleStreamPayload(raw []byte) {
	var payload streamPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("hub", "bad redis payload", map[string]interface{}{"error": err.Error()})
		return
	}
	if payload.Origin == h.instanceId {
		return
	}

	data, _ := json.Marshal(map[string]interface{}{
		"type":  "delta",
		"delta": payload.Delta,
	})
	h.deliverLocal(payload.SessionId, data)
}
