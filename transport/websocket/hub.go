package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// client is one connected session. Writes are serialized per connection.
type client struct {
	socketID string
	conn     *websocket.Conn

	mu sync.Mutex
}

func (that *client) send(msg Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.conn.WriteJSON(msg)
}

// Hub tracks connected sessions and the room topics they subscribe to, and
// fans published events out to them.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clients[c.socketID] = c
}

// unregister drops the session and every room subscription it holds.
func (that *Hub) unregister(socketID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.clients, socketID)

	for roomID, members := range that.rooms {
		delete(members, socketID)
		if len(members) == 0 {
			delete(that.rooms, roomID)
		}
	}
}

// Subscribe adds the session to a room's topic.
func (that *Hub) Subscribe(roomID, socketID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.rooms[roomID]; !ok {
		that.rooms[roomID] = make(map[string]struct{})
	}
	that.rooms[roomID][socketID] = struct{}{}
}

// Broadcast publishes an event to every session subscribed to the room.
func (that *Hub) Broadcast(roomID, event string, payload any) {
	msg, err := newMessage(event, payload)
	if err != nil {
		that.logger.Error("failed to marshal payload", "event", event, "error", err)
		return
	}

	that.mu.RLock()
	members := make([]*client, 0, len(that.rooms[roomID]))
	for socketID := range that.rooms[roomID] {
		if c, ok := that.clients[socketID]; ok {
			members = append(members, c)
		}
	}
	that.mu.RUnlock()

	for _, c := range members {
		if err = c.send(msg); err != nil {
			that.logger.Error("failed to send event", "event", event, "socketID", c.socketID, "error", err)
		}
	}
}

// SendTo publishes an event to a single session.
func (that *Hub) SendTo(socketID, event string, payload any) {
	msg, err := newMessage(event, payload)
	if err != nil {
		that.logger.Error("failed to marshal payload", "event", event, "error", err)
		return
	}

	that.mu.RLock()
	c, ok := that.clients[socketID]
	that.mu.RUnlock()

	if !ok {
		that.logger.Debug("connection not found", "socketID", socketID)
		return
	}

	if err = c.send(msg); err != nil {
		that.logger.Error("failed to send event", "event", event, "socketID", socketID, "error", err)
	}
}

func newMessage(event string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Action:  event,
		Payload: raw,
	}, nil
}
