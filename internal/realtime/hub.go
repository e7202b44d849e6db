package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

type Client struct {
	ID    string
	Email string
	Conn  *WebSocketConn
	Send  chan []byte
}

// Hub tracks the open websocket sessions of this instance, keyed by client id.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// RegisterClient closes the client's send channel right away once the hub
// has stopped.
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser marshals data and delivers it to every session of email.
func (h *Hub) SendToUser(email string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.WithError(err).Warn("marshal realtime message")
		return
	}
	h.SendRaw(email, payload)
}

// SendRaw never blocks; a session with a full buffer misses the message.
func (h *Hub) SendRaw(email string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.clients {
		if client.Email != email {
			continue
		}
		select {
		case client.Send <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

// Sessions reports how many sessions email has open.
func (h *Hub) Sessions(email string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.Email == email {
			n++
		}
	}
	return n
}

// Run serves register and unregister until ctx ends, then closes every
// session's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.WithField("email", client.Email).Debug("websocket client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(old.Send)
			}
			h.mu.Unlock()

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}
