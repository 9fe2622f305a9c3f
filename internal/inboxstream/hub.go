// Package inboxstream pushes conversation events to connected inbox
// UIs over WebSocket.
package inboxstream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// Event is one inbox update pushed to subscribers.
type Event struct {
	Type       string `json:"type"` // "message" or "status"
	LeadID     string `json:"leadId"`
	Status     string `json:"status,omitempty"`
	AutoPilot  bool   `json:"autoPilot"`
	Role       string `json:"role,omitempty"`
	Content    string `json:"content,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Internal   bool   `json:"internal,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	LeadName   string `json:"leadName,omitempty"`
	LeadPhone  string `json:"leadPhone,omitempty"`
	AuthStatus string `json:"authStatus,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // guards writes; gorilla allows one concurrent writer
}

func (c *client) send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(event)
}

// Hub fans conversation events out to every connected inbox client.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The admin router already enforces auth and CORS.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: map[*client]struct{}{},
	}
}

var _ conversation.Observer = (*Hub)(nil)

// HandleWS upgrades the request and keeps the connection registered
// until the peer goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("inboxstream: upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("inboxstream: client connected", "clients", count)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
		h.logger.Info("inboxstream: client disconnected")
	}()

	// Inbound frames are ignored; the read loop only detects closure.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount reports how many inbox clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MessageAppended broadcasts a new message to every inbox client.
func (h *Hub) MessageAppended(ctx context.Context, lead *leads.Lead, msg leads.Message) {
	h.broadcast(Event{
		Type:      "message",
		LeadID:    lead.ID,
		Status:    string(lead.Status),
		AutoPilot: lead.AutoPilot,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Kind:      string(msg.Kind),
		Internal:  msg.Internal,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		LeadName:  lead.Name,
		LeadPhone: lead.Phone,
	})
}

// StatusChanged broadcasts a status transition to every inbox client.
func (h *Hub) StatusChanged(ctx context.Context, lead *leads.Lead) {
	h.broadcast(Event{
		Type:       "status",
		LeadID:     lead.ID,
		Status:     string(lead.Status),
		AutoPilot:  lead.AutoPilot,
		AuthStatus: string(lead.AuthStatus),
		LeadName:   lead.Name,
		LeadPhone:  lead.Phone,
	})
}

func (h *Hub) broadcast(event Event) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(event); err != nil {
			h.logger.Debug("inboxstream: dropping slow client", "error", err)
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			c.conn.Close()
		}
	}
}
