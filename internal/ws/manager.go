package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"busz-backend/internal/monitor"
)

// Manager tracks connected clients and delivers per-session pushes. It is
// the monitor.Pusher of this process.
type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
	gateway    *monitor.Gateway
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewManager(ctx context.Context, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetGateway wires the gateway after construction; the gateway itself needs
// the manager as its push channel.
func (m *Manager) SetGateway(gw *monitor.Gateway) {
	m.gateway = gw
}

// HandleNewConnection adopts an accepted websocket connection.
func (m *Manager) HandleNewConnection(sessionID string, conn *websocket.Conn) {
	client := NewClient(sessionID, conn, m)
	client.Start()
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			client.reply("connected", m.gateway.OnConnect(client.ID))
		case client := <-m.unregister:
			// The send channel is never closed: a worker's Push may hold a
			// reference to this client past removal. writePump exits on the
			// client context instead, and late pushes land in the orphaned
			// buffer and are collected with the client.
			m.mu.Lock()
			if cur, ok := m.clients[client.ID]; ok && cur == client {
				delete(m.clients, client.ID)
			}
			m.mu.Unlock()
			m.gateway.OnDisconnect(client.ID)
		case <-m.ctx.Done():
			return
		}
	}
}

// Push delivers an event to one session's client. Unknown sessions are
// dropped silently: the client may have disconnected while its worker was
// mid-cycle.
func (m *Manager) Push(sessionID, event string, payload any) {
	m.mu.RLock()
	client, ok := m.clients[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Warn("failed to marshal push payload", "sessionID", sessionID, "event", event, "error", err)
		return
	}
	client.Send(Message{Type: event, Data: data})
}

func (m *Manager) forceDisconnect(c *Client) {
	c.Close()
}

func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	for _, client := range m.clients {
		client.Close()
	}
	m.mu.Unlock()
}
