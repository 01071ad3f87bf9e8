package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"busz-backend/internal/monitor"
)

const (
	// sendChannelSize controls the max number
	// of messages that can be queued for a client.
	sendChannelSize = 16
	pingPeriod      = (60 * 9 * time.Second) / 10
)

type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type Client struct {
	ID      string
	Conn    *websocket.Conn
	Manager *Manager
	send    chan Message
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewClient(id string, conn *websocket.Conn, manager *Manager) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:      id,
		Conn:    conn,
		Manager: manager,
		send:    make(chan Message, sendChannelSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Client) Start() {
	go c.readPump()
	go c.writePump()
	c.Manager.register <- c
}

func (c *Client) Close() {
	if err := c.Conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		c.Manager.logger.Debug("failed to close connection", "clientID", c.ID, "error", err)
	}
	c.cancel()
}

func (c *Client) Send(msg Message) {
	select {
	case c.send <- msg:
	default:
		c.Manager.forceDisconnect(c)
	}
}

func (c *Client) reply(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.Manager.logger.Warn("failed to marshal reply", "clientID", c.ID, "event", event, "error", err)
		return
	}
	c.Send(Message{Type: event, Data: data})
}

func (c *Client) readPump() {
	defer func() {
		c.Manager.unregister <- c
		c.Close()
	}()

	for {
		var msg Message
		if err := wsjson.Read(c.ctx, c.Conn, &msg); err != nil {
			c.Manager.logger.Debug("read loop ended", "clientID", c.ID, "error", err)
			break
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			if err := wsjson.Write(c.ctx, c.Conn, msg); err != nil {
				c.Manager.logger.Warn("failed to write message", "clientID", c.ID, "error", err)
				return
			}
			c.Manager.logger.Debug("message sent", "clientID", c.ID, "type", msg.Type)
		case <-ticker.C:
			if err := c.Conn.Ping(c.ctx); err != nil {
				c.Manager.logger.Debug("failed to ping client", "clientID", c.ID, "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	gw := c.Manager.gateway

	switch msg.Type {
	case "start_monitoring":
		var req monitor.StartMonitoringRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.reply("error", errorPayload{Message: "잘못된 요청 형식입니다"})
			return
		}
		ack, err := gw.StartMonitoring(c.ID, req)
		if err != nil {
			c.reply("error", errorPayload{Message: err.Error()})
			return
		}
		c.reply("monitoring_started", ack)

	case "stop_monitoring":
		ack, err := gw.StopMonitoring(c.ID)
		if err != nil {
			if errors.Is(err, monitor.ErrNoActiveSession) {
				c.reply("error", errorPayload{Message: "활성 모니터링이 없습니다"})
				return
			}
			c.reply("error", errorPayload{Message: err.Error()})
			return
		}
		c.reply("monitoring_stopped", ack)

	case "get_session_status":
		c.reply("session_status", gw.SessionStatus(c.ID))

	case "get_server_stats":
		c.reply("server_stats", gw.ServerStats())

	default:
		c.Manager.logger.Debug("received unknown type message", "clientID", c.ID, "type", msg.Type)
		c.reply("error", errorPayload{Message: "알 수 없는 메시지 타입입니다"})
	}
}
