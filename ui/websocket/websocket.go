// Package websocket streams dispatch outcomes to dashboard clients. With
// Valkey configured, events fan out to every server sharing the store.
package websocket

import (
	"context"
	"encoding/json"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/infrastructure/valkey"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const broadcastBuffer = 256

// BroadcastMessage is the envelope written to every socket.
type BroadcastMessage struct {
	Code     string              `json:"code"`
	Message  string              `json:"message,omitempty"`
	Result   *domain.ActionEvent `json:"result,omitempty"`
	SenderID string              `json:"sender_id,omitempty"`
}

// clientMessage is what a socket may send: {"code":"FILTER","account_ref":"..."}.
type clientMessage struct {
	Code       string `json:"code"`
	AccountRef string `json:"account_ref"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type subscription struct {
	conn       Conn
	accountRef string
}

// Hub owns the connected sockets. All map access happens on the Run goroutine.
type Hub struct {
	clients    map[Conn]string
	register   chan subscription
	unregister chan Conn
	broadcast  chan BroadcastMessage
	done       chan struct{}

	vk       *valkey.Client
	channel  string
	serverID string
}

func NewHub(vk *valkey.Client) *Hub {
	h := &Hub{
		clients:    make(map[Conn]string),
		register:   make(chan subscription),
		unregister: make(chan Conn),
		broadcast:  make(chan BroadcastMessage, broadcastBuffer),
		done:       make(chan struct{}),
		vk:         vk,
		serverID:   uuid.NewString(),
	}
	if vk != nil {
		h.channel = vk.Key("ws", "actions")
	}
	return h
}

// NotifyAction queues an outcome for every subscribed socket. It drops the
// event when the hub is saturated rather than stall the dispatcher.
func (h *Hub) NotifyAction(ev domain.ActionEvent) {
	msg := BroadcastMessage{Code: "ACTION_" + string(ev.Status), Result: &ev}
	select {
	case h.broadcast <- msg:
	default:
		logrus.Warnf("[WS] Broadcast buffer full, dropped event for %s", ev.ActionID)
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.vk != nil {
		go h.subscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				h.closeConnection(conn)
			}
			return
		case sub := <-h.register:
			h.clients[sub.conn] = sub.accountRef
			logrus.Debug("[WS] Connection registered")
		case conn := <-h.unregister:
			delete(h.clients, conn)
			logrus.Debug("[WS] Connection unregistered")
		case msg := <-h.broadcast:
			h.broadcastToLocal(msg)
			if h.vk != nil && msg.SenderID == "" {
				h.publish(ctx, msg)
			}
		}
	}
}

func (h *Hub) broadcastToLocal(msg BroadcastMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn, accountRef := range h.clients {
		if accountRef != "" && (msg.Result == nil || msg.Result.AccountRef != accountRef) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			h.closeConnection(conn)
		}
	}
}

func (h *Hub) publish(ctx context.Context, msg BroadcastMessage) {
	msg.SenderID = h.serverID
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if err := h.vk.Publish(ctx, h.channel, data); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

// subscribe relays events published by other servers to local sockets.
func (h *Hub) subscribe(ctx context.Context) {
	logrus.Infof("[WS] Subscribed to %s for distributed events", h.channel)

	err := h.vk.Subscribe(ctx, h.channel, func(payload []byte) {
		var msg BroadcastMessage
		if err := json.Unmarshal(payload, &msg); err != nil || msg.SenderID == h.serverID {
			return
		}
		select {
		case h.broadcast <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil && ctx.Err() == nil {
		logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
	}
}

// join registers conn, or replaces its account filter when already known.
func (h *Hub) join(conn Conn, accountRef string) {
	select {
	case h.register <- subscription{conn: conn, accountRef: accountRef}:
	case <-h.done:
	}
}

func (h *Hub) leave(conn Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

func (h *Hub) closeConnection(conn Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(h.clients, conn)
}

// RegisterRoutes mounts GET /ws on router.
func (h *Hub) RegisterRoutes(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	router.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		h.join(conn, conn.Query("account_ref"))
		defer func() {
			h.leave(conn)
			_ = conn.Close()
		}()

		for {
			messageType, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Debugf("[WS] Read error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			var msg clientMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Code == "FILTER" {
				h.join(conn, msg.AccountRef)
			}
		}
	}))
}
