package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"releasefinder/internal/domain"
)

const (
	chatReadLimit    = 4096
	chatPongWait     = 60 * time.Second
	chatPingInterval = 30 * time.Second
	chatWriteWait    = 10 * time.Second
	chatReplyTimeout = 30 * time.Second
)

// chatInbound is one user event: free text or a button press.
type chatInbound struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type chatMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type chatClient struct {
	hub    *chatHub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	gone   chan struct{}
}

// chatHub tracks connected chat clients and fans out notices to all of them.
// A client's send channel is never closed; gone is closed once the hub drops it.
type chatHub struct {
	clients    map[*chatClient]struct{}
	broadcast  chan []byte
	register   chan *chatClient
	unregister chan *chatClient
	done       chan struct{}
	logger     *slog.Logger
}

func newChatHub(logger *slog.Logger) *chatHub {
	return &chatHub{
		clients:    make(map[*chatClient]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *chatClient),
		unregister: make(chan *chatClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *chatHub) run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.gone)
				delete(h.clients, client)
			}
			h.logger.Debug("chat hub stopped, all clients disconnected")
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("chat client connected",
				slog.String("user", client.userID),
				slog.Int("total", len(h.clients)),
			)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.gone)
				h.logger.Debug("chat client disconnected",
					slog.String("user", client.userID),
					slog.Int("total", len(h.clients)),
				)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; the notice is dropped for it.
				}
			}
		}
	}
}

// Close signals the hub to stop and disconnect all clients.
func (h *chatHub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Broadcast sends a typed JSON notice to every connected client.
func (h *chatHub) Broadcast(msgType string, data any) {
	payload, err := json.Marshal(chatMessage{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("chat marshal failed", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user is required")
		return
	}
	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("chat upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &chatClient{
		hub:    s.hub,
		conn:   conn,
		userID: user,
		send:   make(chan []byte, 16),
		gone:   make(chan struct{}),
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump(s.chat, s.logger)
}

// enqueue hands payload to the write pump unless the client is already gone.
func (c *chatClient) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	case <-c.gone:
		return false
	}
}

func (c *chatClient) writePump() {
	ticker := time.NewTicker(chatPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.gone:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(2*time.Second),
			)
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *chatClient) readPump(chat ChatService, logger *slog.Logger) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(chatReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(chatPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(chatPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(chatPongWait))

		var inbound chatInbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			c.reply("error", "invalid message", logger)
			continue
		}
		items := c.dispatch(chat, inbound)
		if items == nil {
			c.reply("error", "unknown message type", logger)
			continue
		}
		if !c.reply("items", items, logger) {
			return
		}
	}
}

func (c *chatClient) dispatch(chat ChatService, inbound chatInbound) []domain.ResponseItem {
	ctx, cancel := context.WithTimeout(context.Background(), chatReplyTimeout)
	defer cancel()
	switch inbound.Type {
	case "text":
		return chat.HandleText(ctx, c.userID, inbound.Data)
	case "action":
		return chat.HandleAction(ctx, c.userID, inbound.Data)
	default:
		return nil
	}
}

func (c *chatClient) reply(msgType string, data any, logger *slog.Logger) bool {
	payload, err := json.Marshal(chatMessage{Type: msgType, Data: data})
	if err != nil {
		logger.Error("chat marshal failed", slog.String("error", err.Error()))
		return true
	}
	return c.enqueue(payload)
}
