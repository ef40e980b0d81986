package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"releasefinder/internal/domain"
)

// ---- helpers ----

func dialChat(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?user=" + user
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial chat: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readChatMessage(t *testing.T, conn *websocket.Conn) chatMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read chat message: %v", err)
	}
	var msg chatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal chat message: %v (raw: %s)", err, data)
	}
	return msg
}

func itemsOf(t *testing.T, msg chatMessage) []domain.ResponseItem {
	t.Helper()
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	var items []domain.ResponseItem
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	return items
}

// ---- chat socket ----

func TestChatSocketTextAndAction(t *testing.T) {
	server := newTestServer(t, &fakeChat{})
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	conn := dialChat(t, srv, "u1")

	if err := conn.WriteJSON(chatInbound{Type: "text", Data: "boards of canada"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readChatMessage(t, conn)
	if msg.Type != "items" {
		t.Fatalf("expected items, got %q", msg.Type)
	}
	if items := itemsOf(t, msg); len(items) != 1 || items[0].Text != "text:boards of canada" {
		t.Fatalf("unexpected items %#v", items)
	}

	if err := conn.WriteJSON(chatInbound{Type: "action", Data: "page:1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if items := itemsOf(t, readChatMessage(t, conn)); items[0].Text != "action:page:1" {
		t.Fatalf("unexpected items %#v", items)
	}

	if err := conn.WriteJSON(chatInbound{Type: "voice", Data: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readChatMessage(t, conn); msg.Type != "error" {
		t.Fatalf("expected error for unknown type, got %q", msg.Type)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readChatMessage(t, conn); msg.Type != "error" {
		t.Fatalf("expected error for invalid json, got %q", msg.Type)
	}
}

func TestChatSocketRequiresUser(t *testing.T) {
	handler := newTestServer(t, &fakeChat{}).Handler()
	if w := doRequest(t, handler, "GET", "/chat/ws", ""); w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestClearAllBroadcastsToChatClients(t *testing.T) {
	server := newTestServer(t, &fakeChat{})
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	first := dialChat(t, srv, "u1")
	second := dialChat(t, srv, "u2")

	// Round-trip once per client so both are registered with the hub.
	for _, conn := range []*websocket.Conn{first, second} {
		if err := conn.WriteJSON(chatInbound{Type: "text", Data: "ping"}); err != nil {
			t.Fatalf("write: %v", err)
		}
		readChatMessage(t, conn)
	}

	if w := doRequest(t, server.Handler(), "POST", "/admin/clear", ""); w.Code != 200 {
		t.Fatalf("clear: expected 200, got %d", w.Code)
	}
	for _, conn := range []*websocket.Conn{first, second} {
		if msg := readChatMessage(t, conn); msg.Type != "sessions_cleared" {
			t.Fatalf("expected sessions_cleared, got %q", msg.Type)
		}
	}
}

func TestChatHubCloseDisconnectsClients(t *testing.T) {
	server := NewServer(&fakeChat{})
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	conn := dialChat(t, srv, "u1")
	if err := conn.WriteJSON(chatInbound{Type: "text", Data: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readChatMessage(t, conn)

	server.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
	server.Close()
}

func TestChatHubBroadcastWithoutClients(t *testing.T) {
	hub := newChatHub(slog.Default())
	go hub.run()
	defer hub.Close()
	hub.Broadcast("notice", map[string]string{"a": "b"})
}
