package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialSession opens the socket with the harness client's session cookie.
func dialSession(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Cookie", "hirehub_session="+h.sessionCookie(t))
	wsURL := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/v1/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading message: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	return msg
}

func loggedIn(t *testing.T, msg WSMessage) bool {
	t.Helper()

	if msg.Type != WSTypeEvent || msg.EventType != EventAuthStateChanged {
		t.Fatalf("message = %+v, want %s event", msg, EventAuthStateChanged)
	}
	payload, _ := msg.Payload.(map[string]any)
	v, _ := payload["logged_in"].(bool)
	return v
}

func TestWebSocket_PushesAuthState(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t, "co@example.com")

	conn := dialSession(t, h)
	if !loggedIn(t, readMessage(t, conn)) {
		t.Fatal("initial state should be logged in")
	}
	if n := h.srv.hub.ClientCount(); n != 1 {
		t.Errorf("ClientCount() = %d, want 1", n)
	}

	h.do(t, http.MethodPost, "/api/v1/auth/logout", "")
	if loggedIn(t, readMessage(t, conn)) {
		t.Error("logout should push logged_in=false")
	}

	h.login(t, "co@example.com")
	if !loggedIn(t, readMessage(t, conn)) {
		t.Error("login should push logged_in=true")
	}
}

func TestWebSocket_PingAndState(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodGet, "/api/v1/auth/session", "")

	conn := dialSession(t, h)
	readMessage(t, conn) // initial state

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypeState, ID: "s1"}); err != nil {
		t.Fatalf("write state: %v", err)
	}
	msg := readMessage(t, conn)
	payload, _ := msg.Payload.(map[string]any)
	if msg.Type != WSTypeResponse || msg.ID != "s1" || payload["logged_in"] != false {
		t.Errorf("state reply = %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v, want error", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "subscribe", ID: "x"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError || msg.ID != "x" {
		t.Errorf("unknown type reply = %+v, want error", msg)
	}
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodGet, "/api/v1/auth/session", "")

	conn := dialSession(t, h)
	readMessage(t, conn)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.srv.hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
