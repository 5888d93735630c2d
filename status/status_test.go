package status

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type received struct {
	Message  string  `json:"message"`
	Kind     string  `json:"kind"`
	Progress float32 `json:"progress"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var r received
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestHub(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dial(t, srv)
	// wait until the subscription is registered
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	hub.Publish(&Event{Message: "saved", Kind: KindInfo})
	if got := read(t, first); got.Message != "saved" || got.Kind != "info" {
		t.Errorf("got %+v", got)
	}

	// a late subscriber gets the latest event
	second := dial(t, srv)
	if got := read(t, second); got.Message != "saved" {
		t.Errorf("late subscriber got %+v", got)
	}

	hub.Publish(&Event{Message: "half", Kind: KindProgress, Progress: 0.5})
	for _, conn := range []*websocket.Conn{first, second} {
		if got := read(t, conn); got.Kind != "progress" || got.Progress != 0.5 {
			t.Errorf("got %+v", got)
		}
	}
}
