package bet

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *WSHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
}

func TestWSHubBroadcastsTotals(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.PublishTotals(model.TotalsSnapshot{Red: d(10), Blue: d(5.25)})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg TotalsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "totals" || msg.Red != "10" || msg.Blue != "5.25" {
		t.Errorf("message = %+v, want totals 10/5.25", msg)
	}
}

// A client that goes away is evicted by the broadcast loop without
// disturbing the remaining subscribers.
func TestWSHubEvictsDeadClient(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	dead := dialHub(t, srv)
	alive := dialHub(t, srv)
	defer alive.Close()
	waitForClients(t, hub, 2)

	dead.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() > 1 && time.Now().Before(deadline) {
		hub.PublishTotals(model.TotalsSnapshot{Red: d(1), Blue: d(2)})
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1 after eviction", got)
	}

	// The survivor still receives broadcasts.
	hub.PublishTotals(model.TotalsSnapshot{Red: d(3), Blue: d(4)})
	alive.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := alive.ReadMessage(); err != nil {
		t.Fatalf("survivor read: %v", err)
	}
}
