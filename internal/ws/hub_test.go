package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"xpress/internal/modules/dispatch"
	"xpress/internal/types"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		driverID := types.ID(strings.TrimPrefix(r.URL.Path, "/ws/drivers/"))
		hub.HandleDriver(w, r, driverID)
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialDriver(t *testing.T, srv *httptest.Server, driverID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/drivers/" + driverID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// registered returns the live client for a driver, or nil. Registration runs
// on the server goroutine after the handshake, so tests poll for it.
func registered(hub *Hub, driverID types.ID) *client {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.clients[driverID]
}

func waitRegistered(t *testing.T, hub *Hub, driverID types.ID, not *client) *client {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c := registered(hub, driverID); c != nil && c != not {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("driver %s never registered", driverID)
	return nil
}

func TestNotifyOfferDeliversToConnectedDriver(t *testing.T) {
	hub, srv := startHub(t)
	conn := dialDriver(t, srv, "d1")

	offer := dispatch.Offer{
		RequestID:      "req_1",
		Pickup:         types.Point{Lat: 14.5995, Lng: 120.9842},
		Destination:    types.Point{Lat: 14.5547, Lng: 121.0244},
		VehicleClass:   "standard",
		Passengers:     1,
		DistanceMeters: 420,
	}
	waitRegistered(t, hub, "d1", nil)
	hub.NotifyOffer(context.Background(), "d1", offer)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got struct {
		Type  string         `json:"type"`
		Offer dispatch.Offer `json:"offer"`
	}
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("unmarshal %q: %v", msg, err)
	}
	if got.Type != "ride_offer" {
		t.Fatalf("expected ride_offer, got %s", got.Type)
	}
	if got.Offer.RequestID != "req_1" {
		t.Fatalf("expected req_1, got %s", got.Offer.RequestID)
	}
}

func TestNotifyOfferDropsWhenNotConnected(t *testing.T) {
	hub, _ := startHub(t)
	// Must not panic or block.
	hub.NotifyOffer(context.Background(), "d_absent", dispatch.Offer{RequestID: "req_1"})
}

func TestReconnectReplacesConnection(t *testing.T) {
	hub, srv := startHub(t)
	dialDriver(t, srv, "d1")
	first := waitRegistered(t, hub, "d1", nil)

	conn2 := dialDriver(t, srv, "d1")
	waitRegistered(t, hub, "d1", first)

	hub.NotifyOffer(context.Background(), "d1", dispatch.Offer{RequestID: "req_2"})
	conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn2.ReadMessage()
	if err != nil {
		t.Fatalf("read on replacement connection: %v", err)
	}
	if !strings.Contains(string(msg), "req_2") {
		t.Fatalf("unexpected message: %s", msg)
	}
}
