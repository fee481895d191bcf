package realtime_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	cachemem "github.com/liveinsync/rentd/internal/cache/memory"
	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/ratelimit"
	"github.com/liveinsync/rentd/internal/realtime"
)

func newTestTransport(t *testing.T, cfg realtime.TransportConfig) (*realtime.Transport, *realtime.Registry, *httptest.Server) {
	t.Helper()

	users := identity.NewMemoryUserRepo()
	seed := []*identity.User{
		{ID: "owner-1", Email: "owner@example.com", Role: identity.RoleOwner},
		{ID: "tenant-1", Email: "tenant@example.com", Role: identity.RoleTenant, OwnerID: "owner-1"},
	}
	for _, u := range seed {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("seeding user: %v", err)
		}
	}

	reg := realtime.NewRegistry()
	tr := realtime.NewTransport(reg, users, cfg, nil, slog.New(slog.NewTextHandler(nopWriter{}, nil)))

	srv := httptest.NewServer(http.HandlerFunc(tr.HandleWS))
	t.Cleanup(srv.Close)
	t.Cleanup(tr.CloseAll)

	return tr, reg, srv
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendHandshake(t *testing.T, ws *websocket.Conn, userID, role string) {
	t.Helper()
	payload, _ := json.Marshal(realtime.HandshakeFrame{UserID: userID, Role: role})
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("sending handshake: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestTransport_HandshakeRegisters(t *testing.T) {
	_, reg, srv := newTestTransport(t, realtime.DefaultTransportConfig())

	ws := dialWS(t, srv)
	sendHandshake(t, ws, "owner-1", identity.RoleOwner)

	waitFor(t, func() bool {
		return len(reg.ConnectionsFor("owner-1")) == 1
	}, "connection was not registered after a valid handshake")
}

func TestTransport_HandshakeUnknownUser(t *testing.T) {
	_, reg, srv := newTestTransport(t, realtime.DefaultTransportConfig())

	ws := dialWS(t, srv)
	sendHandshake(t, ws, "nobody", identity.RoleOwner)

	// The server closes the socket without ever registering it.
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the connection")
	}
	if reg.Len() != 0 {
		t.Errorf("failed handshake must never register, got %d entries", reg.Len())
	}
}

func TestTransport_HandshakeRoleMismatch(t *testing.T) {
	_, reg, srv := newTestTransport(t, realtime.DefaultTransportConfig())

	ws := dialWS(t, srv)
	sendHandshake(t, ws, "tenant-1", identity.RoleOwner)

	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the connection")
	}
	if reg.Len() != 0 {
		t.Errorf("role mismatch must never register, got %d entries", reg.Len())
	}
}

func TestTransport_HandshakeTimeout(t *testing.T) {
	cfg := realtime.DefaultTransportConfig()
	cfg.HandshakeTimeout = 100 * time.Millisecond
	_, reg, srv := newTestTransport(t, cfg)

	ws := dialWS(t, srv)
	// Send nothing: the server must force-close after the window.

	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the idle connection")
	}
	if reg.Len() != 0 {
		t.Errorf("timed-out handshake must never register, got %d entries", reg.Len())
	}
}

func TestTransport_PushDeliversFrame(t *testing.T) {
	tr, reg, srv := newTestTransport(t, realtime.DefaultTransportConfig())

	ws := dialWS(t, srv)
	sendHandshake(t, ws, "tenant-1", identity.RoleTenant)

	var connID string
	waitFor(t, func() bool {
		conns := reg.ConnectionsFor("tenant-1")
		if len(conns) == 1 {
			connID = conns[0]
			return true
		}
		return false
	}, "connection was not registered")

	frame := realtime.Frame{
		Event: realtime.FrameMaintenanceNotification,
		Data: realtime.Notification{
			Type:    realtime.TypeStatusUpdate,
			Message: "Maintenance request \"Leaky faucet\" has been in_progress",
			Request: sampleRequest(),
		},
	}
	if err := tr.Push(connID, frame); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("reading pushed frame: %v", err)
	}

	var got struct {
		Event string `json:"event"`
		Data  struct {
			Type    string `json:"type"`
			Message string `json:"message"`
			Request struct {
				ID string `json:"id"`
			} `json:"request"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if got.Event != realtime.FrameMaintenanceNotification {
		t.Errorf("expected maintenanceNotification, got %s", got.Event)
	}
	if got.Data.Type != realtime.TypeStatusUpdate {
		t.Errorf("expected status_update, got %s", got.Data.Type)
	}
	if got.Data.Request.ID != "req-1" {
		t.Errorf("frame should carry the full record, got id %q", got.Data.Request.ID)
	}
}

func TestTransport_PushUnknownConn(t *testing.T) {
	tr, _, _ := newTestTransport(t, realtime.DefaultTransportConfig())

	err := tr.Push("no-such-conn", realtime.Frame{Event: realtime.FrameMaintenanceUpdate})
	if err != realtime.ErrConnNotFound {
		t.Errorf("expected ErrConnNotFound, got %v", err)
	}
}

func TestTransport_ConnectQuota(t *testing.T) {
	users := identity.NewMemoryUserRepo()
	reg := realtime.NewRegistry()

	c := cachemem.New(time.Minute, 0)
	t.Cleanup(func() { c.Close() })
	limiter := ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		KeyPrefix:         "ws-handshake:",
	})

	tr := realtime.NewTransport(reg, users, realtime.DefaultTransportConfig(), limiter, slog.New(slog.NewTextHandler(nopWriter{}, nil)))
	srv := httptest.NewServer(http.HandlerFunc(tr.HandleWS))
	t.Cleanup(srv.Close)
	t.Cleanup(tr.CloseAll)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	for i := 0; i < 2; i++ {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %d should pass the quota: %v", i, err)
		}
		ws.Close()
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("third dial should be rejected before the upgrade")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected a 429 response, got %+v", resp)
	}
}

func TestTransport_DisconnectUnregisters(t *testing.T) {
	_, reg, srv := newTestTransport(t, realtime.DefaultTransportConfig())

	ws := dialWS(t, srv)
	sendHandshake(t, ws, "owner-1", identity.RoleOwner)

	waitFor(t, func() bool {
		return len(reg.ConnectionsFor("owner-1")) == 1
	}, "connection was not registered")

	ws.Close()

	waitFor(t, func() bool {
		return len(reg.ConnectionsFor("owner-1")) == 0
	}, "connection was not unregistered after disconnect")
}
