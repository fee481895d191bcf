package realtime_test

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/realtime"
)

func readFrames(t *testing.T, ws *websocket.Conn, n int) map[string]json.RawMessage {
	t.Helper()
	frames := make(map[string]json.RawMessage, n)
	for i := 0; i < n; i++ {
		ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, payload, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("reading frame %d: %v", i, err)
		}
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("decoding frame %d: %v", i, err)
		}
		frames[frame.Event] = frame.Data
	}
	return frames
}

func TestHub_EndToEnd(t *testing.T) {
	tr, reg, srv := newTestTransport(t, realtime.DefaultTransportConfig())

	bus := realtime.NewBus()
	defer bus.Close()
	hub := realtime.NewHub(bus, reg, tr, slog.New(slog.NewTextHandler(nopWriter{}, nil)))
	hub.Start()
	defer hub.Stop()

	ownerWS := dialWS(t, srv)
	sendHandshake(t, ownerWS, "owner-1", identity.RoleOwner)
	tenantWS := dialWS(t, srv)
	sendHandshake(t, tenantWS, "tenant-1", identity.RoleTenant)

	waitFor(t, func() bool {
		return len(reg.ConnectionsFor("owner-1")) == 1 && len(reg.ConnectionsFor("tenant-1")) == 1
	}, "both parties should be registered")

	hub.RequestCreated(sampleRequest())

	// Each party gets the full record plus its targeted notification.
	ownerFrames := readFrames(t, ownerWS, 2)
	tenantFrames := readFrames(t, tenantWS, 2)

	if _, ok := ownerFrames[realtime.FrameMaintenanceUpdate]; !ok {
		t.Error("owner should receive a maintenanceUpdate frame")
	}
	if _, ok := tenantFrames[realtime.FrameMaintenanceUpdate]; !ok {
		t.Error("tenant should receive a maintenanceUpdate frame")
	}

	var ownerNote realtime.Notification
	if err := json.Unmarshal(ownerFrames[realtime.FrameMaintenanceNotification], &ownerNote); err != nil {
		t.Fatalf("decoding owner notification: %v", err)
	}
	if ownerNote.Type != realtime.TypeNewRequest {
		t.Errorf("owner should get new_request, got %s", ownerNote.Type)
	}

	var tenantNote realtime.Notification
	if err := json.Unmarshal(tenantFrames[realtime.FrameMaintenanceNotification], &tenantNote); err != nil {
		t.Fatalf("decoding tenant notification: %v", err)
	}
	if tenantNote.Type != realtime.TypeRequestCreated {
		t.Errorf("tenant should get request_created, got %s", tenantNote.Type)
	}
}

func TestHub_StatusChangedTargetsCounterparty(t *testing.T) {
	tr, reg, srv := newTestTransport(t, realtime.DefaultTransportConfig())

	bus := realtime.NewBus()
	defer bus.Close()
	hub := realtime.NewHub(bus, reg, tr, slog.New(slog.NewTextHandler(nopWriter{}, nil)))
	hub.Start()
	defer hub.Stop()

	tenantWS := dialWS(t, srv)
	sendHandshake(t, tenantWS, "tenant-1", identity.RoleTenant)

	waitFor(t, func() bool {
		return len(reg.ConnectionsFor("tenant-1")) == 1
	}, "tenant should be registered")

	// Owner acts while offline themselves; only the tenant is connected.
	hub.StatusChanged(sampleRequest(), identity.RoleOwner)

	frames := readFrames(t, tenantWS, 2)
	var note realtime.Notification
	if err := json.Unmarshal(frames[realtime.FrameMaintenanceNotification], &note); err != nil {
		t.Fatalf("decoding notification: %v", err)
	}
	if note.Type != realtime.TypeStatusUpdate {
		t.Errorf("expected status_update, got %s", note.Type)
	}
}

func TestHub_OfflineRecipientIsSilent(t *testing.T) {
	tr, reg, _ := newTestTransport(t, realtime.DefaultTransportConfig())

	bus := realtime.NewBus()
	defer bus.Close()
	hub := realtime.NewHub(bus, reg, tr, slog.New(slog.NewTextHandler(nopWriter{}, nil)))
	hub.Start()
	defer hub.Stop()

	// Nobody connected: publishing must not block, panic, or error out.
	hub.RequestCreated(sampleRequest())
	hub.StatusChanged(sampleRequest(), identity.RoleTenant)

	// Give the dispatch goroutine a moment to drain.
	time.Sleep(50 * time.Millisecond)
	hub.Stop()
}
