package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/liveinsync/rentd/internal/api"
	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/ratelimit"
)

var (
	// ErrConnNotFound is returned by Push for unknown or already-closed
	// connections.
	ErrConnNotFound = errors.New("connection not found")

	// ErrIdentityVerification is the handshake failure: the claimed
	// identity does not exist or its role does not match.
	ErrIdentityVerification = errors.New("identity verification failed")
)

// HandshakeFrame is the first frame a client must send after connecting.
type HandshakeFrame struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Frame is the envelope for every server-to-client push.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// conn wraps one websocket with a write lock. gorilla connections allow a
// single concurrent writer; pushes for different recipients never contend.
type conn struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// TransportConfig holds transport tunables.
type TransportConfig struct {
	// HandshakeTimeout bounds how long a connection may stay
	// unauthenticated before it is force-closed.
	HandshakeTimeout time.Duration

	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration
}

// DefaultTransportConfig returns production defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Transport owns the websocket connection lifecycle and the
// authentication handshake. It is the only component that calls
// Registry.Register/Unregister.
type Transport struct {
	registry *Registry
	users    identity.UserRepo
	config   TransportConfig
	upgrader websocket.Upgrader
	limiter  *ratelimit.Limiter // nil disables the per-host connect quota
	logger   *slog.Logger

	mu    sync.RWMutex
	conns map[string]*conn
}

// NewTransport creates a websocket transport bound to the registry.
// Identity claims in the handshake are verified against users. limiter,
// if non-nil, caps connection attempts per remote host.
func NewTransport(registry *Registry, users identity.UserRepo, cfg TransportConfig, limiter *ratelimit.Limiter, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		registry: registry,
		users:    users,
		config:   cfg,
		limiter:  limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The mobile clients connect from app webviews without a
				// stable origin; the handshake is the auth boundary.
				return true
			},
		},
		logger: logger,
		conns:  make(map[string]*conn),
	}
}

// HandleWS handles GET /ws: upgrades the connection and runs its session.
// Connection attempts are throttled per remote host before the upgrade.
func (t *Transport) HandleWS(w http.ResponseWriter, r *http.Request) {
	if t.limiter != nil {
		if result, err := t.limiter.Allow(r.Context(), remoteHost(r)); err == nil && !result.Allowed {
			api.WriteError(w, http.StatusTooManyRequests, api.ReasonRateLimited, "too many connection attempts")
			return
		}
	}

	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// The handler goroutine carries the session; chi already runs each
	// request on its own goroutine.
	t.serve(r.Context(), ws)
}

// serve runs one connection: handshake, register, then read until
// disconnect. Unregister runs exactly once on any exit path.
func (t *Transport) serve(ctx context.Context, ws *websocket.Conn) {
	connID := uuid.NewString()

	entry, err := t.handshake(ctx, ws)
	if err != nil {
		t.logger.Info("websocket handshake rejected", "conn_id", connID, "error", err)
		ws.Close()
		return
	}

	c := &conn{id: connID, ws: ws}
	t.mu.Lock()
	t.conns[connID] = c
	t.mu.Unlock()

	t.registry.Register(connID, entry.UserID, entry.Role)
	t.logger.Info("websocket connection authenticated",
		"conn_id", connID,
		"user_id", entry.UserID,
		"role", entry.Role,
	)

	defer func() {
		t.mu.Lock()
		delete(t.conns, connID)
		t.mu.Unlock()

		t.registry.Unregister(connID)
		ws.Close()
		t.logger.Info("websocket connection closed", "conn_id", connID, "user_id", entry.UserID)
	}()

	// The client sends nothing meaningful after the handshake; the read
	// loop exists to detect disconnects and drain control frames.
	ws.SetReadDeadline(time.Time{})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				t.logger.Warn("websocket read error", "conn_id", connID, "error", err)
			}
			return
		}
	}
}

// remoteHost returns the client host without the ephemeral port.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handshake reads and verifies the first frame within the handshake
// window. A connection that fails here is never registered.
func (t *Transport) handshake(ctx context.Context, ws *websocket.Conn) (*HandshakeFrame, error) {
	if err := ws.SetReadDeadline(time.Now().Add(t.config.HandshakeTimeout)); err != nil {
		return nil, err
	}

	_, payload, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	var frame HandshakeFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, err
	}
	if frame.UserID == "" || !identity.IsValidRole(frame.Role) {
		return nil, ErrIdentityVerification
	}

	user, err := t.users.Get(ctx, frame.UserID)
	if err != nil || user.Role != frame.Role {
		return nil, ErrIdentityVerification
	}

	return &frame, nil
}

// Push sends one frame to one connection, best effort. A failure affects
// only that connection and is reported to the caller for logging, never
// retried.
func (t *Transport) Push(connID string, frame Frame) error {
	t.mu.RLock()
	c, ok := t.conns[connID]
	t.mu.RUnlock()

	if !ok {
		return ErrConnNotFound
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// CloseAll force-closes every connection. Used during shutdown.
func (t *Transport) CloseAll() {
	t.mu.Lock()
	conns := make([]*conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		c.ws.Close()
	}
}
