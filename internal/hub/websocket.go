// ABOUTME: Websocket transport adapter: token-authenticated accept, frame
// ABOUTME: read loop, and ping-based liveness with bounded waits.

package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/socksthoughtshop/parlor/internal/auth"
	"github.com/socksthoughtshop/parlor/internal/protocol"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatTimeout  = 10 * time.Second
	writeTimeout             = 10 * time.Second
)

// wsConn adapts a websocket connection to the registry's Conn interface.
// Writes are serialized so frames for one recipient keep assembler order.
type wsConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func (w *wsConn) Send(f protocol.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

// WSHandler upgrades HTTP requests to hub connections.
type WSHandler struct {
	hub      *Hub
	verifier auth.TokenVerifier
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewWSHandler builds the websocket endpoint. Zero heartbeat values take the
// defaults.
func NewWSHandler(h *Hub, verifier auth.TokenVerifier, heartbeatInterval, heartbeatTimeout time.Duration) *WSHandler {
	if heartbeatInterval <= 0 {
		heartbeatInterval = defaultHeartbeatInterval
	}
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = defaultHeartbeatTimeout
	}
	return &WSHandler{
		hub:      h,
		verifier: verifier,
		interval: heartbeatInterval,
		timeout:  heartbeatTimeout,
		logger:   slog.Default().With("component", "ws"),
	}
}

// ServeHTTP authenticates the session token, upgrades the connection, and
// runs the read loop until the peer goes away.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	identity, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn("rejected connection", "error", err)
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "identity", identity, "error", err)
		return
	}

	conn := &wsConn{c: c}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := uuid.NewString()
	h.logger.Info("connection established", "session", session, "identity", identity, "addr", clientAddr(r))

	h.hub.Join(ctx, identity, conn, clientAddr(r), userAgent(r))
	defer h.hub.Leave(context.WithoutCancel(ctx), identity, conn)

	go h.heartbeat(ctx, cancel, session, identity, c)
	h.readLoop(ctx, session, identity, c)
}

// readLoop decodes inbound frames and hands them to the router. A malformed
// frame earns an error frame; only transport errors end the loop.
func (h *WSHandler) readLoop(ctx context.Context, session, identity string, c *websocket.Conn) {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			h.logger.Info("connection closed", "session", session, "identity", identity, "error", err)
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			h.hub.Registry.Unicast(identity, protocol.New(protocol.TypeError, protocol.ErrorFrame{
				Message: "could not process that frame",
			}))
			continue
		}
		h.hub.Router.Dispatch(ctx, identity, frame)
	}
}

// heartbeat pings the peer at a fixed cadence with a bounded wait; an
// unresponsive connection is pruned exactly as on explicit disconnect.
func (h *WSHandler) heartbeat(ctx context.Context, cancel context.CancelFunc, session, identity string, c *websocket.Conn) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, h.timeout)
			err := c.Ping(pingCtx)
			pingCancel()
			if err != nil {
				h.logger.Warn("heartbeat failed, closing connection", "session", session, "identity", identity, "error", err)
				cancel()
				_ = c.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}

// clientAddr prefers the X-Forwarded-For chain's first hop over the socket
// address, falling back to "unknown".
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func userAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return "unknown"
}
