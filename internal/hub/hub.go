// ABOUTME: Hub context object constructed once at process start and shared by
// ABOUTME: every connection task; also the agent's frame sender.

package hub

import (
	"context"
	"log/slog"

	"github.com/socksthoughtshop/parlor/internal/protocol"
	"github.com/socksthoughtshop/parlor/internal/store"
)

// Hub holds the shared state of one chat-hub process: both registries and
// the router. There are no package-level singletons; tests build a fresh Hub
// each.
type Hub struct {
	Registry *Registry
	Private  *PrivateRegistry
	Router   *Router

	records store.Store
	logger  *slog.Logger
}

// New builds a hub with empty registries and no agent attached. records may
// be nil (no persistence).
func New(records store.Store) *Hub {
	h := &Hub{
		Registry: NewRegistry(),
		Private:  NewPrivateRegistry(),
		records:  records,
		logger:   slog.Default().With("component", "hub"),
	}
	h.Router = NewRouter(h.Registry, h.Private, nil)
	return h
}

// AttachAgent registers the agent participant in both registries under its
// identity with a no-op sink handle, and routes frames addressed to it.
func (h *Hub) AttachAgent(agent AgentHandler) {
	h.Router = NewRouter(h.Registry, h.Private, agent)
	sink := nopConn{}
	h.Private.Connect(agent.Name(), sink)
	h.Registry.Connect(agent.Name(), sink)
	h.logger.Info("agent participant online", "name", agent.Name())
}

// Broadcast implements bot.Sender.
func (h *Hub) Broadcast(f protocol.Frame) {
	h.Registry.Broadcast(f)
}

// Whisper implements bot.Sender.
func (h *Hub) Whisper(to string, f protocol.Frame) {
	h.Private.SendTo(to, f)
}

// Join admits an authenticated participant: welcome message first, then
// registration in both registries (which broadcasts the roster), and a
// best-effort audit record.
func (h *Hub) Join(ctx context.Context, identity string, conn Conn, remoteAddr, userAgent string) {
	if err := conn.Send(protocol.New(protocol.TypeChatMessage, protocol.ChatMessage{
		User:    "System",
		Message: "Welcome to the chat, " + identity + "!",
	})); err != nil {
		h.logger.Warn("welcome send failed", "identity", identity, "error", err)
	}

	h.Private.Connect(identity, conn)
	h.Registry.Connect(identity, conn)

	if h.records != nil {
		if err := h.records.RecordConnection(ctx, identity, remoteAddr, userAgent); err != nil {
			h.logger.Warn("recording connection", "identity", identity, "error", err)
		}
	}
}

// Leave removes a participant's departed connection from both registries and
// tells the agent so it can drop any private-channel state for the pair.
// Departure is handle-scoped: when conn has already been replaced by a
// reconnect under the same identity, the replacement's registrations and the
// agent's pair state stay intact.
func (h *Hub) Leave(ctx context.Context, identity string, conn Conn) {
	if !h.Registry.Disconnect(identity, conn) {
		return
	}
	h.Private.Disconnect(identity, conn)
	if h.Router.agent != nil && identity != h.Router.agent.Name() {
		h.Router.agent.HandlePMDisconnect(ctx, identity)
	}
}

// nopConn is the agent's connection handle: it "receives" by direct method
// invocation, so sends into it vanish.
type nopConn struct{}

func (nopConn) Send(protocol.Frame) error { return nil }
func (nopConn) Close() error              { return nil }
