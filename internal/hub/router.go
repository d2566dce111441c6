// ABOUTME: Protocol dispatcher: classifies inbound frames and invokes the
// ABOUTME: matching registry or agent operation.

package hub

import (
	"context"
	"log/slog"

	"github.com/socksthoughtshop/parlor/internal/protocol"
)

// AgentHandler is the agent participant as seen by the router. Frames
// addressed to the agent are delivered by direct invocation instead of a
// network write. Implemented by *bot.Agent.
type AgentHandler interface {
	Name() string
	HandleChat(ctx context.Context, msg protocol.ChatMessage)
	HandleButtonClick(ctx context.Context, click protocol.ButtonClick)
	HandleInvite(ctx context.Context, from string)
	HandlePubkeyRequest(ctx context.Context, from string)
	HandlePubkeyResponse(ctx context.Context, from, publicKey string)
	HandlePMMessage(ctx context.Context, from, ciphertext string)
	HandlePMDisconnect(ctx context.Context, from string)
}

// Router dispatches inbound frames. Each connection's frames arrive on its
// own goroutine; the registries and agent serialize internally, so dispatch
// itself holds no locks.
type Router struct {
	registry *Registry
	private  *PrivateRegistry
	agent    AgentHandler
	logger   *slog.Logger
}

// NewRouter wires the dispatcher. agent may be nil (no virtual participant).
func NewRouter(registry *Registry, private *PrivateRegistry, agent AgentHandler) *Router {
	return &Router{
		registry: registry,
		private:  private,
		agent:    agent,
		logger:   slog.Default().With("component", "router"),
	}
}

// Dispatch routes one inbound frame from the named sender. Malformed frames
// earn the sender an error frame but never a drop; no failure here may
// terminate the hub.
func (r *Router) Dispatch(ctx context.Context, from string, f protocol.Frame) {
	switch f.Type {
	case protocol.TypeChatMessage:
		var msg protocol.ChatMessage
		if err := f.Payload(&msg); err != nil {
			r.reject(from, err)
			return
		}
		msg.User = from
		r.registry.Broadcast(protocol.New(protocol.TypeChatMessage, msg))
		if r.agent != nil {
			r.agent.HandleChat(ctx, msg)
		}

	case protocol.TypeButtonClick:
		var click protocol.ButtonClick
		if err := f.Payload(&click); err != nil {
			r.reject(from, err)
			return
		}
		click.User = from
		if r.agent != nil {
			r.agent.HandleButtonClick(ctx, click)
		}

	case protocol.TypePMInvite, protocol.TypePMAccept, protocol.TypePMDecline,
		protocol.TypePMDisconnect, protocol.TypePubkeyRequest:
		var ctl protocol.PMControl
		if err := f.Payload(&ctl); err != nil {
			r.reject(from, err)
			return
		}
		r.routeControl(ctx, from, f.Type, ctl.To)

	case protocol.TypePubkeyResp:
		var resp protocol.PubkeyResponse
		if err := f.Payload(&resp); err != nil {
			r.reject(from, err)
			return
		}
		r.private.RegisterKey(from, resp.PublicKey)
		if r.forAgent(resp.To) {
			r.agent.HandlePubkeyResponse(ctx, from, resp.PublicKey)
			return
		}
		r.private.SendTo(resp.To, protocol.New(protocol.TypePubkeyResp, protocol.PubkeyResponse{
			From:      from,
			PublicKey: resp.PublicKey,
		}))

	case protocol.TypePMMessage:
		var pm protocol.PMMessage
		if err := f.Payload(&pm); err != nil {
			r.reject(from, err)
			return
		}
		if r.forAgent(pm.To) {
			r.agent.HandlePMMessage(ctx, from, pm.Ciphertext)
			return
		}
		r.private.SendTo(pm.To, protocol.New(protocol.TypePMMessage, protocol.PMMessage{
			From:       from,
			Ciphertext: pm.Ciphertext,
		}))

	default:
		// Server-generated types (roster_update, bot_typing, streams) are
		// not accepted from clients.
		r.reject(from, protocol.ErrInvalidFrame)
	}
}

// routeControl forwards a private-channel control frame, intercepting frames
// addressed to the agent.
func (r *Router) routeControl(ctx context.Context, from string, t protocol.Type, to string) {
	if r.forAgent(to) {
		switch t {
		case protocol.TypePMInvite:
			r.agent.HandleInvite(ctx, from)
		case protocol.TypePubkeyRequest:
			r.agent.HandlePubkeyRequest(ctx, from)
		case protocol.TypePMDisconnect:
			r.agent.HandlePMDisconnect(ctx, from)
		}
		// accept/decline to the agent need no action: it initiates nothing.
		return
	}

	if t == protocol.TypePMDisconnect {
		r.private.ForgetKey(from)
	}
	r.private.SendTo(to, protocol.New(t, protocol.PMControl{From: from}))
}

// forAgent reports whether a frame addresses the agent participant.
func (r *Router) forAgent(to string) bool {
	return r.agent != nil && to == r.agent.Name()
}

// reject tells the offending connection its frame could not be processed.
func (r *Router) reject(from string, err error) {
	r.logger.Warn("rejecting frame", "from", from, "error", err)
	r.registry.Unicast(from, protocol.New(protocol.TypeError, protocol.ErrorFrame{
		Message: "could not process that frame",
	}))
}
