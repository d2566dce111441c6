// ABOUTME: Tests for frame dispatch: broadcast fanout, private routing, agent
// ABOUTME: interception, invalid-frame handling, and the end-to-end scenario.

package hub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socksthoughtshop/parlor/internal/bot"
	"github.com/socksthoughtshop/parlor/internal/cache"
	"github.com/socksthoughtshop/parlor/internal/generate"
	"github.com/socksthoughtshop/parlor/internal/privacy"
	"github.com/socksthoughtshop/parlor/internal/protocol"
	"github.com/socksthoughtshop/parlor/internal/retrieval"
)

type stubRetriever struct {
	docs []retrieval.Document
}

func (r *stubRetriever) Query(ctx context.Context, text string, topK int, category string) ([]retrieval.Document, error) {
	return r.docs, nil
}

type stubGenerator struct {
	fragments []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (<-chan generate.Chunk, error) {
	ch := make(chan generate.Chunk, len(g.fragments)+1)
	for _, f := range g.fragments {
		ch <- generate.Chunk{Text: f}
	}
	ch <- generate.Chunk{Done: true}
	close(ch)
	return ch, nil
}

func newTestHub(t *testing.T, gen *stubGenerator) (*Hub, *bot.Agent) {
	t.Helper()
	h := New(nil)
	codec, err := privacy.NewCodec()
	require.NoError(t, err)
	ret := &stubRetriever{docs: []retrieval.Document{
		{Text: "Project: Chat Hub\nDescription: A realtime chat server.\nSkills: Go, WebSockets"},
	}}
	agent := bot.New(h, codec, cache.New(), ret, gen, bot.WithTypingDelay(0, 0))
	h.AttachAgent(agent)
	return h, agent
}

func TestRouter_ChatMessageFansOut(t *testing.T) {
	h, _ := newTestHub(t, &stubGenerator{})
	ctx := context.Background()

	alice, bob := &fakeConn{}, &fakeConn{}
	h.Join(ctx, "alice", alice, "10.0.0.1", "ua")
	h.Join(ctx, "bob", bob, "10.0.0.2", "ua")

	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypeChatMessage, protocol.ChatMessage{Message: "hi all"}))

	// Both participants see the message, stamped with the sender identity.
	for _, conn := range []*fakeConn{alice, bob} {
		msgs := conn.received(protocol.TypeChatMessage)
		require.NotEmpty(t, msgs)
		var msg protocol.ChatMessage
		require.NoError(t, msgs[len(msgs)-1].Payload(&msg))
		assert.Equal(t, "alice", msg.User)
		assert.Equal(t, "hi all", msg.Message)
	}
}

func TestRouter_SenderIdentityCannotBeSpoofed(t *testing.T) {
	h, _ := newTestHub(t, &stubGenerator{})
	ctx := context.Background()

	bob := &fakeConn{}
	h.Join(ctx, "alice", &fakeConn{}, "10.0.0.1", "ua")
	h.Join(ctx, "bob", bob, "10.0.0.2", "ua")

	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypeChatMessage, protocol.ChatMessage{User: "bob", Message: "forged"}))

	msgs := bob.received(protocol.TypeChatMessage)
	require.NotEmpty(t, msgs)
	var msg protocol.ChatMessage
	require.NoError(t, msgs[len(msgs)-1].Payload(&msg))
	assert.Equal(t, "alice", msg.User)
}

func TestRouter_PrivateChannelHandshakeAndMessage(t *testing.T) {
	h, _ := newTestHub(t, &stubGenerator{})
	ctx := context.Background()

	alice, bob := &fakeConn{}, &fakeConn{}
	h.Join(ctx, "alice", alice, "10.0.0.1", "ua")
	h.Join(ctx, "bob", bob, "10.0.0.2", "ua")

	// Invite and accept.
	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypePMInvite, protocol.PMControl{To: "bob"}))
	require.Len(t, bob.received(protocol.TypePMInvite), 1)
	h.Router.Dispatch(ctx, "bob", protocol.New(protocol.TypePMAccept, protocol.PMControl{To: "alice"}))
	require.Len(t, alice.received(protocol.TypePMAccept), 1)

	// Key exchange both ways; the hub records the published keys.
	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypePubkeyRequest, protocol.PMControl{To: "bob"}))
	h.Router.Dispatch(ctx, "bob", protocol.New(protocol.TypePubkeyResp, protocol.PubkeyResponse{To: "alice", PublicKey: "bob-key"}))
	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypePubkeyResp, protocol.PubkeyResponse{To: "bob", PublicKey: "alice-key"}))

	key, ok := h.Private.Key("bob")
	require.True(t, ok)
	assert.Equal(t, "bob-key", key)

	resps := alice.received(protocol.TypePubkeyResp)
	require.Len(t, resps, 1)
	var pk protocol.PubkeyResponse
	require.NoError(t, resps[0].Payload(&pk))
	assert.Equal(t, "bob", pk.From)
	assert.Equal(t, "bob-key", pk.PublicKey)

	// Ciphertext passes through opaque.
	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypePMMessage, protocol.PMMessage{To: "bob", Ciphertext: "b64-opaque"}))
	pms := bob.received(protocol.TypePMMessage)
	require.Len(t, pms, 1)
	var pm protocol.PMMessage
	require.NoError(t, pms[0].Payload(&pm))
	assert.Equal(t, "alice", pm.From)
	assert.Equal(t, "b64-opaque", pm.Ciphertext)

	// Disconnect invalidates the sender's published key.
	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypePMDisconnect, protocol.PMControl{To: "bob"}))
	require.Len(t, bob.received(protocol.TypePMDisconnect), 1)
	_, ok = h.Private.Key("alice")
	assert.False(t, ok)
}

func TestRouter_AgentAutoAcceptsInvite(t *testing.T) {
	h, agent := newTestHub(t, &stubGenerator{})
	ctx := context.Background()

	alice := &fakeConn{}
	h.Join(ctx, "alice", alice, "10.0.0.1", "ua")

	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypePMInvite, protocol.PMControl{To: agent.Name()}))

	require.Len(t, alice.received(protocol.TypePMAccept), 1)
	require.Len(t, alice.received(protocol.TypePubkeyRequest), 1)
}

func TestRouter_InvalidFrameToldNotDropped(t *testing.T) {
	h, _ := newTestHub(t, &stubGenerator{})
	ctx := context.Background()

	alice := &fakeConn{}
	h.Join(ctx, "alice", alice, "10.0.0.1", "ua")

	// Clients may not send server-generated frame types.
	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypeRosterUpdate, protocol.RosterUpdate{Users: []string{"x"}}))

	require.Len(t, alice.received(protocol.TypeError), 1)
	assert.Contains(t, h.Registry.Roster(), "alice")
}

func TestRouter_EndToEndStreamedResponse(t *testing.T) {
	gen := &stubGenerator{fragments: []string{"I built a realtime chat hub. ", "It streams responses over websockets."}}
	h, _ := newTestHub(t, gen)
	ctx := context.Background()

	alice := &fakeConn{}
	h.Join(ctx, "alice", alice, "10.0.0.1", "ua")

	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypeChatMessage, protocol.ChatMessage{
		Message: "@ChatBot what projects have you built?",
	}))

	// Typing indicator wraps the stream.
	typing := alice.received(protocol.TypeBotTyping)
	require.Len(t, typing, 2)

	streams := alice.received(protocol.TypeBotStream)
	require.NotEmpty(t, streams)

	var chunks string
	var completions int
	var full string
	for i, f := range streams {
		var bs protocol.BotStream
		require.NoError(t, f.Payload(&bs))
		chunks += bs.Chunk
		if i == 0 {
			assert.True(t, bs.IsFirst)
		}
		if bs.IsComplete {
			completions++
			full = bs.FullMessage
			assert.Equal(t, len(streams)-1, i, "completion must be the final frame")
		}
	}

	assert.Equal(t, 1, completions)
	assert.Equal(t, chunks, full, "full message equals the chunk concatenation")
	assert.Equal(t, "I built a realtime chat hub. It streams responses over websockets.", full)
}

func TestHub_LeaveClearsAgentState(t *testing.T) {
	h, agent := newTestHub(t, &stubGenerator{})
	ctx := context.Background()

	alice := &fakeConn{}
	h.Join(ctx, "alice", alice, "10.0.0.1", "ua")
	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypePubkeyResp, protocol.PubkeyResponse{To: agent.Name(), PublicKey: "alice-key"}))

	h.Leave(ctx, "alice", alice)

	assert.NotContains(t, h.Registry.Roster(), "alice")
	_, ok := h.Private.Key("alice")
	assert.False(t, ok)
}

func TestHub_StaleLeaveKeepsReconnectedParticipant(t *testing.T) {
	h, agent := newTestHub(t, &stubGenerator{})
	ctx := context.Background()

	first := &fakeConn{}
	h.Join(ctx, "alice", first, "10.0.0.1", "ua")
	second := &fakeConn{}
	h.Join(ctx, "alice", second, "10.0.0.1", "ua")
	h.Router.Dispatch(ctx, "alice", protocol.New(protocol.TypePubkeyResp, protocol.PubkeyResponse{To: agent.Name(), PublicKey: "alice-key"}))

	// The first connection's read loop winds down after the reconnect; its
	// departure must not deregister the replacement or wipe the pair state.
	h.Leave(ctx, "alice", first)

	assert.Contains(t, h.Registry.Roster(), "alice")
	_, ok := h.Private.Key("alice")
	assert.True(t, ok)

	h.Broadcast(protocol.New(protocol.TypeChatMessage, protocol.ChatMessage{User: "bob", Message: "still here?"}))
	assert.NotEmpty(t, second.received(protocol.TypeChatMessage))

	h.Leave(ctx, "alice", second)
	assert.NotContains(t, h.Registry.Roster(), "alice")
}
