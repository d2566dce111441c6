// ABOUTME: Tests for the websocket endpoint: token auth, welcome and roster
// ABOUTME: delivery, and malformed-frame handling over a live connection.

package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socksthoughtshop/parlor/internal/auth"
	"github.com/socksthoughtshop/parlor/internal/protocol"
)

func TestWSHandler_RejectsMissingToken(t *testing.T) {
	verifier, err := auth.NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)

	srv := newWSServer(t, verifier)
	resp, err := http.Get(srv)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSHandler_WelcomeRosterAndInvalidFrame(t *testing.T) {
	verifier, err := auth.NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)

	srv := newWSServer(t, verifier)
	token, err := verifier.Generate("alice", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv, "http") + "?token=" + token
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer c.CloseNow()

	// Welcome arrives before the roster broadcast.
	frame := readFrame(t, ctx, c)
	require.Equal(t, protocol.TypeChatMessage, frame.Type)
	var welcome protocol.ChatMessage
	require.NoError(t, frame.Payload(&welcome))
	assert.Equal(t, "System", welcome.User)
	assert.Contains(t, welcome.Message, "alice")

	frame = readFrame(t, ctx, c)
	require.Equal(t, protocol.TypeRosterUpdate, frame.Type)
	var roster protocol.RosterUpdate
	require.NoError(t, frame.Payload(&roster))
	assert.Contains(t, roster.Users, "alice")

	// Malformed input earns an error frame, not a drop.
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("not json")))
	frame = readFrame(t, ctx, c)
	assert.Equal(t, protocol.TypeError, frame.Type)

	// The connection still works.
	chat := protocol.New(protocol.TypeChatMessage, protocol.ChatMessage{Message: "hello room"})
	data, err := json.Marshal(chat)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
	frame = readFrame(t, ctx, c)
	require.Equal(t, protocol.TypeChatMessage, frame.Type)
}

func TestWSHandler_HeartbeatPrunesUnresponsivePeer(t *testing.T) {
	verifier, err := auth.NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)

	h := New(nil)
	handler := NewWSHandler(h, verifier, 50*time.Millisecond, 50*time.Millisecond)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	token, err := verifier.Generate("alice", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer c.CloseNow()

	require.Eventually(t, func() bool {
		return len(h.Registry.Roster()) == 1
	}, time.Second, 10*time.Millisecond)

	// The client never reads, so pings go unanswered; the hub prunes the
	// connection exactly as on an explicit disconnect.
	assert.Eventually(t, func() bool {
		return len(h.Registry.Roster()) == 0
	}, 3*time.Second, 25*time.Millisecond)
}

func newWSServer(t *testing.T, verifier auth.TokenVerifier) string {
	t.Helper()
	h := New(nil)
	handler := NewWSHandler(h, verifier, time.Minute, time.Second)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) protocol.Frame {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	frame, err := protocol.Decode(data)
	require.NoError(t, err)
	return frame
}
