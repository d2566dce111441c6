// ABOUTME: Private-channel registry: per-identity connection handles plus the
// ABOUTME: published public keys learned during key exchange.

package hub

import (
	"log/slog"
	"sync"

	"github.com/socksthoughtshop/parlor/internal/protocol"
)

// PrivateRegistry routes private-channel frames. It holds connection handles
// separately from the public keys participants have published, so a key can
// outlive a momentary transport hiccup; keys are invalidated on channel
// disconnect so a reconnecting peer re-runs the exchange.
//
// The registry only ever handles opaque ciphertext: plaintext exists at the
// two endpoints holding the private keys.
type PrivateRegistry struct {
	mu     sync.Mutex
	conns  map[string]Conn
	keys   map[string]string
	logger *slog.Logger
}

// NewPrivateRegistry creates an empty private registry.
func NewPrivateRegistry() *PrivateRegistry {
	return &PrivateRegistry{
		conns:  make(map[string]Conn),
		keys:   make(map[string]string),
		logger: slog.Default().With("component", "private"),
	}
}

// Connect registers the handle, replacing any prior one for the identity. A
// replaced handle is closed.
func (r *PrivateRegistry) Connect(identity string, conn Conn) {
	r.mu.Lock()
	old := r.conns[identity]
	r.conns[identity] = conn
	r.mu.Unlock()

	if old != nil && old != conn {
		_ = old.Close()
	}
}

// Disconnect removes the handle and invalidates the identity's published key.
// When a different handle has since replaced conn the channel belongs to the
// replacement and nothing changes. Reports whether the channel was torn down.
func (r *PrivateRegistry) Disconnect(identity string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[identity]; ok && current != conn {
		return false
	}
	delete(r.conns, identity)
	delete(r.keys, identity)
	return true
}

// SendTo delivers a frame on one identity's private channel. A send failure
// prunes the handle and is not raised.
func (r *PrivateRegistry) SendTo(identity string, f protocol.Frame) {
	r.mu.Lock()
	conn, ok := r.conns[identity]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("no private channel for recipient", "identity", identity)
		return
	}

	if err := conn.Send(f); err != nil {
		r.logger.Warn("private send failed, pruning", "identity", identity, "error", err)
		r.mu.Lock()
		if current, ok := r.conns[identity]; ok && current == conn {
			delete(r.conns, identity)
		}
		r.mu.Unlock()
		_ = conn.Close()
	}
}

// RegisterKey records a participant's published public key.
func (r *PrivateRegistry) RegisterKey(identity, publicKey string) {
	r.mu.Lock()
	r.keys[identity] = publicKey
	r.mu.Unlock()
}

// Key returns a participant's published public key, if known.
func (r *PrivateRegistry) Key(identity string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[identity]
	return key, ok
}

// ForgetKey invalidates a participant's published key.
func (r *PrivateRegistry) ForgetKey(identity string) {
	r.mu.Lock()
	delete(r.keys, identity)
	r.mu.Unlock()
}
