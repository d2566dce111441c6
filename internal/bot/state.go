// ABOUTME: Per-participant conversation state owned by the agent.
// ABOUTME: Typed records created lazily on first interaction.

package bot

import "github.com/socksthoughtshop/parlor/internal/retrieval"

// userState tracks one participant's conversation with the agent. Created
// lazily on first interaction, dropped on private-channel disconnect.
type userState struct {
	greeted           bool
	awaitingSelection bool
	pending           []retrieval.Project

	// plaintext replies queued until the peer's public key arrives
	deferred []string
}

// state returns the participant's record, creating it on first access.
// Callers must hold a.mu.
func (a *Agent) state(user string) *userState {
	st, ok := a.users[user]
	if !ok {
		st = &userState{}
		a.users[user] = st
	}
	return st
}
