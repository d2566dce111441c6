// ABOUTME: The agent participant: a virtual user registered in the hub that
// ABOUTME: answers broadcast mentions and end-to-end-encrypted private messages.

package bot

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/socksthoughtshop/parlor/internal/cache"
	"github.com/socksthoughtshop/parlor/internal/generate"
	"github.com/socksthoughtshop/parlor/internal/privacy"
	"github.com/socksthoughtshop/parlor/internal/protocol"
	"github.com/socksthoughtshop/parlor/internal/retrieval"
	"github.com/socksthoughtshop/parlor/internal/store"
)

// DefaultName is the identity the agent registers under.
const DefaultName = "ChatBot"

// Sender delivers frames on behalf of the agent. The hub implements it;
// delivery failures self-heal inside the hub and are not surfaced here.
type Sender interface {
	// Broadcast fans a frame out on the open channel.
	Broadcast(f protocol.Frame)
	// Whisper delivers a frame on the recipient's private channel.
	Whisper(to string, f protocol.Frame)
}

// Recorder persists completed exchanges. Satisfied by store.SQLiteStore.
type Recorder interface {
	RecordExchange(ctx context.Context, ex store.Exchange) error
}

// Agent is the virtual participant. It is registered in both registries under
// one identity; its connection handle is a no-op sink, and it receives frames
// by direct method invocation from the router.
type Agent struct {
	name      string
	sender    Sender
	codec     *privacy.Codec
	cache     *cache.Cache
	retriever retrieval.Retriever
	generator generate.Generator
	recorder  Recorder
	logger    *slog.Logger

	typingMin time.Duration
	typingMax time.Duration
	topics    []string

	mu       sync.Mutex
	users    map[string]*userState
	peerKeys map[string]string
}

// Option configures an Agent.
type Option func(*Agent)

// WithName overrides the agent's identity.
func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

// WithTypingDelay bounds the randomized pause before each reply. Zero
// durations disable the pause.
func WithTypingDelay(min, max time.Duration) Option {
	return func(a *Agent) { a.typingMin, a.typingMax = min, max }
}

// WithTopicKeywords replaces the in-scope topic vocabulary.
func WithTopicKeywords(words []string) Option {
	return func(a *Agent) { a.topics = words }
}

// WithRecorder attaches an exchange recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// defaultTopics is the vocabulary that marks a query as in scope for the
// response pipeline. Tunable via WithTopicKeywords / configuration.
var defaultTopics = []string{
	"project", "projects", "work", "experience", "skills", "technologies",
	"tech", "programming", "development", "built", "created", "developed",
	"portfolio", "background", "python", "javascript", "web", "app",
	"application", "software", "code", "coding", "developer", "engineer",
	"ai", "machine learning", "database", "api", "frontend", "backend",
	"github", "what can you do", "tell me about", "show me", "websocket",
	"encryption", "docker", "typescript", "data", "hobbies", "hobby",
	"microcontrollers", "esp32", "pcb", "hardware", "electrical",
}

// New builds the agent. The codec holds the agent's process-lifetime keypair.
func New(sender Sender, codec *privacy.Codec, respCache *cache.Cache, retriever retrieval.Retriever, generator generate.Generator, opts ...Option) *Agent {
	a := &Agent{
		name:      DefaultName,
		sender:    sender,
		codec:     codec,
		cache:     respCache,
		retriever: retriever,
		generator: generator,
		typingMin: time.Second,
		typingMax: 3 * time.Second,
		topics:    defaultTopics,
		users:     make(map[string]*userState),
		peerKeys:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = slog.Default().With("component", "bot", "name", a.name)
	return a
}

// Name returns the identity the agent is registered under.
func (a *Agent) Name() string { return a.name }

// HandleInvite auto-accepts a private-channel invitation and immediately
// requests the inviter's public key. The agent never declines.
func (a *Agent) HandleInvite(ctx context.Context, from string) {
	a.logger.Info("accepting private channel invite", "from", from)
	a.sender.Whisper(from, protocol.New(protocol.TypePMAccept, protocol.PMControl{From: a.name}))
	a.sender.Whisper(from, protocol.New(protocol.TypePubkeyRequest, protocol.PMControl{From: a.name}))
}

// HandlePubkeyRequest publishes the agent's public key to the requester.
func (a *Agent) HandlePubkeyRequest(ctx context.Context, from string) {
	a.sender.Whisper(from, protocol.New(protocol.TypePubkeyResp, protocol.PubkeyResponse{
		From:      a.name,
		PublicKey: a.codec.PublicKey(),
	}))
}

// HandlePubkeyResponse caches the peer's key and flushes any replies that
// were deferred waiting for it.
func (a *Agent) HandlePubkeyResponse(ctx context.Context, from, publicKey string) {
	a.mu.Lock()
	a.peerKeys[from] = publicKey
	st := a.state(from)
	deferred := st.deferred
	st.deferred = nil
	a.mu.Unlock()

	a.logger.Info("cached peer public key", "from", from, "deferred", len(deferred))
	for _, reply := range deferred {
		a.whisperEncrypted(from, publicKey, reply)
	}
}

// HandlePMMessage decrypts an incoming private message, derives a reply, and
// sends it back encrypted with the sender's public key. An undecryptable frame
// is answered with a generic fallback rather than tearing down the channel.
// When the sender's key is unknown the reply is deferred behind a fresh
// pubkey_request.
func (a *Agent) HandlePMMessage(ctx context.Context, from, ciphertext string) {
	plaintext, err := a.codec.Decrypt(ciphertext)

	var reply string
	if err != nil {
		a.logger.Warn("could not decrypt private message", "from", from, "error", err)
		reply = "I couldn't read that message. Could you try sending it again?"
	} else {
		reply = a.privateReply(ctx, from, plaintext)
	}

	a.typingPause()

	a.mu.Lock()
	key, ok := a.peerKeys[from]
	if !ok {
		st := a.state(from)
		st.deferred = append(st.deferred, reply)
	}
	a.mu.Unlock()

	if !ok {
		a.logger.Info("no public key for peer, deferring reply", "from", from)
		a.sender.Whisper(from, protocol.New(protocol.TypePubkeyRequest, protocol.PMControl{From: a.name}))
		return
	}
	a.whisperEncrypted(from, key, reply)
}

// HandlePMDisconnect drops the peer's cached public key and conversation
// state. A reconnecting peer re-runs the key exchange from scratch.
func (a *Agent) HandlePMDisconnect(ctx context.Context, from string) {
	a.mu.Lock()
	delete(a.peerKeys, from)
	delete(a.users, from)
	a.mu.Unlock()
	a.logger.Info("private channel closed", "from", from)
}

// HandleChat inspects a broadcast chat frame and responds when the message
// addresses the agent or resolves a pending selection.
func (a *Agent) HandleChat(ctx context.Context, msg protocol.ChatMessage) {
	if msg.User == a.name {
		return
	}

	a.mu.Lock()
	st := a.state(msg.User)
	st.greeted = true
	awaiting := st.awaitingSelection
	a.mu.Unlock()

	if awaiting {
		if reply, handled := a.resolveSelection(msg.User, msg.Message); handled {
			a.respondPublic(ctx, msg.User, msg.Message, reply)
			return
		}
		// Unrelated message: the flag was cleared; fall through so a
		// mention still gets a normal answer.
	}

	query, mentioned := a.stripMention(msg.Message)
	if !mentioned {
		return
	}
	a.respondPublic(ctx, msg.User, query, "")
}

// HandleButtonClick maps a UI control frame onto a canned query.
func (a *Agent) HandleButtonClick(ctx context.Context, click protocol.ButtonClick) {
	query, ok := buttonQueries[click.ID]
	if !ok {
		a.respondPublic(ctx, click.User, "",
			"I'm not sure what that button does. You can ask me about projects, skills, or experience.")
		return
	}
	a.respondPublic(ctx, click.User, query, "")
}

// buttonQueries maps button control identifiers to the query they stand for.
var buttonQueries = map[string]string{
	"projects":   "what projects have you built?",
	"skills":     "what skills and technologies do you work with?",
	"experience": "tell me about your development experience",
	"hobbies":    "list your hobby projects",
}

// stripMention reports whether the message addresses the agent and returns it
// with the mention removed.
func (a *Agent) stripMention(message string) (string, bool) {
	lower := strings.ToLower(message)
	nameLower := strings.ToLower(a.name)

	for _, tag := range []string{"@" + nameLower, nameLower + ":", nameLower + ","} {
		if idx := strings.Index(lower, tag); idx >= 0 {
			stripped := message[:idx] + message[idx+len(tag):]
			return strings.TrimSpace(stripped), true
		}
	}
	if strings.HasPrefix(lower, nameLower+" ") {
		return strings.TrimSpace(message[len(nameLower):]), true
	}
	return message, false
}

// maxSealedBytes is what one RSA-2048 OAEP-SHA256 envelope can carry
// (256 - 2*32 - 2).
const maxSealedBytes = 190

// whisperEncrypted encrypts a reply for the peer and sends it on the private
// channel. Replies longer than one envelope holds are split on rune
// boundaries into consecutive pm_message frames.
func (a *Agent) whisperEncrypted(to, peerKey, plaintext string) {
	for _, part := range splitSealable(plaintext, maxSealedBytes) {
		ciphertext, err := a.codec.Encrypt(part, peerKey)
		if err != nil {
			a.logger.Error("encrypting private reply", "to", to, "error", err)
			return
		}
		a.sender.Whisper(to, protocol.New(protocol.TypePMMessage, protocol.PMMessage{
			From:       a.name,
			Ciphertext: ciphertext,
		}))
	}
}

// splitSealable cuts s into pieces of at most max bytes without breaking a
// UTF-8 sequence, preferring the last space in a piece so words stay whole.
func splitSealable(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}

	var parts []string
	for len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if idx := strings.LastIndexByte(s[:cut], ' '); idx > 0 {
			cut = idx + 1
		}
		parts = append(parts, strings.TrimRight(s[:cut], " "))
		s = s[cut:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}

// typingPause suspends briefly so replies don't look instantaneous.
func (a *Agent) typingPause() {
	if a.typingMax <= 0 {
		return
	}
	delay := a.typingMin
	if spread := a.typingMax - a.typingMin; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}
	time.Sleep(delay)
}

// resolveSelection interprets a message from a participant whose state has a
// pending selection. It returns the reply and true when the message was
// consumed by the selection dialog; unrelated messages clear the waiting flag
// and return false so normal handling proceeds.
func (a *Agent) resolveSelection(user, message string) (string, bool) {
	a.mu.Lock()
	st := a.state(user)
	pending := st.pending
	a.mu.Unlock()

	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)

	// Explicit help/list request: re-present the options, keep waiting.
	if lower == "list" || lower == "options" || lower == "help" || lower == "?" {
		return selectionPrompt(pending), true
	}

	// Bare 1-based index.
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(pending) {
			a.clearSelection(user)
			return projectDetail(pending[n-1]), true
		}
		return retryPrompt(pending), true
	}

	// Case-insensitive substring match against item names.
	for _, p := range pending {
		if strings.Contains(strings.ToLower(p.Name), lower) ||
			strings.Contains(lower, strings.ToLower(p.Name)) {
			a.clearSelection(user)
			return projectDetail(p), true
		}
	}

	// Unrelated conversation clears the flag so a stale selection never
	// swallows future turns.
	if a.looksUnrelated(lower) {
		a.clearSelection(user)
		return "", false
	}

	// Plausible but unrecognized attempt: keep waiting, invite a retry.
	return retryPrompt(pending), true
}

// looksUnrelated reports whether a message is ordinary conversation rather
// than a failed selection attempt.
func (a *Agent) looksUnrelated(lower string) bool {
	if _, ok := smallTalk(lower); ok {
		return true
	}
	if strings.Contains(lower, "?") {
		return true
	}
	if len(strings.Fields(lower)) > 4 {
		return true
	}
	for _, topic := range a.topics {
		if strings.Contains(lower, topic) {
			return true
		}
	}
	return false
}

// clearSelection resets the participant's pending-selection state.
func (a *Agent) clearSelection(user string) {
	a.mu.Lock()
	st := a.state(user)
	st.awaitingSelection = false
	st.pending = nil
	a.mu.Unlock()
}

// beginSelection stores the choice set and marks the participant as awaiting
// a selection.
func (a *Agent) beginSelection(user string, items []retrieval.Project) {
	a.mu.Lock()
	st := a.state(user)
	st.awaitingSelection = true
	st.pending = items
	a.mu.Unlock()
}

// selectionPrompt renders the numbered choice list.
func selectionPrompt(items []retrieval.Project) string {
	var b strings.Builder
	b.WriteString("Here's what I can tell you about — reply with a number or a name:\n")
	for i, p := range items {
		b.WriteString(strconv.Itoa(i+1) + ". " + p.Name + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// retryPrompt reports an unrecognized selection without abandoning the dialog.
func retryPrompt(items []retrieval.Project) string {
	return "I didn't catch which one you meant. " + selectionPrompt(items)
}

// projectDetail renders one selected project.
func projectDetail(p retrieval.Project) string {
	var b strings.Builder
	b.WriteString(p.Name + ": " + p.Description)
	if len(p.Skills) > 0 {
		b.WriteString(" Built with " + strings.Join(p.Skills, ", ") + ".")
	}
	for _, note := range p.Notes {
		b.WriteString(" " + note)
	}
	return b.String()
}
