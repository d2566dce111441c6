// Package bot implements the agent participant: a virtual user that joins
// the hub under a single identity and answers both broadcast mentions and
// end-to-end-encrypted private messages.
//
// # Participation
//
// The agent is registered in both registries like a human, but its connection
// handle is a no-op sink; the router delivers frames by calling the Handle*
// methods directly. Private-channel invitations are always accepted, followed
// immediately by a public-key request. Replies to private messages are
// encrypted with the sender's cached public key; when the key is unknown the
// reply is deferred behind a fresh key request.
//
// # Conversation state
//
// Per-participant state is a small typed record created lazily on first
// interaction: whether the participant has been greeted, and the pending
// choice set for the selection sub-dialog. Enumeration queries present a
// numbered list and set the awaiting flag; the next qualifying message
// resolves by 1-based index or name substring. Unrelated messages clear the
// flag so a stale selection never swallows later turns.
//
// # Response pipeline
//
// Queries flow through topic gating, the response cache (exact then fuzzy),
// retrieval, and streamed generation. Generation failures are recoverable:
// a fallback is synthesized from the retrieved context, or drawn from a
// canned rotation, and still delivered as a single completion frame.
package bot
