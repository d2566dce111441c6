// Package hub is the core of the chat hub: the connection registries, the
// frame router, and the transport/HTTP wiring.
//
// # Registries
//
// Registry tracks the open broadcast channel; PrivateRegistry tracks private
// channels and the public keys participants publish during key exchange.
// Both prune dead connections lazily on the first failed send, and broadcast
// iterates a snapshot so mutation mid-fanout never skips another recipient.
//
// # Routing
//
// Router classifies inbound frames: chat messages fan out on the open
// channel, private-channel frames are forwarded to their addressee, and
// frames addressed to the agent participant are delivered by direct method
// invocation. Malformed frames earn the sender an error frame but never a
// drop.
//
// # Hub object
//
// Hub is the single context object constructed at process start and shared
// by every connection task; there are no package-level singletons. It also
// implements the agent's frame sender, closing the loop between the agent's
// replies and the registries.
package hub
