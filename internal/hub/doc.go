// Package hub is the per-agent push-notification core of screenpop.
//
// # Overview
//
// The hub multiplexes long-lived, one-directional SSE streams keyed by an
// agent identifier (the PBX extension number). The telephony system calls
// the gateway's dispatch endpoint with an agent identifier and a payload;
// the hub looks up the live channel for that identifier and writes an
// openCustomer event into it, or reports non-delivery if none exists.
//
// # Registry
//
// The Registry is the single piece of mutable shared state: a mutex-guarded
// map from agent identifier to its live channel.
//
//	reg := hub.NewRegistry(logger)
//
// Key operations:
//
//   - Register(ch): install a channel, retiring any previous one for the
//     same agent (last-registration-wins, atomic under the registry lock)
//   - Unregister(ch): remove a channel only if it is still current,
//     guarding against a disconnect racing a newer registration
//   - Get(agentID): look up the live channel for dispatch
//
// # Channel
//
// A Channel wraps one SSE response. Writes are serialized by a per-channel
// mutex, which both prevents interleaved frames under concurrent dispatch
// and guarantees in-order delivery of same-agent events. Channels move
// Open -> Closing -> Closed; nothing is buffered across reconnects, so a
// gap in connectivity is a gap in delivery.
//
// # Delivery semantics
//
// Dispatch is fire-and-forget and at-most-once. There is no queueing and
// no hub-side retry: a call-answered pop is only useful within a few
// seconds of the call being answered.
package hub
