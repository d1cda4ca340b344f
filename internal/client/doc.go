// Package client is the workstation-side reconnect/presence agent.
//
// It loads persisted settings (extension number, server address, shared
// secret), keeps an SSE channel open to the gateway with jittered
// exponential backoff, and exposes a tri-state connection status. A
// liveness watchdog forces a fresh registration when the retry timer has
// stalled, e.g. after the hosting process was suspended.
//
// Received openCustomer events are handed to a HostEnvironment, the
// capability interface behind which the per-browser extension glue (tab
// focus, script injection) lives. Repeated 403s from the gateway move the
// client into a terminal misconfigured state instead of retrying forever.
package client
