// ABOUTME: Hub routes call-answered events to the live channel for an agent.
// ABOUTME: Registration holds the stream open; dispatch is fire-and-forget.

package hub

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SSE event type tags on the wire.
const (
	EventConnected    = "connected"
	EventOpenCustomer = "openCustomer"
)

// CallEvent is the payload of one "incoming call answered" notification:
// a customer context reference and the raw contact number. At least one of
// the two is always present by the time it reaches the hub.
type CallEvent struct {
	CustomerID string
	Phone      string
}

// DeliveryOutcome reports where a dispatched call event ended up. Dispatch
// never raises an error to the trigger source; non-delivery is an outcome,
// not a failure.
type DeliveryOutcome struct {
	// ChannelFound is true if a live channel existed for the agent at
	// dispatch time, regardless of whether the write then succeeded.
	ChannelFound bool
	// Delivered is true if the event was written to the channel.
	Delivered bool
}

// connectedEvent is the initial acknowledgement pushed on registration.
type connectedEvent struct {
	Status    string `json:"status"`
	Agent     string `json:"agent"`
	ClientID  string `json:"clientId"`
	Timestamp string `json:"timestamp"`
}

// openCustomerEvent is the wire form of a dispatched call event.
type openCustomerEvent struct {
	Type       string `json:"type"`
	CustomerID string `json:"customerID"`
	Phone      string `json:"phone"`
	Agent      string `json:"agent"`
	Timestamp  string `json:"timestamp"`
}

// Hub multiplexes long-lived push channels keyed by agent identifier and
// routes dispatch requests to them. At most one channel is live per agent;
// a new registration for the same identifier retires the previous one.
type Hub struct {
	registry *Registry
	logger   *slog.Logger
}

// New creates a Hub with an empty registry.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: NewRegistry(logger.With("component", "registry")),
		logger:   logger,
	}
}

// Subscribe registers a new channel for agentID on top of an SSE response,
// retiring any previous channel for the same identifier, and feeds it the
// initial connected acknowledgement. The registry mutation is visible to
// subsequent Dispatch calls immediately. If the acknowledgement write
// fails the channel is unregistered and an error returned.
func (h *Hub) Subscribe(agentID string, w http.ResponseWriter, flusher http.Flusher) (*Channel, error) {
	ch := NewChannel(agentID, w, flusher)
	h.registry.Register(ch)

	ack := connectedEvent{
		Status:    "connected",
		Agent:     agentID,
		ClientID:  ch.ClientID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := ch.Send(EventConnected, ack); err != nil {
		h.registry.Unregister(ch)
		return nil, fmt.Errorf("sending acknowledgement: %w", err)
	}
	return ch, nil
}

// Unsubscribe removes a channel when its transport is detected closed.
// Safe against racing a newer registration for the same agent.
func (h *Hub) Unsubscribe(ch *Channel) {
	h.registry.Unregister(ch)
}

// Dispatch delivers a call event to the live channel for agentID, if one
// exists. At-most-once, no queueing, no retry: the event is only useful
// within seconds of the call being answered, so a stale pop is worse than
// none. A failed write closes the channel; future dispatches to that agent
// are undelivered until it re-registers.
func (h *Hub) Dispatch(agentID string, ev CallEvent) DeliveryOutcome {
	ch, ok := h.registry.Get(agentID)
	if !ok {
		h.logger.Debug("no live channel for agent", "agent", agentID)
		return DeliveryOutcome{}
	}

	msg := openCustomerEvent{
		Type:       EventOpenCustomer,
		CustomerID: ev.CustomerID,
		Phone:      ev.Phone,
		Agent:      agentID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := ch.Send(EventOpenCustomer, msg); err != nil {
		h.logger.Warn("channel write failed",
			"agent", agentID,
			"client_id", ch.ClientID,
			"error", err,
		)
		h.registry.Unregister(ch)
		return DeliveryOutcome{ChannelFound: true}
	}

	h.logger.Info("event delivered",
		"agent", agentID,
		"customer_id", ev.CustomerID,
		"phone", ev.Phone,
	)
	return DeliveryOutcome{ChannelFound: true, Delivered: true}
}

// Registry exposes the channel registry for status reporting.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Close retires all live channels.
func (h *Hub) Close() {
	h.registry.Close()
}
