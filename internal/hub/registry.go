// ABOUTME: Registry tracks the single live channel per agent identifier.
// ABOUTME: All mutations are atomic under one mutex; last registration wins.

package hub

import (
	"log/slog"
	"sync"
	"time"
)

// Registry is the one piece of mutable shared state in the hub: a map from
// agent identifier (PBX extension number) to its live channel. It is owned
// by the Hub and injected into handlers, never accessed as a global.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		channels: make(map[string]*Channel),
		logger:   logger,
	}
}

// Register installs ch as the live channel for its agent identifier,
// retiring any previous channel for the same identifier. The map swap
// happens under the registry lock so there is never a window where two
// channels are both considered current for one agent; the retired channel
// is closed after the lock is released so a stalled transport (Close waits
// on the channel's write mutex) can never stall the registry. Returns the
// retired channel, or nil if the agent had none.
func (r *Registry) Register(ch *Channel) *Channel {
	r.mu.Lock()
	prev := r.channels[ch.AgentID]
	r.channels[ch.AgentID] = ch
	total := len(r.channels)
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
		r.logger.Info("channel superseded",
			"agent", ch.AgentID,
			"old_client_id", prev.ClientID,
			"new_client_id", ch.ClientID,
		)
	}
	r.logger.Info("agent connected",
		"agent", ch.AgentID,
		"client_id", ch.ClientID,
		"total_agents", total,
	)
	return prev
}

// Unregister removes ch from the registry only if it is still the current
// channel for its agent identifier. A stale unregister racing a newer
// registration for the same key is a no-op; the channel itself is closed
// either way.
func (r *Registry) Unregister(ch *Channel) {
	r.mu.Lock()
	current := r.channels[ch.AgentID] == ch
	if current {
		delete(r.channels, ch.AgentID)
	}
	total := len(r.channels)
	r.mu.Unlock()

	ch.Close()

	if current {
		r.logger.Info("agent disconnected",
			"agent", ch.AgentID,
			"client_id", ch.ClientID,
			"total_agents", total,
		)
	}
}

// Get retrieves the live channel for an agent identifier.
func (r *Registry) Get(agentID string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[agentID]
	return ch, ok
}

// Count returns the number of live channels.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// AgentStatus describes one live channel for the status endpoints.
type AgentStatus struct {
	Agent          string
	ClientID       string
	ConnectedSince time.Time
}

// Agents returns a snapshot of all live channels.
func (r *Registry) Agents() []AgentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	agents := make([]AgentStatus, 0, len(r.channels))
	for _, ch := range r.channels {
		agents = append(agents, AgentStatus{
			Agent:          ch.AgentID,
			ClientID:       ch.ClientID,
			ConnectedSince: ch.CreatedAt,
		})
	}
	return agents
}

// Close retires every live channel. Used at shutdown. Channels are closed
// outside the registry lock for the same reason Register retires outside it.
func (r *Registry) Close() {
	r.mu.Lock()
	retired := make([]*Channel, 0, len(r.channels))
	for agentID, ch := range r.channels {
		retired = append(retired, ch)
		delete(r.channels, agentID)
	}
	r.mu.Unlock()

	for _, ch := range retired {
		ch.Close()
	}
	r.logger.Debug("registry closed")
}
