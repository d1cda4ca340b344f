// ABOUTME: Channel is one live SSE push path to a specific agent workstation.
// ABOUTME: Serializes concurrent writes and manages the Open/Closing/Closed lifecycle.

package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrChannelClosed indicates a write was attempted on a retired channel.
var ErrChannelClosed = errors.New("channel closed")

// defaultWriteTimeout bounds a single event write. A workstation that
// stopped reading (full TCP window) must not hold the channel mutex
// forever; a missed deadline is a failed write and retires the channel.
const defaultWriteTimeout = 5 * time.Second

// State is the lifecycle state of a channel. Channels are binary live/dead:
// there is no paused state.
type State int

const (
	// StateOpen means the channel is registered and write-capable.
	StateOpen State = iota
	// StateClosing means the transport is tearing down; no more writes.
	StateClosing
	// StateClosed means the channel has been removed from the registry.
	StateClosed
)

// Channel represents one live push path from the hub to a single agent
// workstation. A per-channel mutex serializes writes so concurrent
// dispatches to the same agent never interleave bytes on the stream; this
// is also what gives same-agent dispatches their in-order delivery.
type Channel struct {
	AgentID   string
	ClientID  string
	CreatedAt time.Time

	mu           sync.Mutex
	w            http.ResponseWriter
	flusher      http.Flusher
	rc           *http.ResponseController
	writeTimeout time.Duration
	state        State
	done         chan struct{}
}

// NewChannel wraps an SSE response as a push channel for the given agent.
// The server-assigned client ID is reported back to the workstation in the
// initial acknowledgement event.
func NewChannel(agentID string, w http.ResponseWriter, flusher http.Flusher) *Channel {
	return &Channel{
		AgentID:      agentID,
		ClientID:     uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		w:            w,
		flusher:      flusher,
		rc:           http.NewResponseController(w),
		writeTimeout: defaultWriteTimeout,
		state:        StateOpen,
		done:         make(chan struct{}),
	}
}

// Send writes one SSE event frame (event type tag plus a JSON data block)
// and flushes it to the client. Returns ErrChannelClosed if the channel is
// no longer live. Each write carries a deadline; a transport write failure
// or a missed deadline transitions the channel to Closing and is returned
// to the caller; the channel accepts no further writes after that.
func (c *Channel) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return ErrChannelClosed
	}

	// Transports without deadline support (plain recorders in tests) are
	// left unbounded; real server connections all support it.
	if err := c.rc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		c.retireLocked(StateClosing)
		return fmt.Errorf("setting write deadline for %s event: %w", event, err)
	}

	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		c.retireLocked(StateClosing)
		return fmt.Errorf("writing %s event: %w", event, err)
	}
	c.flusher.Flush()
	return nil
}

// Close retires the channel. Idempotent and safe to call from any
// goroutine; the handler goroutine blocked on Done is released.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retireLocked(StateClosed)
}

func (c *Channel) retireLocked(next State) {
	if c.state == StateClosed {
		return
	}
	if c.state == StateOpen {
		close(c.done)
	}
	c.state = next
}

// Done returns a channel that is closed when this push channel is retired,
// either by an explicit Close (supersession, shutdown) or a write failure.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// State reports the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
