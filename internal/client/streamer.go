// ABOUTME: SSE streaming client that keeps the workstation registered with the hub.
// ABOUTME: Reconnects with jittered backoff; repeated 403s end in a terminal state.

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrMisconfigured is returned by Run when the server rejects registration
// as a permanent client error. Automatic retry has stopped; the operator
// must fix the persisted settings.
var ErrMisconfigured = errors.New("client misconfigured")

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	// The stream transport cannot distinguish a bad secret from a
	// transient failure, so consecutive 403s are counted before the
	// client gives up instead of reconnecting forever.
	forbiddenLimit = 3
)

// OpenCustomerEvent mirrors the hub's openCustomer wire payload.
type OpenCustomerEvent struct {
	Type       string `json:"type"`
	CustomerID string `json:"customerID"`
	Phone      string `json:"phone"`
	Agent      string `json:"agent"`
	Timestamp  string `json:"timestamp"`
}

// connectedAck is the initial acknowledgement from the hub.
type connectedAck struct {
	Status   string `json:"status"`
	Agent    string `json:"agent"`
	ClientID string `json:"clientId"`
}

// httpError carries a non-200 response from the registration endpoint.
type httpError struct {
	code int
	body string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

// Streamer opens, monitors, and re-establishes the push channel to the
// gateway. One Streamer per workstation; Run blocks until the context is
// cancelled or the client enters the terminal misconfigured state.
type Streamer struct {
	settings Settings
	host     HostEnvironment
	logger   *slog.Logger
	client   *http.Client

	// Tunable for tests.
	backoffBase time.Duration
	backoffMax  time.Duration

	mu        sync.Mutex
	status    Status
	reason    string
	onStatus  func(Status, string)
	forbidden int
	connected bool
	nextRetry time.Time
}

// NewStreamer creates a Streamer for the given settings and host.
func NewStreamer(settings Settings, host HostEnvironment, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		settings: settings,
		host:     host,
		logger:   logger.With("component", "streamer"),
		// No overall client timeout: the stream is long-lived.
		client:      &http.Client{},
		backoffBase: initialBackoff,
		backoffMax:  maxBackoff,
		status:      StatusDisconnected,
	}
}

// OnStatus registers a callback invoked on every status transition.
// Must be set before Run.
func (s *Streamer) OnStatus(fn func(status Status, reason string)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// Status returns the current connection status.
func (s *Streamer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Streamer) setStatus(st Status, reason string) {
	s.mu.Lock()
	changed := s.status != st || s.reason != reason
	s.status = st
	s.reason = reason
	fn := s.onStatus
	s.mu.Unlock()

	if changed && fn != nil {
		fn(st, reason)
	}
}

// Run maintains the channel until ctx is cancelled. Incomplete settings
// leave the client disconnected with a descriptive reason and no connection
// attempt. A permanent rejection by the server (bad secret, bad agent id)
// returns ErrMisconfigured.
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.settings.Validate(); err != nil {
		s.setStatus(StatusDisconnected, err.Error())
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	kick := make(chan struct{}, 1)
	go s.watchdog(ctx, kick)

	backoff := s.backoffBase
	for {
		s.setStatus(StatusConnecting, "")
		err := s.stream(ctx)
		if ctx.Err() != nil {
			s.setStatus(StatusDisconnected, "shutting down")
			return ctx.Err()
		}

		// A stream that got as far as the acknowledgement resets the
		// failure accounting; this disconnect is fresh.
		if s.sawConnected() {
			backoff = s.backoffBase
		}

		var he *httpError
		if errors.As(err, &he) {
			switch he.code {
			case http.StatusForbidden:
				if s.bumpForbidden() >= forbiddenLimit {
					s.setStatus(StatusMisconfigured, "server rejected shared secret")
					return fmt.Errorf("%w: %s", ErrMisconfigured, he.body)
				}
			case http.StatusBadRequest:
				s.setStatus(StatusMisconfigured, "server rejected registration: "+he.body)
				return fmt.Errorf("%w: %s", ErrMisconfigured, he.body)
			}
		}

		reason := "stream closed"
		if err != nil {
			reason = err.Error()
		}
		s.setStatus(StatusDisconnected, reason)
		s.logger.Warn("stream down, retrying", "backoff", backoff, "reason", reason)

		s.setNextRetry(time.Now().Add(backoff))
		select {
		case <-ctx.Done():
			s.setStatus(StatusDisconnected, "shutting down")
			return ctx.Err()
		case <-time.After(backoff):
		case <-kick:
			s.logger.Info("watchdog forcing fresh registration")
		}
		backoff = nextBackoff(backoff, s.backoffMax)
	}
}

// stream performs one registration and reads events until the transport
// closes. Returns *httpError for a non-200 registration response.
func (s *Streamer) stream(ctx context.Context) error {
	base := strings.TrimRight(s.settings.ServerAddress, "/")
	q := url.Values{}
	q.Set("agent", s.settings.ExtensionNumber)
	q.Set("secret", s.settings.SharedSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/sse?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" {
				s.handleEvent(event, data)
			}
			event, data = "", ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// handleEvent dispatches one parsed SSE frame.
func (s *Streamer) handleEvent(event, data string) {
	switch event {
	case "connected":
		var ack connectedAck
		if err := json.Unmarshal([]byte(data), &ack); err != nil {
			s.logger.Warn("malformed connected event", "error", err)
			return
		}
		s.markConnected()
		s.setStatus(StatusConnected, "")
		s.logger.Info("channel open", "agent", ack.Agent, "client_id", ack.ClientID)

	case "openCustomer":
		var ev OpenCustomerEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			s.logger.Warn("malformed openCustomer event", "error", err)
			return
		}
		s.openCustomer(ev)

	default:
		s.logger.Debug("ignoring event", "event", event)
	}
}

// openCustomer pops the CRM: focus the window for the search target and
// trigger the page-side search. The target is the customer reference when
// present, the raw contact number otherwise.
func (s *Streamer) openCustomer(ev OpenCustomerEvent) {
	target := ev.CustomerID
	if target == "" {
		target = ev.Phone
	}

	s.logger.Info("call answered",
		"customer_id", ev.CustomerID,
		"phone", ev.Phone,
		"agent", ev.Agent,
	)

	if err := s.host.FocusOrOpenTargetWindow(target); err != nil {
		s.logger.Error("failed to focus target window", "error", err)
		return
	}
	if err := s.host.RunInPage(searchScript(target)); err != nil {
		s.logger.Error("failed to trigger search", "error", err)
	}
}

// searchScript builds the page-side search invocation for a target.
func searchScript(target string) string {
	return fmt.Sprintf("screenpopSearch(%q)", target)
}

// watchdog periodically forces a fresh registration if the transport is
// terminally closed and the retry timer appears stalled. This recovers
// from the hosting process being suspended and losing its timers.
func (s *Streamer) watchdog(ctx context.Context, kick chan<- struct{}) {
	interval := s.settings.CheckInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			stalled := s.status == StatusDisconnected &&
				!s.nextRetry.IsZero() &&
				time.Since(s.nextRetry) > interval
			s.mu.Unlock()

			if stalled {
				select {
				case kick <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (s *Streamer) markConnected() {
	s.mu.Lock()
	s.connected = true
	s.forbidden = 0
	s.mu.Unlock()
}

// sawConnected reports whether the last stream reached the connected state,
// clearing the flag for the next attempt.
func (s *Streamer) sawConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.connected
	s.connected = false
	return v
}

func (s *Streamer) bumpForbidden() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forbidden++
	return s.forbidden
}

func (s *Streamer) setNextRetry(t time.Time) {
	s.mu.Lock()
	s.nextRetry = t
	s.mu.Unlock()
}

// nextBackoff doubles the delay with a little jitter, capped at max.
func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		next = max
	}
	jitter := time.Duration(rand.Int63n(int64(next/5) + 1))
	return next - next/10 + jitter
}
