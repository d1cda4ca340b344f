// ABOUTME: HTTP handlers for the stream, trigger, and audit endpoints.
// ABOUTME: Registration holds the request open; notify always answers 200.

package gateway

import (
	"crypto/subtle"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/calldesk/screenpop/internal/hub"
	"github.com/calldesk/screenpop/internal/store"
)

// handleSSE handles GET /sse?agent=<id>&secret=<secret>.
// On success it registers a channel for the agent (retiring any previous
// one) and holds the response open, streaming events until the client
// disconnects or a newer registration supersedes this one. This request
// goroutine IS the long-lived operation; it suspends for the life of the
// connection.
func (g *Gateway) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	agentID := r.URL.Query().Get("agent")
	if agentID == "" {
		// Permanent client misconfiguration; the client must not retry.
		http.Error(w, "agent is required", http.StatusBadRequest)
		return
	}

	secret := r.URL.Query().Get("secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(g.config.Auth.SharedSecret)) != 1 {
		g.logger.Warn("registration rejected: bad secret", "agent", agentID)
		http.Error(w, "invalid secret", http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, err := g.hub.Subscribe(agentID, w, flusher)
	if err != nil {
		g.logger.Warn("registration failed", "agent", agentID, "error", err)
		return
	}
	defer g.hub.Unsubscribe(ch)

	select {
	case <-r.Context().Done():
		// Client navigated away or the network dropped.
	case <-ch.Done():
		// Superseded by a re-registration, write failure, or shutdown.
	}
}

// handleNotify handles GET /notify?customerID=<id>&phone=<num>&agent=<id>,
// the dispatch trigger called by the telephony system. Except for the
// missing-routing-fields case it ALWAYS answers 200 with an HTML
// confirmation page: the PBX has no useful recovery action, and an HTTP
// error would make it retry destructively. The outcome is visible only on
// the page and in the call log.
func (g *Gateway) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	customerID := q.Get("customerID")
	phone := q.Get("phone")
	agentID := q.Get("agent")

	if customerID == "" && phone == "" {
		http.Error(w, "customerID or phone is required", http.StatusBadRequest)
		return
	}

	rec := &store.CallRecord{
		CustomerID: customerID,
		Phone:      phone,
		Agent:      agentID,
	}

	if agentID == "" {
		// No routing key: audit-only, never delivered.
		rec.Result = store.ResultNoAgent
	} else {
		outcome := g.hub.Dispatch(agentID, hub.CallEvent{
			CustomerID: customerID,
			Phone:      phone,
		})
		rec.ExtensionConnected = outcome.ChannelFound
		switch {
		case outcome.Delivered:
			rec.Result = store.ResultSent
		case outcome.ChannelFound:
			rec.Result = store.ResultSendFailed
		default:
			rec.Result = store.ResultNoExtension
		}
	}

	if err := g.store.AppendCall(r.Context(), rec); err != nil {
		g.logger.Error("failed to record call", "error", err, "agent", agentID)
	}

	g.renderConfirmation(w, rec)
}

// handleCalls handles GET /calls, the human-readable call-log viewer.
// Supports optional ?agent=<id>, ?result=<result>, and ?limit=N filters.
func (g *Gateway) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	records, ok := g.listCalls(w, r)
	if !ok {
		return
	}
	g.renderCalls(w, records)
}

// handleCallsCSV handles GET /calls.csv, the machine-readable call log.
func (g *Gateway) handleCallsCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	records, ok := g.listCalls(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calls.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Timestamp", "CustomerID", "Phone", "Agent", "ExtensionConnected", "Result"})
	for _, rec := range records {
		connected := "NO"
		if rec.ExtensionConnected {
			connected = "YES"
		}
		_ = cw.Write([]string{
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.CustomerID,
			rec.Phone,
			rec.Agent,
			connected,
			rec.Result,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		g.logger.Error("failed to write calls CSV", "error", err)
	}
}

// listCalls parses filter query params and fetches records, writing a 400
// on a malformed limit. The bool result is false if a response was already
// written.
func (g *Gateway) listCalls(w http.ResponseWriter, r *http.Request) ([]store.CallRecord, bool) {
	filter := store.CallFilter{}

	if agent := r.URL.Query().Get("agent"); agent != "" {
		filter.Agent = &agent
	}
	if result := r.URL.Query().Get("result"); result != "" {
		filter.Result = &result
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return nil, false
		}
		filter.Limit = limit
	}

	records, err := g.store.ListCalls(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list calls", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return records, true
}
