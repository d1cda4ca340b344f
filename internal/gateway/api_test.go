// ABOUTME: Tests for the stream, trigger, and audit HTTP endpoints
// ABOUTME: Covers registration auth, dispatch outcomes, and the call log views

package gateway

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calldesk/screenpop/internal/config"
)

const testSecret = "test-secret"

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGateway creates a Gateway backed by a temporary database.
func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			HTTPAddr:        "127.0.0.1:0",
			ShutdownTimeout: time.Second,
		},
		Auth:     config.AuthConfig{SharedSecret: testSecret},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "calls.db")},
	}

	gw, err := New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.store.Close() })
	return gw
}

// sseClient reads SSE frames from an open stream into a channel.
type sseClient struct {
	resp   *http.Response
	frames chan sseFrame
}

type sseFrame struct {
	event string
	data  string
}

// openStream registers an agent against a running test server and starts
// reading frames. Fails the test unless the server answers 200.
func openStream(t *testing.T, srv *httptest.Server, agent, secret string) *sseClient {
	t.Helper()

	q := url.Values{}
	q.Set("agent", agent)
	q.Set("secret", secret)

	resp, err := http.Get(srv.URL + "/sse?" + q.Encode())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &sseClient{resp: resp, frames: make(chan sseFrame, 16)}
	go func() {
		defer close(c.frames)
		scanner := bufio.NewScanner(resp.Body)
		var event, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if event != "" {
					c.frames <- sseFrame{event: event, data: data}
				}
				event, data = "", ""
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()
	t.Cleanup(func() { _ = resp.Body.Close() })
	return c
}

// next waits for one frame or fails the test.
func (c *sseClient) next(t *testing.T) sseFrame {
	t.Helper()
	select {
	case f, ok := <-c.frames:
		if !ok {
			t.Fatal("stream closed while waiting for a frame")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for SSE frame")
		return sseFrame{}
	}
}

// closed waits for the stream to end or fails the test.
func (c *sseClient) closed(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for stream to close")
		}
	}
}

func TestSSE_Registration(t *testing.T) {
	gw := newTestGateway(t)

	t.Run("rejects non-GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sse?agent=201&secret="+testSecret, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("rejects missing agent with 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse?secret="+testSecret, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects bad secret with 403 and leaves registry unchanged", func(t *testing.T) {
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse?agent=201&secret=wrong", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 0, gw.hub.Registry().Count())
	})
}

func TestSSE_EndToEnd(t *testing.T) {
	gw := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	// Registered before openStream so its cleanup closes the client body
	// first; Close would otherwise wait forever on the open stream.
	t.Cleanup(srv.Close)

	c := openStream(t, srv, "201", testSecret)

	// First frame is the connected acknowledgement.
	ack := c.next(t)
	require.Equal(t, "connected", ack.event)

	var ackBody map[string]string
	require.NoError(t, json.Unmarshal([]byte(ack.data), &ackBody))
	assert.Equal(t, "connected", ackBody["status"])
	assert.Equal(t, "201", ackBody["agent"])
	assert.NotEmpty(t, ackBody["clientId"])

	// Trigger a notification for the connected agent.
	resp, err := http.Get(srv.URL + "/notify?customerID=CUST-42&phone=%2B15550100&agent=201")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Notification sent")
	assert.Contains(t, string(body), "SENT")

	// The event arrives on the open stream.
	ev := c.next(t)
	require.Equal(t, "openCustomer", ev.event)

	var evBody map[string]string
	require.NoError(t, json.Unmarshal([]byte(ev.data), &evBody))
	assert.Equal(t, "openCustomer", evBody["type"])
	assert.Equal(t, "CUST-42", evBody["customerID"])
	assert.Equal(t, "+15550100", evBody["phone"])
	assert.Equal(t, "201", evBody["agent"])

	// And the call log recorded the delivery.
	csvResp, err := http.Get(srv.URL + "/calls.csv")
	require.NoError(t, err)
	csvBody, _ := io.ReadAll(csvResp.Body)
	csvResp.Body.Close()
	assert.Contains(t, string(csvBody), "CUST-42")
	assert.Contains(t, string(csvBody), "YES")
	assert.Contains(t, string(csvBody), "SENT")
}

func TestSSE_ReRegistrationClosesPreviousStream(t *testing.T) {
	gw := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	c1 := openStream(t, srv, "201", testSecret)
	require.Equal(t, "connected", c1.next(t).event)

	c2 := openStream(t, srv, "201", testSecret)
	require.Equal(t, "connected", c2.next(t).event)

	// The first stream ends; the second is the only live one.
	c1.closed(t)
	assert.Equal(t, 1, gw.hub.Registry().Count())

	// Events flow to the new stream only.
	resp, err := http.Get(srv.URL + "/notify?customerID=CUST-1&agent=201")
	require.NoError(t, err)
	resp.Body.Close()

	ev := c2.next(t)
	assert.Equal(t, "openCustomer", ev.event)
}

func TestNotify(t *testing.T) {
	t.Run("rejects non-GET", func(t *testing.T) {
		gw := newTestGateway(t)
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notify?customerID=C1&agent=201", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("400 when both customerID and phone are missing", func(t *testing.T) {
		gw := newTestGateway(t)
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notify?agent=201", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("phone alone is sufficient", func(t *testing.T) {
		gw := newTestGateway(t)
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notify?phone=%2B15550100&agent=201", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no connected agent answers 200 with NO_EXTENSION", func(t *testing.T) {
		gw := newTestGateway(t)
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notify?customerID=C1&agent=999", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Agent not connected")
		assert.Contains(t, rec.Body.String(), "NO_EXTENSION")
	})

	t.Run("missing agent is recorded as NO_AGENT", func(t *testing.T) {
		gw := newTestGateway(t)
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notify?customerID=C1", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "NO_AGENT")

		csv := httptest.NewRecorder()
		gw.Handler().ServeHTTP(csv, httptest.NewRequest(http.MethodGet, "/calls.csv", nil))
		assert.Contains(t, csv.Body.String(), "NO_AGENT")
	})
}

func TestCallsViews(t *testing.T) {
	gw := newTestGateway(t)

	// Seed the log through the trigger endpoint.
	for i, agent := range []string{"201", "305", "201"} {
		rec := httptest.NewRecorder()
		target := fmt.Sprintf("/notify?customerID=CUST-%d&agent=%s", i, agent)
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	t.Run("html view lists all attempts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "3 dispatch attempt(s)")
		assert.Contains(t, rec.Body.String(), "CUST-0")
		assert.Contains(t, rec.Body.String(), "CUST-2")
	})

	t.Run("agent filter narrows the view", func(t *testing.T) {
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls?agent=305", nil))

		assert.Contains(t, rec.Body.String(), "1 dispatch attempt(s)")
		assert.Contains(t, rec.Body.String(), "CUST-1")
		assert.NotContains(t, rec.Body.String(), "CUST-0")
	})

	t.Run("csv view carries the header row", func(t *testing.T) {
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls.csv", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.GreaterOrEqual(t, len(lines), 4)
		assert.Equal(t, "Timestamp,CustomerID,Phone,Agent,ExtensionConnected,Result", lines[0])
	})

	t.Run("malformed limit is a 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls?limit=bogus", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	gw := newTestGateway(t)
	gw.config.Server.HTTPAddr = "0.0.0.0:8443"
	gw.config.Server.FQDN = "pop.example.com"

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 8443, health.Port)
	assert.Equal(t, "pop.example.com", health.FQDN)
	assert.Equal(t, 0, health.Agents)
	assert.Empty(t, health.Connected)
	assert.False(t, health.HTTPS)
}

func TestHealth_ListsConnectedAgents(t *testing.T) {
	gw := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	c := openStream(t, srv, "201", testSecret)
	require.Equal(t, "connected", c.next(t).event)

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 1, health.Agents)
	require.Len(t, health.Connected, 1)
	assert.Equal(t, "201", health.Connected[0].Agent)
	assert.NotEmpty(t, health.Connected[0].ClientID)
	assert.NotEmpty(t, health.Connected[0].ConnectedSince)
}
