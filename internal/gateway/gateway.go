// ABOUTME: Gateway orchestrator that owns the hub, store, and HTTP server
// ABOUTME: Manages channel registration, dispatch routing, and lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/calldesk/screenpop/internal/config"
	"github.com/calldesk/screenpop/internal/hub"
	"github.com/calldesk/screenpop/internal/store"
)

// Gateway orchestrates the screenpop-gateway server components.
// It owns the notification hub, the call-log store, and the HTTP server
// exposing the stream, trigger, and audit endpoints.
type Gateway struct {
	config     *config.Config
	hub        *hub.Hub
	store      store.Store
	httpServer *http.Server
	logger     *slog.Logger
	startedAt  time.Time
}

// initStore creates the call-log store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SCREENPOP_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config:    cfg,
		hub:       hub.New(logger.With("component", "hub")),
		store:     s,
		logger:    logger.With("component", "gateway"),
		startedAt: time.Now().UTC(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", gw.handleSSE)
	mux.HandleFunc("/notify", gw.handleNotify)
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/calls", gw.handleCalls)
	mux.HandleFunc("/calls.csv", gw.handleCallsCSV)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler exposes the HTTP handler for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"https", g.config.TLS.Enabled,
		)
		var serveErr error
		if g.config.TLS.Enabled {
			serveErr = g.httpServer.ServeTLS(ln, g.config.TLS.CertFile, g.config.TLS.KeyFile)
		} else {
			serveErr = g.httpServer.Serve(ln)
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", serveErr)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.config.Server.ShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the gateway and releases resources. Retiring
// the hub's channels first releases the stream handlers so the HTTP server
// can drain.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	g.hub.Close()

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// healthResponse is the JSON body for GET /health.
type healthResponse struct {
	Status    string        `json:"status"`
	Uptime    string        `json:"uptime"`
	Port      int           `json:"port"`
	HTTPS     bool          `json:"https"`
	FQDN      string        `json:"fqdn"`
	Agents    int           `json:"agents"`
	Connected []healthAgent `json:"connected"`
}

// healthAgent is one live registration on the health report.
type healthAgent struct {
	Agent          string `json:"agent"`
	ClientID       string `json:"clientId"`
	ConnectedSince string `json:"connectedSince"`
}

// handleHealth reports server liveness and deployment facts the PBX-side
// operator needs when wiring up the trigger URL, plus the currently
// registered extensions.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	agents := g.hub.Registry().Agents()
	sort.Slice(agents, func(i, j int) bool { return agents[i].Agent < agents[j].Agent })

	connected := make([]healthAgent, len(agents))
	for i, a := range agents {
		connected[i] = healthAgent{
			Agent:          a.Agent,
			ClientID:       a.ClientID,
			ConnectedSince: a.ConnectedSince.Format(time.RFC3339),
		}
	}

	resp := healthResponse{
		Status:    "ok",
		Uptime:    time.Since(g.startedAt).Round(time.Second).String(),
		Port:      addrPort(g.config.Server.HTTPAddr),
		HTTPS:     g.config.TLS.Enabled,
		FQDN:      g.config.Server.FQDN,
		Agents:    len(agents),
		Connected: connected,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		g.logger.Error("failed to encode health response", "error", err)
	}
}

// addrPort extracts the numeric port from a listen address, or 0.
func addrPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
