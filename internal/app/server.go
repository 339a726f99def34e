package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vk/beancharts/internal/ctxlog"
	"github.com/vk/beancharts/internal/refresh"
)

// Run serves the HTTP surface until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	srv := &http.Server{
		Addr:    a.config.ListenAddr,
		Handler: a.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		a.logger.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Graceful shutdown failed.", "error", err)
		}
	}()

	a.logger.Info("🚀 Chart refresh server starting", "address", a.config.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Handler builds the route table. Exposed so tests can drive the HTTP
// surface without binding a listener.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/charts/refresh", a.handleRefresh)
	mux.HandleFunc("/health", a.handleHealth)
	return mux
}

// handleRefresh maps the inbound request onto the orchestrator.
//
// The frontend is served from a different origin, so every response carries
// the open CORS header and OPTIONS preflights are answered here.
func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context()).With("remote_addr", r.RemoteAddr)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "GET")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet, http.MethodPost:
		// Tolerated; the deploy hook POSTs, everything else GETs.
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("data")
	force := caseInsensitiveTrue(r.URL.Query().Get("force_refresh"))
	logger.Info("Refresh requested.", "data", raw, "force_refresh", force)

	statuses, code, err := a.orchestrator.Refresh(r.Context(), raw, force)
	if err != nil {
		var rerr *refresh.ResolveError
		if errors.As(err, &rerr) {
			http.Error(w, rerr.Msg, code)
			return
		}
		http.Error(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		logger.Error("Failed to encode response.", "error", err)
	}
}

// handleHealth answers liveness probes.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// caseInsensitiveTrue implements the force_refresh contract: the string
// "true" in any casing enables it, anything else does not.
func caseInsensitiveTrue(s string) bool {
	return strings.EqualFold(s, "true")
}
