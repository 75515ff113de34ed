package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/dupefinder/internal/auth"
	"github.com/sha1n/dupefinder/internal/config"
	"github.com/sha1n/dupefinder/internal/finder"
)

// StartSSEServer starts the SSE server with authentication
func StartSSEServer(s *mcp.Server, svc *finder.Service, settings *config.Settings) error {
	srv, err := NewSSEServer(s, svc, settings)
	if err != nil {
		return err
	}

	slog.Info("Server listening (HTTP)", "addr", srv.Addr, "auth_type", settings.Auth.Type)
	return srv.ListenAndServe()
}

// NewSSEServer creates a new SSE server with authentication middleware.
// When svc is not nil the manifest of the cached index is served at /manifest.
func NewSSEServer(s *mcp.Server, svc *finder.Service, settings *config.Settings) (*http.Server, error) {
	// Factory function returns the server instance for each request
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/sse", sseHandler)
	if svc != nil {
		mux.Handle("/manifest", manifestHandler(svc))
	}

	authMiddleware, err := auth.NewMiddleware(settings.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	handler := authMiddleware(mux)
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)

	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}, nil
}

// manifestHandler serves the manifest of the cached index snapshot as JSON,
// or 404 when no snapshot has been built yet.
func manifestHandler(svc *finder.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		m, err := svc.Manifest()
		if err != nil {
			slog.Error("Failed to load index manifest", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if m == nil {
			http.Error(w, "no index snapshot", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m); err != nil {
			slog.Error("Failed to write index manifest", "error", err)
		}
	})
}
