package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/swarmlab/hivehub/internal/config"
	"github.com/swarmlab/hivehub/internal/room"
)

// Server is the front gate: it authenticates requests, resolves the project
// query parameter to a room, and forwards. Room-level semantics live in the
// room package.
type Server struct {
	rooms     *room.Manager
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(rooms *room.Manager, cfg config.WebConfig, version string) *Server {
	return &Server{
		rooms:     rooms,
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler builds the full routing table; exposed so tests can mount it on an
// httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Liveness card, open even when a token is configured
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /github/webhook", s.handleWebhook)

	s.registerAPI(mux)

	return s.withAuth(mux)
}

// withAuth enforces the shared bearer token on every path except the
// liveness endpoints. Missing-token configuration means open mode.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" || r.URL.Path == "/" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			header := r.Header.Get("Authorization")
			token = strings.TrimPrefix(header, "Bearer ")
			if token == header {
				token = ""
			}
		}

		if token != s.cfg.AuthToken {
			jsonError(w, "missing or invalid token; send Authorization: Bearer <token>", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"name":          "hivehub",
		"version":       s.version,
		"status":        "ok",
		"authenticated": s.cfg.AuthToken != "",
		"time":          time.Now().UnixMilli(),
	})
}

// room resolves the target room from the project query parameter, creating
// the room on first use.
func (s *Server) room(r *http.Request) *room.Room {
	return s.rooms.Get(r.URL.Query().Get("project"))
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
