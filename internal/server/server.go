// Package server assembles the relay: HTTP routes, the WebSocket gateway,
// and the shared presence/moderation state behind it.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/win99lol/chat-relay/internal/command"
	"github.com/win99lol/chat-relay/internal/config"
	"github.com/win99lol/chat-relay/internal/event"
	"github.com/win99lol/chat-relay/internal/moderation"
	"github.com/win99lol/chat-relay/internal/presence"
	"github.com/win99lol/chat-relay/internal/profanity"
	"github.com/win99lol/chat-relay/internal/ws"
)

// Server is the relay process: one HTTP listener serving the WebSocket
// endpoint and a liveness route.
type Server struct {
	cfg      config.Config
	mux      *http.ServeMux
	httpSrv  *http.Server
	hub      *ws.Hub
	registry *presence.Registry
	started  time.Time
}

// New wires the relay together from configuration.
func New(cfg config.Config) (*Server, error) {
	filter, err := buildFilter(cfg)
	if err != nil {
		return nil, err
	}

	registry := presence.NewRegistry(filter.Clean)

	var hubOpts []ws.Option
	if cfg.MaxConns > 0 {
		hubOpts = append(hubOpts, ws.WithMaxConns(cfg.MaxConns))
	}
	if cfg.IdleTimeout > 0 {
		hubOpts = append(hubOpts, ws.WithIdleTimeout(cfg.IdleTimeout))
	}
	hub := ws.NewHub(hubOpts...)

	// Expired mutes notify the target once; nobody else is told unless an
	// admin lifted the mute explicitly.
	mutes := moderation.NewStore(func(id string) {
		hub.Send(id, event.TypeUnmuted, event.Unmuted{Auto: true})
		log.Printf("server: mute expired for connection %s", id)
	})

	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		hub:      hub,
		registry: registry,
		started:  time.Now(),
	}

	dispatcher := command.New(registry, mutes, hub, cfg.AdminSecret, s.started)
	wsHandler := ws.NewHandler(hub, registry, mutes, dispatcher, filter, cfg.AllowedOrigins)

	s.mux.Handle("/ws", wsHandler)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.cors(s.mux),
	}
	return s, nil
}

// buildFilter compiles the profanity filter, from the configured word list
// file when present, the built-in list otherwise.
func buildFilter(cfg config.Config) (*profanity.Filter, error) {
	if cfg.WordListFile == "" {
		return profanity.Default(), nil
	}
	words, err := profanity.LoadWords(cfg.WordListFile)
	if err != nil {
		return nil, err
	}
	log.Printf("server: loaded %d filter words from %s", len(words), cfg.WordListFile)
	return profanity.New(words)
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	return s.httpSrv.ListenAndServe()
}

// Shutdown closes all client connections and stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the assembled routes for tests.
func (s *Server) Handler() http.Handler {
	return s.cors(s.mux)
}

// healthResponse is the liveness payload for external monitoring.
type healthResponse struct {
	Status string `json:"status"`
	Users  int    `json:"users"`
	Uptime int64  `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status: "online",
		Users:  s.registry.Count(),
		Uptime: int64(time.Since(s.started).Seconds()),
	})
}

// cors reflects allowed origins back on plain HTTP routes. The WebSocket
// handshake applies the same patterns via AcceptOptions.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed matches an Origin header value against the configured host
// patterns; a leading "*." matches any subdomain.
func (s *Server) originAllowed(origin string) bool {
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	for _, pattern := range s.cfg.AllowedOrigins {
		if strings.HasPrefix(pattern, "*.") {
			if strings.HasSuffix(host, pattern[1:]) {
				return true
			}
			continue
		}
		if host == pattern || strings.TrimSuffix(host, ":443") == pattern || strings.TrimSuffix(host, ":80") == pattern {
			return true
		}
	}
	return false
}
