package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/reconpilot/reconpilotd/internal/config"
	"github.com/reconpilot/reconpilotd/internal/orchestrator"
)

// Server exposes scan sessions over HTTP and upgrades /ws to a
// WebSocket stream of live events.
type Server struct {
	config         *config.Config
	manager        *orchestrator.Manager
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

// NewServer builds a Server. authToken, if non-empty, is required on
// every request via ?token=, the X-Reconpilot-Token header, or a
// Bearer Authorization header.
func NewServer(cfg *config.Config, manager *orchestrator.Manager, broadcaster *Broadcaster, allowedOrigins []string, authToken string) *Server {
	s := &Server{
		config:         cfg,
		manager:        manager,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      authToken,
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetupRoutes registers every handler on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/api/config", s.handleConfig)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: ws upgrade error: %v", err)
		return
	}

	log.Printf("api: websocket client connected: %s", r.RemoteAddr)
	c, ok := s.broadcaster.AddClient(conn)
	if !ok {
		return
	}

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("api: websocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// startSessionRequest is the body accepted by POST /api/sessions.
type startSessionRequest struct {
	Target      string   `json:"target"`
	Mode        string   `json:"mode"`
	Scope       []string `json:"scope"`
	Exclude     []string `json:"exclude"`
	MaxParallel int      `json:"max_parallel"`
	PassiveOnly bool     `json:"passive_only"`
	Stealth     bool     `json:"stealth"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.manager.List())
	case http.MethodPost:
		s.handleStartSession(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}

	opts := orchestrator.Options{
		Mode:        parseMode(req.Mode),
		Scope:       req.Scope,
		Exclude:     req.Exclude,
		MaxParallel: req.MaxParallel,
		PassiveOnly: req.PassiveOnly,
		Stealth:     req.Stealth,
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = s.config.Scan.MaxParallel
	}
	opts.Timeout = s.config.Scan.Timeout

	sessionID := s.manager.StartSession(r.Context(), req.Target, opts)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"session_id": sessionID})
}

func parseMode(m string) orchestrator.Mode {
	switch strings.ToLower(m) {
	case "passive":
		return orchestrator.Passive
	case "interactive":
		return orchestrator.Interactive
	default:
		return orchestrator.Auto
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.config)
}

// handleSessionRoutes dispatches /api/sessions/{id}[/pause|resume|stop].
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)

	sessionID, err := url.PathUnescape(parts[0])
	if err != nil || sessionID == "" {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	if len(parts) == 1 {
		s.handleSessionDetail(w, r, sessionID)
		return
	}

	switch parts[1] {
	case "pause":
		s.handleSessionAction(w, r, sessionID, s.manager.Pause)
	case "resume":
		s.handleSessionAction(w, r, sessionID, s.manager.Resume)
	case "stop":
		s.handleSessionAction(w, r, sessionID, s.manager.Stop)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orch, ok := s.manager.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orch.Session())
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request, sessionID string, action func(string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := action(sessionID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Reconpilot-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// ListenAndServe starts the HTTP server on host:port.
func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("api: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
