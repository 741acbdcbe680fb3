package main

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"
)

// Server exposes the status API over HTTPS: counters and recent readings,
// the event log tail, and configuration for admins.  It is read-mostly;
// the control loop runs independently in the Node.
type Server struct {
	cfgMgr   *ConfigManager
	sessions *SessionManager
	node     *Node
	logger   *EventLogger
}

// NewServer wires the status API around an already running node.
func NewServer(cfgMgr *ConfigManager, node *Node) *Server {
	return &Server{
		cfgMgr:   cfgMgr,
		sessions: NewSessionManager(),
		node:     node,
		logger:   node.logger,
	}
}

// routes builds the request mux.  Split out of Start so tests can exercise
// the handlers without a TLS listener.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/api/config", s.withAuth(s.handleConfig))
	mux.HandleFunc("/api/logs", s.withAuth(s.handleLogs))
	return mux
}

// Start launches the HTTPS server.  It blocks until the server shuts down.
func (s *Server) Start() error {
	cfg := s.cfgMgr.Get()
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)

	// TLS configuration: use modern defaults
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	srv := &http.Server{
		Addr:      addr,
		Handler:   s.routes(),
		TLSConfig: tlsConfig,
	}

	log.Printf("Status API listening on https://0.0.0.0%s\n", addr)
	return srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
}

// withAuth wraps handlers that require a valid session.  If the request
// contains a valid "session" cookie, it calls the underlying handler with
// the user; otherwise it responds with 401.
func (s *Server) withAuth(handler func(http.ResponseWriter, *http.Request, User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		sess, ok := s.sessions.Get(cookie.Value)
		if !ok {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		user, _ := s.cfgMgr.FindUser(sess.Username)
		if user.Username == "" {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}
		handler(w, r, user)
	}
}

// handleLogin authenticates a user and sets a session cookie.  Expected JSON:
// {"username":"...","password":"..."}
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	user, err := s.cfgMgr.Authenticate(creds.Username, creds.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	// Create session valid for 24h
	sessID, _, err := s.sessions.Create(user.Username, 24*time.Hour)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    sessID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	s.logger.Log("login %s", user.Username)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleLogout deletes the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cookie, err := r.Cookie("session")
	if err == nil {
		s.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		Expires:  time.Unix(0, 0),
	})
	s.logger.Log("logout")
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus returns the node counters, recent readings and the node
// names currently in play.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, user User) {
	type status struct {
		NodeStatus
		TZRegion  string `json:"tz_region"`
		UltraNode string `json:"node_ultra_name"`
		SoundNode string `json:"node_sound_name"`
	}
	cfg := s.cfgMgr.Get()
	resp := status{
		NodeStatus: s.node.Status(),
		TZRegion:   cfg.TZRegion,
		UltraNode:  cfg.NodeUltraName,
		SoundNode:  cfg.NodeSoundName,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// configView is Config without the user credentials.
type configView struct {
	ServerBase     string    `json:"server_base"`
	PostPath       string    `json:"post_path"`
	InsecureTLS    bool      `json:"insecure_tls"`
	TZRegion       string    `json:"tz_region"`
	NTPServers     []string  `json:"ntp_servers"`
	UTCOffsetHours int       `json:"utc_offset_hours"`
	AppendZ        bool      `json:"append_z"`
	NodeUltraName  string    `json:"node_ultra_name"`
	NodeSoundName  string    `json:"node_sound_name"`
	Pins           PinConfig `json:"pins"`
	DebounceMs     int       `json:"debounce_ms"`
}

// handleConfig returns the active configuration on GET.  PUT (admin only)
// updates the timing, target and naming fields; pin changes require a
// restart to take effect, which is noted in the log line.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request, user User) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.cfgMgr.Get()
		view := configView{
			ServerBase:     cfg.ServerBase,
			PostPath:       cfg.PostPath,
			InsecureTLS:    cfg.InsecureTLS,
			TZRegion:       cfg.TZRegion,
			NTPServers:     cfg.NTPServers,
			UTCOffsetHours: cfg.UTCOffsetHours,
			AppendZ:        cfg.AppendZ,
			NodeUltraName:  cfg.NodeUltraName,
			NodeSoundName:  cfg.NodeSoundName,
			Pins:           cfg.Pins,
			DebounceMs:     cfg.DebounceMs,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view)
	case http.MethodPut:
		if !user.Admin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			ServerBase     *string `json:"server_base,omitempty"`
			PostPath       *string `json:"post_path,omitempty"`
			TZRegion       *string `json:"tz_region,omitempty"`
			UTCOffsetHours *int    `json:"utc_offset_hours,omitempty"`
			AppendZ        *bool   `json:"append_z,omitempty"`
			NodeUltraName  *string `json:"node_ultra_name,omitempty"`
			NodeSoundName  *string `json:"node_sound_name,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		err := s.cfgMgr.Update(func(c *Config) error {
			if req.ServerBase != nil {
				c.ServerBase = *req.ServerBase
			}
			if req.PostPath != nil {
				c.PostPath = *req.PostPath
			}
			if req.TZRegion != nil {
				c.TZRegion = *req.TZRegion
			}
			if req.UTCOffsetHours != nil {
				c.UTCOffsetHours = *req.UTCOffsetHours
			}
			if req.AppendZ != nil {
				c.AppendZ = *req.AppendZ
			}
			if req.NodeUltraName != nil {
				c.NodeUltraName = *req.NodeUltraName
			}
			if req.NodeSoundName != nil {
				c.NodeSoundName = *req.NodeSoundName
			}
			return nil
		})
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.logger.Log("config update by %s (pin changes take effect after restart)", user.Username)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleLogs returns the event log tail.  Admins only.  Accepts optional
// query parameter `lines=n` to limit the number of lines returned.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	linesParam := r.URL.Query().Get("lines")
	limit := 200
	if linesParam != "" {
		if n, err := strconv.Atoi(linesParam); err == nil && n > 0 {
			limit = n
		}
	}
	lines, err := s.logger.Tail(limit)
	if err != nil {
		http.Error(w, "log not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lines)
}
