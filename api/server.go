package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/wsgateway/gateway/dispatch"
	"github.com/wricardo/wsgateway/gateway/envelope"
	"github.com/wricardo/wsgateway/gateway/registry"
)

// maxBodyBytes caps admin request bodies.
const maxBodyBytes = 1 << 20

// Socket is the WebSocket endpoint mounted by the server.
type Socket interface {
	http.Handler
	Live() int
}

// Server represents the admin REST API server
type Server struct {
	dispatcher  *dispatch.Dispatcher
	connections *registry.ConnectionRegistry
	groups      *registry.GroupRegistry
	socket      Socket
	socketPath  string
	router      *mux.Router
	logger      *slog.Logger
	startedAt   time.Time
}

// GroupInfo describes one group.
type GroupInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// OnlineResponse lists the registered identities.
type OnlineResponse struct {
	Count  int      `json:"count"`
	Online []string `json:"online"`
}

// GroupsResponse lists every known group.
type GroupsResponse struct {
	Count  int         `json:"count"`
	Groups []GroupInfo `json:"groups"`
}

// HealthResponse reports liveness and gateway counters.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Identities  int    `json:"identities"`
	Groups      int    `json:"groups"`
	Uptime      string `json:"uptime"`
}

// NewServer creates a new API server. socket may be nil, in which case no
// WebSocket endpoint is mounted.
func NewServer(
	dispatcher *dispatch.Dispatcher,
	connections *registry.ConnectionRegistry,
	groups *registry.GroupRegistry,
	socket Socket,
	socketPath string,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		dispatcher:  dispatcher,
		connections: connections,
		groups:      groups,
		socket:      socket,
		socketPath:  socketPath,
		router:      mux.NewRouter(),
		logger:      logger.With("component", "api"),
		startedAt:   time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api", s.handleIndex).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dispatch", s.handleDispatch).Methods("POST")
	api.HandleFunc("/online", s.handleOnline).Methods("GET")
	api.HandleFunc("/groups", s.handleListGroups).Methods("GET")
	api.HandleFunc("/groups/{name}", s.handleGetGroup).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	if s.socket != nil && s.socketPath != "" {
		s.router.Handle(s.socketPath, s.socket)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name": "wsgateway",
		"endpoints": []string{
			"POST /api/dispatch",
			"GET /api/online",
			"GET /api/groups",
			"GET /api/groups/{name}",
			"GET /health",
		},
		"socket": s.socketPath,
	})
}

// handleDispatch is the administrative entry point into the dispatcher.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req envelope.SendMessageRequest

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Destination) == "" {
		respondError(w, http.StatusBadRequest, "destination is required")
		return
	}
	req.ChannelType = req.ChannelType.OrDefault()

	ack := s.dispatcher.Send(req)
	s.logger.Info("admin dispatch",
		"type", req.ChannelType,
		"destination", req.Destination,
		"delivered", ack.Delivered,
	)
	respondJSON(w, http.StatusAccepted, ack)
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	online := s.connections.ListIdentities()
	respondJSON(w, http.StatusOK, OnlineResponse{Count: len(online), Online: online})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	names := s.groups.Names()
	groups := make([]GroupInfo, 0, len(names))
	for _, name := range names {
		group, ok := s.groups.Get(name)
		if !ok {
			continue
		}
		groups = append(groups, GroupInfo{Name: name, Members: group.Len()})
	}
	respondJSON(w, http.StatusOK, GroupsResponse{Count: len(groups), Groups: groups})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	group, ok := s.groups.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, "group not found: "+name)
		return
	}
	respondJSON(w, http.StatusOK, GroupInfo{Name: group.Name(), Members: group.Len()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	live := 0
	if s.socket != nil {
		live = s.socket.Live()
	}
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: live,
		Identities:  s.connections.Len(),
		Groups:      s.groups.Len(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	})
}
