package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wricardo/wsgateway/gateway/config"
	"github.com/wricardo/wsgateway/gateway/registry"
	"github.com/wricardo/wsgateway/gateway/router"
)

// Options tunes the socket transport.
type Options struct {
	// Maximum message size allowed from peer.
	MaxContentLength int64
	ReadBufferSize   int
	WriteBufferSize  int

	// Outbound frames buffered per connection before Send fails.
	SendBuffer int

	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Empty allows every origin.
	AllowedOrigins []string
}

// OptionsFromConfig maps the server section of the config.
func OptionsFromConfig(cfg config.ServerConfig) Options {
	return Options{
		MaxContentLength: cfg.MaxContentLength,
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		SendBuffer:       cfg.SendBuffer,
		WriteWait:        cfg.WriteWait,
		PongWait:         cfg.PongWait,
		AllowedOrigins:   cfg.AllowedOrigins,
	}
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Server)
}

// Send pings to peer with this period. Must be less than pongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Gateway accepts socket connections and runs each one through the router.
type Gateway struct {
	router      *router.Router
	advisor     *router.Advisor
	connections *registry.ConnectionRegistry
	groups      *registry.GroupRegistry
	logger      *slog.Logger
	opts        Options
	upgrader    websocket.Upgrader

	// Open clients, owned by Run
	clients map[*Client]struct{}
	live    atomic.Int64

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewGateway creates a Gateway. Run must be started before ServeWS accepts
// connections.
func NewGateway(
	r *router.Router,
	advisor *router.Advisor,
	connections *registry.ConnectionRegistry,
	groups *registry.GroupRegistry,
	logger *slog.Logger,
	opts Options,
) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		router:      r,
		advisor:     advisor,
		connections: connections,
		groups:      groups,
		logger:      logger.With("component", "gateway"),
		opts:        opts,
		clients:     make(map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// Run owns the set of open clients until ctx is done, then closes them all.
func (g *Gateway) Run(ctx context.Context) {
	defer close(g.done)

	for {
		select {
		case client := <-g.register:
			g.clients[client] = struct{}{}
			g.live.Store(int64(len(g.clients)))
			g.logger.Debug("client connected", "conn", client.id, "live", len(g.clients))

		case client := <-g.unregister:
			g.unregisterClient(client)

		case <-ctx.Done():
			for client := range g.clients {
				g.unregisterClient(client)
			}
			g.logger.Info("gateway stopped")
			return
		}
	}
}

// Live returns the number of open connections.
func (g *Gateway) Live() int {
	return int(g.live.Load())
}

// ServeWS upgrades the request and starts the connection pumps.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(g, conn, uuid.NewString())

	select {
	case g.register <- client:
	case <-g.done:
		client.close()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ServeHTTP makes the Gateway mountable as a handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.ServeWS(w, r)
}

// leave hands a closing client back to Run, or releases it directly once Run
// has stopped.
func (g *Gateway) leave(client *Client) {
	select {
	case g.unregister <- client:
	case <-g.done:
		g.release(client)
	}
}

func (g *Gateway) unregisterClient(client *Client) {
	if _, ok := g.clients[client]; !ok {
		return
	}
	delete(g.clients, client)
	g.live.Store(int64(len(g.clients)))
	g.release(client)
}

// release runs close-time cleanup whether or not the client ever registered
// an identity.
func (g *Gateway) release(client *Client) {
	client.close()
	identity, _ := g.connections.IdentityOf(client)
	g.connections.RemoveConnection(client)
	g.groups.RemoveFromAllGroups(client)
	g.logger.Info("client disconnected", "conn", client.id, "identity", identity, "live", g.Live())
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range g.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}
