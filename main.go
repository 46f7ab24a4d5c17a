// Command wsgateway starts the WebSocket message gateway.
//
// It supports two commands:
//  1. "serve" (default) – runs the HTTP server exposing the WebSocket endpoint, the admin REST API, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal gateway if no external admin API answers
//
// Flags select the YAML config file and override host/port and optional
// ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/wsgateway/api"
	"github.com/wricardo/wsgateway/gateway/config"
	"github.com/wricardo/wsgateway/gateway/dispatch"
	"github.com/wricardo/wsgateway/gateway/handler"
	"github.com/wricardo/wsgateway/gateway/registry"
	"github.com/wricardo/wsgateway/gateway/router"
	"github.com/wricardo/wsgateway/logging"
	"github.com/wricardo/wsgateway/telemetry"
	"github.com/wricardo/wsgateway/transport/browser"
	"github.com/wricardo/wsgateway/transport/mcp"
	"github.com/wricardo/wsgateway/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "wsgateway"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newApp builds the command tree.
func newApp() *cli.Command {
	serve := &cli.Command{
		Name:   "serve",
		Usage:  "Run the gateway with WebSocket, admin API, and MCP endpoint",
		Action: runServe,
	}
	return &cli.Command{
		Name:    AppName,
		Usage:   "WebSocket message routing gateway",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Sources: cli.EnvVars("GATEWAY_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("GATEWAY_HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("GATEWAY_PORT"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Commands: []*cli.Command{
			serve,
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server against the admin API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "admin API base URL to proxy to (defaults to the configured listener)",
						Sources: cli.EnvVars("GATEWAY_API_URL"),
					},
				},
				Action: runStdioMCP,
			},
		},
		Action: runServe,
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadAndValidate(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.Authtoken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// stack is the wired gateway: registries, dispatcher, socket endpoint and
// admin API.
type stack struct {
	connections *registry.ConnectionRegistry
	groups      *registry.GroupRegistry
	dispatcher  *dispatch.Dispatcher
	gateway     *websocket.Gateway
	api         *api.Server
}

// buildStack wires every component from cfg.
func buildStack(cfg *config.Config, logger *slog.Logger) (*stack, error) {
	connections := registry.NewConnectionRegistry()
	groups := registry.NewGroupRegistry()
	dispatcher := dispatch.NewDispatcher(connections, groups, logger)

	var screenshots handler.Screenshotter
	if cfg.Screenshot.Enabled {
		screenshots = browser.NewRenderer(cfg.Screenshot, logger)
	}

	controller := handler.NewController(connections, groups, dispatcher, screenshots, logger)
	r, err := controller.NewRouter()
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	gw := websocket.NewGateway(
		r,
		router.DefaultAdvisor(logger),
		connections,
		groups,
		logger,
		websocket.OptionsFromConfig(cfg.Server),
	)

	return &stack{
		connections: connections,
		groups:      groups,
		dispatcher:  dispatcher,
		gateway:     gw,
		api:         api.NewServer(dispatcher, connections, groups, gw, cfg.Server.SocketPath, logger),
	}, nil
}

// httpHandler combines the admin API, the socket endpoint and /mcp behind the
// tracing middleware.
func (s *stack) httpHandler(mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", s.api)
	if mcpClient != nil {
		mainRouter.HandleFunc("/mcp", mcpClient.HTTPHandler())
	}
	return telemetry.Middleware(AppName)(mainRouter)
}

// runServe starts the gateway, the HTTP listener and the optional ngrok
// tunnel, and shuts them down together when ctx is cancelled.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.Log, AppName)
	logger.Info("starting", "app", AppName, "version", Version)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	s, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr()
	mainHandler := s.httpHandler(mcp.NewClient(cfg.Server.URL()))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.gateway.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server listening",
			"addr", addr,
			"api", cfg.Server.URL()+"/api",
			"socket", "ws://"+addr+cfg.Server.SocketPath,
			"mcp", cfg.Server.URL()+"/mcp",
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Ngrok.Enabled {
		g.Go(func() error {
			return serveNgrok(gctx, cfg.Ngrok, cfg.Server.SocketPath, mainHandler, logger)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// serveNgrok exposes h through an ngrok tunnel until ctx is cancelled. A
// missing auth token disables the tunnel without failing the server.
func serveNgrok(ctx context.Context, cfg config.NgrokConfig, socketPath string, h http.Handler, logger *slog.Logger) error {
	if cfg.Authtoken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return nil
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info("using custom ngrok domain", "domain", cfg.Domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.Authtoken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return nil
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", "error", err)
		}
	}()

	url := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", url,
		"api", url+"/api",
		"socket", url+socketPath,
		"mcp", url+"/mcp",
	)

	if err := http.Serve(tun, h); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Warn("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
	return nil
}

// runStdioMCP runs an MCP stdio server. It reuses an admin API that already
// answers at the configured URL; otherwise it starts an internal gateway on a
// random loopback port and targets that. Logs go to stderr since stdout
// carries the protocol.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log, AppName)

	externalURL := cmd.String("api-url")
	if externalURL == "" {
		externalURL = cfg.Server.URL()
	}

	baseURL := externalURL
	logger.Info("checking for external API server", "url", externalURL)
	if !probeAPI(externalURL) {
		logger.Info("no external API server found, starting internal gateway")

		internalURL, stopInternal, err := startInternal(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stopInternal()
		baseURL = internalURL
	}

	logger.Info("MCP stdio server ready", "api", baseURL)
	if err := server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

// probeAPI reports whether an admin API answers at baseURL.
func probeAPI(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 500
}

// startInternal runs a full gateway on 127.0.0.1:0 and returns its base URL
// and a stop function.
func startInternal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, func(), error) {
	s, err := buildStack(cfg, logger)
	if err != nil {
		return "", nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	go s.gateway.Run(runCtx)

	httpServer := &http.Server{Handler: s.httpHandler(nil)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("internal HTTP server error", "error", err)
		}
	}()

	baseURL := fmt.Sprintf("http://%s", listener.Addr().String())
	logger.Info("internal gateway listening", "url", baseURL)

	stop := func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}
	return baseURL, stop, nil
}
