package config

import (
	"errors"
	"fmt"
	"strings"
)

// reservedPaths are served by the admin API and cannot host the socket.
var reservedPaths = []string{"/api", "/health", "/mcp"}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}

	if c.Screenshot.Timeout <= 0 {
		return errors.New("screenshot.timeout must be > 0")
	}
	if c.Screenshot.Quality < 1 || c.Screenshot.Quality > 100 {
		return fmt.Errorf("screenshot.quality must be between 1 and 100, got %d", c.Screenshot.Quality)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}

	return nil
}

func (s *ServerConfig) validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port)
	}
	if !strings.HasPrefix(s.SocketPath, "/") {
		return fmt.Errorf("server.socket_path must start with /, got %q", s.SocketPath)
	}
	for _, reserved := range reservedPaths {
		if s.SocketPath == reserved || strings.HasPrefix(s.SocketPath, reserved+"/") {
			return fmt.Errorf("server.socket_path %q collides with %s", s.SocketPath, reserved)
		}
	}
	if s.MaxContentLength < 1 {
		return errors.New("server.max_content_length must be >= 1")
	}
	if s.SendBuffer < 1 {
		return errors.New("server.send_buffer must be >= 1")
	}
	if s.WriteWait <= 0 {
		return errors.New("server.write_wait must be > 0")
	}
	if s.PongWait <= 0 {
		return errors.New("server.pong_wait must be > 0")
	}
	return nil
}
