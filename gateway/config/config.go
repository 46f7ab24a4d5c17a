package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config is the gateway configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Log        LogConfig        `yaml:"log"`
	Ngrok      NgrokConfig      `yaml:"ngrok"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig controls the listener and the socket endpoint.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	SocketPath       string        `yaml:"socket_path"`
	MaxContentLength int64         `yaml:"max_content_length"`
	ReadBufferSize   int           `yaml:"read_buffer_size"`
	WriteBufferSize  int           `yaml:"write_buffer_size"`
	SendBuffer       int           `yaml:"send_buffer"`
	WriteWait        time.Duration `yaml:"write_wait"`
	PongWait         time.Duration `yaml:"pong_wait"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the base http URL of the server.
func (s ServerConfig) URL() string {
	return fmt.Sprintf("http://%s", s.Addr())
}

// ScreenshotConfig controls the headless browser used by the screenshot
// operation.
type ScreenshotConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Headless   bool          `yaml:"headless"`
	NoSandbox  bool          `yaml:"no_sandbox"`
	DisableGPU bool          `yaml:"disable_gpu"`
	Timeout    time.Duration `yaml:"timeout"`
	Quality    int           `yaml:"quality"`
	ExecPath   string        `yaml:"exec_path"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// NgrokConfig controls the optional public tunnel.
type NgrokConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Authtoken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

// TelemetryConfig controls OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}
