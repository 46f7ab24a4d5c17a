package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost              = "localhost"
	DefaultPort              = 8090
	DefaultSocketPath        = "/ws"
	DefaultMaxContentLength  = 65536
	DefaultReadBufferSize    = 1024
	DefaultWriteBufferSize   = 1024
	DefaultSendBuffer        = 256
	DefaultWriteWait         = 10 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultScreenshotTimeout = 30 * time.Second
	DefaultScreenshotQuality = 90
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultTelemetryEndpoint = "localhost:4317"
	DefaultServiceName       = "wsgateway"
)

// Default returns a configuration with every default applied. Boolean
// switches that default to true are set here, so Load decodes on top of it.
func Default() *Config {
	cfg := &Config{
		Screenshot: ScreenshotConfig{
			Enabled:    true,
			Headless:   true,
			NoSandbox:  true,
			DisableGPU: true,
		},
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.SocketPath == "" {
		c.Server.SocketPath = DefaultSocketPath
	}
	if c.Server.MaxContentLength == 0 {
		c.Server.MaxContentLength = DefaultMaxContentLength
	}
	if c.Server.ReadBufferSize == 0 {
		c.Server.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Server.WriteBufferSize == 0 {
		c.Server.WriteBufferSize = DefaultWriteBufferSize
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}
	if c.Server.WriteWait == 0 {
		c.Server.WriteWait = DefaultWriteWait
	}
	if c.Server.PongWait == 0 {
		c.Server.PongWait = DefaultPongWait
	}

	// Screenshot defaults
	if c.Screenshot.Timeout == 0 {
		c.Screenshot.Timeout = DefaultScreenshotTimeout
	}
	if c.Screenshot.Quality == 0 {
		c.Screenshot.Quality = DefaultScreenshotQuality
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Telemetry defaults
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = DefaultTelemetryEndpoint
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}
