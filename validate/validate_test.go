package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestValidateConfig_ValidConfig(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
server:
  host: 0.0.0.0
  port: 8090
  socket_path: /ws
  allowed_origins:
    - https://app.example.com
screenshot:
  enabled: true
  timeout: 10s
  quality: 80
log:
  level: debug
  format: json
`)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Expected valid config, but got errors: %v", result.Errors)
	}
	if result.File != "gateway.yaml" {
		t.Errorf("Expected file name gateway.yaml, got %s", result.File)
	}
	if len(result.Info) != 3 {
		t.Errorf("Expected 3 info lines, got %v", result.Info)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}
}

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{"Invalid YAML", "server: [unclosed", "Failed to load"},
		{"Bad port", "server:\n  port: 70000\n", "server.port"},
		{"Reserved socket path", "server:\n  socket_path: /api/ws\n", "collides with /api"},
		{"Relative socket path", "server:\n  socket_path: ws\n", "must start with /"},
		{"Bad quality", "screenshot:\n  quality: 101\n", "screenshot.quality"},
		{"Bad log level", "log:\n  level: loud\n", "log.level"},
		{"Origin with path", "server:\n  allowed_origins: [\"https://a.example.com/app\"]\n", "must not contain a path"},
		{"Origin with bad scheme", "server:\n  allowed_origins: [\"ftp://a.example.com\"]\n", "http or https origin"},
		{"Bare host with path", "server:\n  allowed_origins: [\"a.example.com/x\"]\n", "must be a host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateConfig(writeConfig(t, "bad.yaml", tt.content))
			if result.Valid {
				t.Fatal("Expected invalid config")
			}
			if !strings.Contains(strings.Join(result.Errors, "\n"), tt.contains) {
				t.Errorf("Expected error containing %q, got %v", tt.contains, result.Errors)
			}
		})
	}
}

func TestValidateConfig_MissingFile(t *testing.T) {
	result := validateConfig("/nonexistent/gateway.yaml")
	if result.Valid {
		t.Error("Expected missing file to be invalid")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "Failed to load") {
		t.Errorf("Expected load error, got %v", result.Errors)
	}
}

func TestValidateConfig_Warnings(t *testing.T) {
	path := writeConfig(t, "warn.yaml", `
ngrok:
  enabled: true
telemetry:
  enabled: true
  insecure: true
screenshot:
  enabled: true
  exec_path: /nonexistent/chrome
`)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Warnings must not invalidate the config: %v", result.Errors)
	}
	joined := strings.Join(result.Warnings, "\n")
	for _, want := range []string{"ngrok.authtoken is empty", "insecure", "exec_path not found"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected warning containing %q, got %v", want, result.Warnings)
		}
	}
}

func TestValidateConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("VALIDATE_TEST_PORT", "9191")
	result := validateConfig(writeConfig(t, "env.yaml", "server:\n  port: ${VALIDATE_TEST_PORT}\n"))
	if !result.Valid {
		t.Fatalf("Expected valid config, got %v", result.Errors)
	}
	if !strings.Contains(result.Info[0], ":9191") {
		t.Errorf("Expected substituted port in %q", result.Info[0])
	}
}

func TestValidateOrigin(t *testing.T) {
	tests := []struct {
		origin string
		valid  bool
	}{
		{"*", true},
		{"https://app.example.com", true},
		{"http://localhost:3000", true},
		{"http://localhost:3000/", true},
		{"ftp://example.com", false},
		{"example.com", true},
		{"localhost:3000", true},
		{"example.com/path", false},
		{"", false},
		{"https://example.com/path", false},
	}

	for _, tt := range tests {
		err := validateOrigin(tt.origin)
		if (err == nil) != tt.valid {
			t.Errorf("validateOrigin(%q) error = %v, want valid=%v", tt.origin, err, tt.valid)
		}
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml", "c.txt"} {
		os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644)
	}

	files, err := collectFiles([]string{filepath.Join(dir, "*.yaml")})
	if err != nil {
		t.Fatalf("collectFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 files, got %v", files)
	}

	files, _ = collectFiles([]string{"/explicit/missing.yaml"})
	if len(files) != 1 || files[0] != "/explicit/missing.yaml" {
		t.Errorf("Expected explicit path to pass through, got %v", files)
	}
}
