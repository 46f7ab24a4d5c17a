// Command validate provides a small CLI that validates gateway YAML config
// files. With no arguments it scans the configs directory. It checks:
//   - YAML structure and environment substitution
//   - Every rule the server enforces at startup (ports, socket path, timeouts, log settings)
//   - Allowed origins are "*", bare hosts, or absolute http(s) origins
//   - Ngrok and telemetry settings that would be silently ignored at runtime
//   - A configured browser executable exists
package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/wsgateway/gateway/config"
)

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Warnings and Info are reported either way.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

// validateConfig loads and validates a single configuration file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	cfg, err := config.Load(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to load: %v", err))
		return result
	}

	if err := cfg.Validate(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if cfg.Ngrok.Enabled && cfg.Ngrok.Authtoken == "" {
		result.Warnings = append(result.Warnings, "ngrok.enabled is set but ngrok.authtoken is empty; the tunnel will not start")
	}
	if !cfg.Ngrok.Enabled && cfg.Ngrok.Domain != "" {
		result.Warnings = append(result.Warnings, "ngrok.domain is set but ngrok is disabled")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Insecure {
		result.Warnings = append(result.Warnings, "telemetry exporter uses an insecure connection")
	}
	if cfg.Screenshot.Enabled && cfg.Screenshot.ExecPath != "" {
		if _, err := os.Stat(cfg.Screenshot.ExecPath); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("screenshot.exec_path not found: %s", cfg.Screenshot.ExecPath))
		}
	}

	if result.Valid {
		result.Info = append(result.Info,
			fmt.Sprintf("✓ Listens on %s, socket at %s", cfg.Server.Addr(), cfg.Server.SocketPath),
			fmt.Sprintf("✓ Frames up to %d bytes, send buffer %d", cfg.Server.MaxContentLength, cfg.Server.SendBuffer),
		)
		if cfg.Screenshot.Enabled {
			result.Info = append(result.Info, fmt.Sprintf("✓ Screenshots enabled (timeout %s, quality %d)", cfg.Screenshot.Timeout, cfg.Screenshot.Quality))
		}
	}

	return result
}

// validateOrigin accepts "*", a bare host[:port], or an absolute http(s)
// origin without a path.
func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	if !strings.Contains(origin, "://") {
		if origin == "" || strings.ContainsAny(origin, "/?#") {
			return fmt.Errorf("allowed origin %q must be a host or an http or https origin", origin)
		}
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid allowed origin %q: %v", origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("allowed origin %q must be an http or https origin", origin)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("allowed origin %q must not contain a path", origin)
	}
	return nil
}

// collectFiles expands args as files or globs. No args means configs/*.yaml
// and configs/*.yml.
func collectFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{filepath.Join("configs", "*.yaml"), filepath.Join("configs", "*.yml")}
	}

	var files []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, err
		}
		if matches == nil && !strings.ContainsAny(arg, "*?[") {
			matches = []string{arg}
		}
		files = append(files, matches...)
	}
	return files, nil
}

// main validates each file, printing a concise report and exiting with
// non-zero status if any are invalid.
func main() {
	files, err := collectFiles(os.Args[1:])
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("No configuration files found")
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Info {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Println("  ⚠ " + warning)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
