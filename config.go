package wickeditor

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"wick_editor/terminal"
)

// AppConfig holds server-level runtime configuration loaded from env.
type AppConfig struct {
	Host          string
	Port          int
	WorkspaceRoot string
	ExtensionPath string
	SettingsFile  string
	StaticPath    string

	// BridgeURL is the terminal app host's websocket URL. Empty disables it.
	BridgeURL    string
	BridgeSecret string
	APISecret    string
	TerminalMode terminal.Mode

	LogLevel  string
	LogFormat string
}

// LoadAppConfig reads configuration from CLI flags and environment variables.
// CLI flags take precedence over env vars.
func LoadAppConfig(args []string) (*AppConfig, error) {
	fs := flag.NewFlagSet("wick_editor", flag.ContinueOnError)
	host := fs.String("host", "", "Listen host (env: HOST, default: 0.0.0.0)")
	port := fs.Int("port", 0, "Listen port (env: PORT, default: 8000)")
	root := fs.String("workspace", "", "Workspace root for vscode: resources (env: WORKSPACE_ROOT)")
	bridgeURL := fs.String("bridge", "", "Terminal app bridge URL (env: BRIDGE_URL)")
	mode := fs.String("terminal-mode", "", "auto, external or builtin (env: TERMINAL_MODE)")
	logLevel := fs.String("log-level", "", "debug, info, warn, error (env: LOG_LEVEL)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	home, _ := os.UserHomeDir()
	cfg := &AppConfig{
		Host:          envOr("HOST", "0.0.0.0"),
		Port:          envIntOr("PORT", 8000),
		WorkspaceRoot: envOr("WORKSPACE_ROOT", filepath.Join(home, "workspace")),
		ExtensionPath: envOr("EXTENSION_PATH", filepath.Join(home, ".wick_editor", "extensions")),
		SettingsFile:  envOr("SETTINGS_FILE", ".vscode/settings.yaml"),
		StaticPath:    envOr("STATIC_PATH", "static"),
		BridgeURL:     os.Getenv("BRIDGE_URL"),
		BridgeSecret:  os.Getenv("BRIDGE_SECRET"),
		APISecret:     os.Getenv("API_SECRET"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
	}
	modeStr := os.Getenv("TERMINAL_MODE")

	// CLI flags override env
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *root != "" {
		cfg.WorkspaceRoot = *root
	}
	if *bridgeURL != "" {
		cfg.BridgeURL = *bridgeURL
	}
	if *mode != "" {
		modeStr = *mode
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	m, err := terminal.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}
	cfg.TerminalMode = m

	if cfg.BridgeURL != "" && cfg.BridgeSecret == "" {
		return nil, fmt.Errorf("BRIDGE_SECRET is required when BRIDGE_URL is set")
	}
	return cfg, nil
}

// envOr returns the environment variable or a default value.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envIntOr returns the environment variable as int or a default value.
func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}
