package wickeditor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"wick_editor/bridge"
	"wick_editor/handlers"
	"wick_editor/logging"
	"wick_editor/metrics"
	"wick_editor/terminal"
	"wick_editor/wickfs"
)

// Server is the editor HTTP server. Create one with New(), then call Start()
// to run it.
type Server struct {
	host          string
	port          int
	workspaceRoot string
	extensionPath string
	settingsFile  string
	staticPath    string
	apiSecret     []byte

	bridgeURL    string
	bridgeSecret string
	terminalMode terminal.Mode

	fsys   wickfs.FileSystem
	bridge bridge.Bridge

	deps    *handlers.Deps
	cleanup func()
	srv     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithPort sets the listen port (default 8000).
func WithPort(port int) Option {
	return func(s *Server) { s.port = port }
}

// WithHost sets the listen host (default "0.0.0.0").
func WithHost(host string) Option {
	return func(s *Server) { s.host = host }
}

// WithWorkspaceRoot sets the directory vscode: resources resolve against.
func WithWorkspaceRoot(root string) Option {
	return func(s *Server) { s.workspaceRoot = root }
}

// WithExtensionPath sets the extension install directory.
func WithExtensionPath(p string) Option {
	return func(s *Server) { s.extensionPath = p }
}

// WithSettingsFile sets the settings document location.
func WithSettingsFile(p string) Option {
	return func(s *Server) { s.settingsFile = p }
}

// WithStaticPath sets the directory for static file serving with SPA fallback.
func WithStaticPath(p string) Option {
	return func(s *Server) { s.staticPath = p }
}

// WithAPISecret enables bearer token auth on the API routes.
func WithAPISecret(secret string) Option {
	return func(s *Server) { s.apiSecret = []byte(secret) }
}

// WithBridgeURL connects the terminal to a bridge host.
func WithBridgeURL(url, secret string) Option {
	return func(s *Server) {
		s.bridgeURL = url
		s.bridgeSecret = secret
	}
}

// WithBridge uses b as the terminal app instead of dialing a bridge host.
func WithBridge(b bridge.Bridge) Option {
	return func(s *Server) { s.bridge = b }
}

// WithTerminalMode sets how the terminal picks its backend.
func WithTerminalMode(m terminal.Mode) Option {
	return func(s *Server) { s.terminalMode = m }
}

// WithFileSystem replaces the local filesystem.
func WithFileSystem(fsys wickfs.FileSystem) Option {
	return func(s *Server) { s.fsys = fsys }
}

// WithConfig applies every setting in cfg.
func WithConfig(cfg *AppConfig) Option {
	return func(s *Server) {
		s.host = cfg.Host
		s.port = cfg.Port
		s.workspaceRoot = cfg.WorkspaceRoot
		s.extensionPath = cfg.ExtensionPath
		s.settingsFile = cfg.SettingsFile
		s.staticPath = cfg.StaticPath
		s.apiSecret = []byte(cfg.APISecret)
		s.bridgeURL = cfg.BridgeURL
		s.bridgeSecret = cfg.BridgeSecret
		s.terminalMode = cfg.TerminalMode
	}
}

// New creates a new Server with the given options.
func New(opts ...Option) *Server {
	s := &Server{
		host:          "0.0.0.0",
		port:          8000,
		workspaceRoot: "workspace",
		extensionPath: "extensions",
		settingsFile:  ".vscode/settings.yaml",
		staticPath:    "static",
		terminalMode:  terminal.ModeAuto,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the dependencies and returns the full route tree. Close
// releases what it created.
func (s *Server) Handler(ctx context.Context) (http.Handler, error) {
	deps, cleanup, err := s.loadDeps(ctx)
	if err != nil {
		return nil, err
	}
	s.deps = deps
	s.cleanup = cleanup

	r := mux.NewRouter()

	// Health check (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := deps.Terminal.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"terminal":        snap.Backend,
			"terminal_app":    snap.Available,
			"unsaved_changes": deps.Session.UnsavedChanges(),
		})
	}).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	handlers.RegisterRoutes(api, deps)
	api.Use(func(next http.Handler) http.Handler { return authMiddleware(s.apiSecret, next) })

	// Static file serving with SPA fallback
	if info, err := os.Stat(s.staticPath); err == nil && info.IsDir() {
		logging.Info("serving static files", zap.String("path", s.staticPath))
		fs := http.FileServer(http.Dir(s.staticPath))
		staticPath := s.staticPath
		r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := staticPath + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) && r.URL.Path != "/" {
				http.ServeFile(w, r, staticPath+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
	}

	return corsMiddleware(logging.Middleware(r)), nil
}

// Start initializes dependencies, builds routes, and runs the HTTP server.
// It blocks until the server is shut down via signal or Shutdown().
func (s *Server) Start() error {
	handler, err := s.Handler(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // disable for SSE
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on signal
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down")
		s.Shutdown()
	}()

	logging.Info("wick_editor starting",
		zap.String("addr", addr),
		zap.String("workspace_root", s.workspaceRoot),
		zap.String("terminal", s.deps.Terminal.Backend().ID()),
		zap.Bool("auth", len(s.apiSecret) > 0),
	)

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Close releases the terminal dispatcher and bridge connection.
func (s *Server) Close() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
