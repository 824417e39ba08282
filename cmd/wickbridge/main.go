// wickbridge runs next to the terminal app and executes the editor's commands
// inside a pseudo-terminal. The editor connects once over a websocket and
// sends JSON frames (probe, launch, exec, open); every frame must be
// authorised by a bearer token signed with the shared secret.
//
// Environment variables:
//
//	BRIDGE_LISTEN   — listen address (default "127.0.0.1:9090")
//	BRIDGE_SECRET   — shared token secret (required)
//	TERMINAL_HOME   — directory the shell starts in (default $HOME)
//	BRIDGE_TIMEOUT  — per-command timeout in seconds (default 120)
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wick_editor/bridge"
	"wick_editor/logging"
)

func main() {
	listenAddr := envOr("BRIDGE_LISTEN", "127.0.0.1:9090")
	secret := os.Getenv("BRIDGE_SECRET")
	home, _ := os.UserHomeDir()
	home = envOr("TERMINAL_HOME", home)
	timeout := time.Duration(envIntOr("BRIDGE_TIMEOUT", 120)) * time.Second

	if err := logging.Init(logging.Config{Level: envOr("LOG_LEVEL", "info"), Format: envOr("LOG_FORMAT", "console")}); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if secret == "" {
		logging.Fatal("BRIDGE_SECRET is required")
	}

	runner := bridge.NewPTYRunner(home, timeout, 0)
	defer runner.Close()

	mux := http.NewServeMux()
	mux.Handle("/bridge", bridge.NewHost(runner, []byte(secret)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","available":%t}`, runner.Probe(r.Context()))
	})

	srv := &http.Server{
		Addr:        listenAddr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
		<-sig

		logging.Info("wickbridge shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	logging.Info("wickbridge listening",
		zap.String("addr", listenAddr),
		zap.String("home", home),
		zap.Duration("timeout", timeout),
	)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("listen failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
