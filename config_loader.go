package wickeditor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"wick_editor/backend"
	"wick_editor/bridge"
	"wick_editor/editor"
	"wick_editor/extctx"
	"wick_editor/handlers"
	"wick_editor/logging"
	"wick_editor/metrics"
	"wick_editor/settings"
	"wick_editor/terminal"
	"wick_editor/wickfs"
)

// settingsResource maps the configured settings location onto a resource.
// Relative paths live inside the workspace root.
func settingsResource(p string) wickfs.Resource {
	switch {
	case strings.Contains(p, ":"):
		return wickfs.ParseResource(p)
	case filepath.IsAbs(p):
		return wickfs.File(p)
	}
	return wickfs.Workspace(p)
}

// loadDeps builds the shared handler dependencies: storage, settings, the
// editor session, the extension context and the terminal dispatcher. The
// returned func releases the terminal resources.
func (s *Server) loadDeps(ctx context.Context) (*handlers.Deps, func(), error) {
	log := logging.Named("server")

	fsys := s.fsys
	if fsys == nil {
		fsys = wickfs.Observe(wickfs.NewLocalFS(s.workspaceRoot), metrics.RecordFSOperation)
	}

	store := settings.NewStore(fsys, settingsResource(s.settingsFile))
	cur, err := store.Load(ctx)
	if err != nil {
		log.Warn("settings not loaded, using defaults", zap.Error(err))
	}

	session := editor.NewSession(fsys)
	wsPath := s.workspaceRoot
	if cur.WorkspacePath != "" {
		if _, err := session.LoadWorkspace(ctx, cur.WorkspacePath); err != nil {
			log.Warn("failed to load workspace", zap.String("path", cur.WorkspacePath), zap.Error(err))
		} else {
			wsPath = cur.WorkspacePath
			log.Info("workspace loaded", zap.String("path", wsPath))
		}
	}

	ectx, err := extctx.New(s.extensionPath, wsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create extension context: %w", err)
	}

	b := s.bridge
	if b == nil && s.bridgeURL != "" {
		b = bridge.NewClient(s.bridgeURL, []byte(s.bridgeSecret))
		log.Info("terminal app bridge configured", zap.String("url", s.bridgeURL))
	}

	opts := terminal.Options{
		Builtin: backend.NewBuiltin(fsys),
		Mode:    s.terminalMode,
		Workdir: cur.TerminalHome,
	}
	if !cur.UseTerminalApp && opts.Mode == terminal.ModeAuto {
		opts.Mode = terminal.ModeBuiltin
	}

	deps := &handlers.Deps{
		Session:  session,
		Settings: store,
		Context:  ectx,
		FS:       fsys,
		EventBus: handlers.NewEventBus(),
	}
	if b != nil {
		ext := backend.NewBridge(b)
		opts.External = ext
		deps.Launcher = ext
	}

	term, err := terminal.New(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	deps.Terminal = term

	cleanup := func() {
		term.Close()
		if c, ok := b.(io.Closer); ok {
			c.Close()
		}
	}
	return deps, cleanup, nil
}
