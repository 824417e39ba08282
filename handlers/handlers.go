package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"wick_editor/backend"
	"wick_editor/editor"
	"wick_editor/extctx"
	"wick_editor/logging"
	"wick_editor/settings"
	"wick_editor/sse"
	"wick_editor/terminal"
	"wick_editor/wickfs"
)

// Launcher controls the external terminal app.
type Launcher interface {
	Launch(ctx context.Context) error
	OpenAt(ctx context.Context, dir string) error
	Stop(ctx context.Context) error
}

// Deps holds shared dependencies injected into handlers.
type Deps struct {
	Session  *editor.Session
	Terminal *terminal.Dispatcher
	Settings *settings.Store
	Context  *extctx.Context
	FS       wickfs.FileSystem

	// Launcher is nil when no terminal app is configured.
	Launcher Launcher

	// EventBus broadcasts session changes (workspace, files, extensions, settings).
	EventBus *EventBus
}

type editorHandler struct {
	deps *Deps
}

// RegisterRoutes registers the editor API on r.
func RegisterRoutes(r *mux.Router, deps *Deps) {
	if deps.EventBus == nil {
		deps.EventBus = NewEventBus()
	}
	h := &editorHandler{deps: deps}

	r.HandleFunc("/session", h.getSession).Methods("GET")
	r.HandleFunc("/events", h.sessionEvents).Methods("GET")

	r.HandleFunc("/workspace", h.getWorkspace).Methods("GET")
	r.HandleFunc("/workspace", h.loadWorkspace).Methods("POST")

	r.HandleFunc("/files", h.listOpenFiles).Methods("GET")
	r.HandleFunc("/files/open", h.openFile).Methods("POST")
	r.HandleFunc("/files/content", h.updateContent).Methods("PUT")
	r.HandleFunc("/files/save", h.saveFile).Methods("POST")

	r.HandleFunc("/fs/ls", h.fsList).Methods("GET")
	r.HandleFunc("/fs/read", h.fsRead).Methods("GET")
	r.HandleFunc("/fs/mkdir", h.fsMkdir).Methods("POST")
	r.HandleFunc("/fs/rmdir", h.fsRmdir).Methods("POST")
	r.HandleFunc("/fs/delete", h.fsDelete).Methods("POST")
	r.HandleFunc("/fs/rename", h.fsRename).Methods("POST")
	r.HandleFunc("/fs/copy", h.fsCopy).Methods("POST")

	r.HandleFunc("/extensions", h.listExtensions).Methods("GET")
	r.HandleFunc("/extensions", h.installExtension).Methods("POST")
	r.HandleFunc("/extensions/{id}/activate", h.activateExtension).Methods("POST")
	r.HandleFunc("/extensions/{id}/deactivate", h.deactivateExtension).Methods("POST")

	r.HandleFunc("/languages", h.languageForPath).Methods("GET")
	r.HandleFunc("/languages/{lang}", h.languageSupport).Methods("GET")

	r.HandleFunc("/terminal", h.terminalState).Methods("GET")
	r.HandleFunc("/terminal/exec", h.terminalExec).Methods("POST")
	r.HandleFunc("/terminal/input", h.terminalInput).Methods("PUT")
	r.HandleFunc("/terminal/transcript", h.terminalTranscript).Methods("GET")
	r.HandleFunc("/terminal/clear", h.terminalClear).Methods("POST")
	r.HandleFunc("/terminal/refresh", h.terminalRefresh).Methods("POST")
	r.HandleFunc("/terminal/launch", h.terminalLaunch).Methods("POST")
	r.HandleFunc("/terminal/open", h.terminalOpen).Methods("POST")
	r.HandleFunc("/terminal/stop", h.terminalStop).Methods("POST")
	r.HandleFunc("/terminal/install", h.terminalInstall).Methods("GET")
	r.HandleFunc("/terminal/events", h.terminalEvents).Methods("GET")

	r.HandleFunc("/settings", h.getSettings).Methods("GET")
	r.HandleFunc("/settings", h.updateSettings).Methods("PUT")

	r.HandleFunc("/state", h.listState).Methods("GET")
	r.HandleFunc("/state/{key}", h.getState).Methods("GET")
	r.HandleFunc("/state/{key}", h.putState).Methods("PUT")
	r.HandleFunc("/secrets/{name}", h.getSecret).Methods("GET")
	r.HandleFunc("/secrets/{name}", h.putSecret).Methods("PUT")
	r.HandleFunc("/secrets/{name}", h.deleteSecret).Methods("DELETE")
}

// --- Session / workspace ---

func (h *editorHandler) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Session.State())
}

func (h *editorHandler) getWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.deps.Session.Workspace()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no workspace loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace":   ws,
		"active_file": h.deps.Session.ActiveFile(),
	})
}

func (h *editorHandler) loadWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		req.Path = h.deps.Settings.Get().WorkspacePath
	}
	if req.Path == "" {
		writeJSONError(w, http.StatusBadRequest, "path is required")
		return
	}

	ws, err := h.deps.Session.LoadWorkspace(r.Context(), req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	h.deps.EventBus.Broadcast(EventWorkspaceLoaded, map[string]string{"path": ws.Path})
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace":   ws,
		"active_file": h.deps.Session.ActiveFile(),
	})
}

// --- Open files ---

func (h *editorHandler) listOpenFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"files":           h.deps.Session.Files(),
		"active_file":     h.deps.Session.ActiveFile(),
		"unsaved_changes": h.deps.Session.UnsavedChanges(),
	})
}

type fileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (h *editorHandler) openFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !decode(w, r, &req) || !requirePath(w, req.Path) {
		return
	}
	f, err := h.deps.Session.OpenFile(r.Context(), req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	h.deps.EventBus.Broadcast(EventFileOpened, map[string]string{"path": f.Path})
	writeJSON(w, http.StatusOK, f)
}

func (h *editorHandler) updateContent(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !decode(w, r, &req) || !requirePath(w, req.Path) {
		return
	}
	f, err := h.deps.Session.UpdateFileContent(req.Path, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file":            f,
		"unsaved_changes": h.deps.Session.UnsavedChanges(),
	})
}

func (h *editorHandler) saveFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !decode(w, r, &req) || !requirePath(w, req.Path) {
		return
	}
	if err := h.deps.Session.SaveFile(r.Context(), req.Path, req.Content); err != nil {
		writeError(w, err)
		return
	}
	h.deps.EventBus.Broadcast(EventFileSaved, map[string]string{"path": req.Path})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"path":            req.Path,
		"size":            len(req.Content),
		"unsaved_changes": h.deps.Session.UnsavedChanges(),
	})
}

// --- Filesystem ---

func resourceParam(r *http.Request) (wickfs.Resource, bool) {
	p := r.URL.Query().Get("path")
	if p == "" {
		return wickfs.Resource{}, false
	}
	return wickfs.ParseResource(p), true
}

func (h *editorHandler) fsList(w http.ResponseWriter, r *http.Request) {
	res, ok := resourceParam(r)
	if !ok {
		res = wickfs.Workspace("/")
	}
	entries, err := h.deps.FS.Ls(r.Context(), res)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []wickfs.FileStat{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": res.String(), "entries": entries})
}

func (h *editorHandler) fsRead(w http.ResponseWriter, r *http.Request) {
	res, ok := resourceParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "path is required")
		return
	}
	data, err := h.deps.FS.ReadFile(r.Context(), res)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": res.String(), "content": string(data)})
}

type fsRequest struct {
	Path string `json:"path"`
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *editorHandler) fsSingle(w http.ResponseWriter, r *http.Request, op func(context.Context, wickfs.Resource) error) {
	var req fsRequest
	if !decode(w, r, &req) || !requirePath(w, req.Path) {
		return
	}
	res := wickfs.ParseResource(req.Path)
	if err := op(r.Context(), res); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": res.String()})
}

func (h *editorHandler) fsPair(w http.ResponseWriter, r *http.Request, op func(context.Context, wickfs.Resource, wickfs.Resource) error) {
	var req fsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		writeJSONError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	from, to := wickfs.ParseResource(req.From), wickfs.ParseResource(req.To)
	if err := op(r.Context(), from, to); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "from": from.String(), "to": to.String()})
}

func (h *editorHandler) fsMkdir(w http.ResponseWriter, r *http.Request)  { h.fsSingle(w, r, h.deps.FS.Mkdir) }
func (h *editorHandler) fsRmdir(w http.ResponseWriter, r *http.Request)  { h.fsSingle(w, r, h.deps.FS.Rmdir) }
func (h *editorHandler) fsDelete(w http.ResponseWriter, r *http.Request) { h.fsSingle(w, r, h.deps.FS.Delete) }
func (h *editorHandler) fsRename(w http.ResponseWriter, r *http.Request) { h.fsPair(w, r, h.deps.FS.Rename) }
func (h *editorHandler) fsCopy(w http.ResponseWriter, r *http.Request)   { h.fsPair(w, r, h.deps.FS.Copy) }

// --- Extensions / languages ---

func (h *editorHandler) listExtensions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"extensions": h.deps.Session.Extensions()})
}

func (h *editorHandler) installExtension(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	ext, err := h.deps.Session.InstallExtension(req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.deps.EventBus.Broadcast(EventExtensionChanged, ext)
	writeJSON(w, http.StatusCreated, ext)
}

func (h *editorHandler) activateExtension(w http.ResponseWriter, r *http.Request) {
	h.setExtension(w, mux.Vars(r)["id"], h.deps.Session.ActivateExtension)
}

func (h *editorHandler) deactivateExtension(w http.ResponseWriter, r *http.Request) {
	h.setExtension(w, mux.Vars(r)["id"], h.deps.Session.DeactivateExtension)
}

// setExtension reports an unknown id as changed=false with 200: activating
// an extension that is not installed is a no-op, not a failure.
func (h *editorHandler) setExtension(w http.ResponseWriter, id string, fn func(string) bool) {
	changed := fn(id)
	resp := map[string]any{"id": id, "changed": changed}
	if ext, ok := h.deps.Session.Extension(id); ok {
		resp["extension"] = ext
		h.deps.EventBus.Broadcast(EventExtensionChanged, ext)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *editorHandler) languageForPath(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	lang := editor.LanguageFor(p)
	writeJSON(w, http.StatusOK, map[string]any{
		"path":     p,
		"language": lang,
		"support":  editor.LanguageSupport(lang),
	})
}

func (h *editorHandler) languageSupport(w http.ResponseWriter, r *http.Request) {
	lang := mux.Vars(r)["lang"]
	writeJSON(w, http.StatusOK, map[string]any{
		"language": lang,
		"support":  editor.LanguageSupport(lang),
	})
}

// --- Terminal ---

func (h *editorHandler) terminalState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Terminal.Snapshot())
}

func (h *editorHandler) terminalExec(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command *string `json:"command"`
	}
	if !decode(w, r, &req) {
		return
	}

	var err error
	if req.Command == nil {
		err = h.deps.Terminal.ExecuteInput(r.Context())
	} else {
		err = h.deps.Terminal.Execute(r.Context(), *req.Command)
	}

	resp := map[string]any{
		"state":      h.deps.Terminal.Snapshot(),
		"transcript": h.deps.Terminal.Transcript().Lines(),
	}
	if err != nil {
		resp["error"] = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *editorHandler) terminalInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.deps.Terminal.SetInput(req.Input)
	writeJSON(w, http.StatusOK, map[string]string{"input": h.deps.Terminal.Input()})
}

func (h *editorHandler) terminalTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"lines": h.deps.Terminal.Transcript().Lines()})
}

func (h *editorHandler) terminalClear(w http.ResponseWriter, r *http.Request) {
	h.deps.Terminal.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *editorHandler) terminalRefresh(w http.ResponseWriter, r *http.Request) {
	available := h.deps.Terminal.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"available": available,
		"state":     h.deps.Terminal.Snapshot(),
	})
}

func (h *editorHandler) terminalLaunch(w http.ResponseWriter, r *http.Request) {
	if h.deps.Launcher == nil {
		writeError(w, backend.ErrToolUnavailable)
		return
	}
	if err := h.deps.Launcher.Launch(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "launched"})
}

func (h *editorHandler) terminalOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir string `json:"dir"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Dir == "" {
		req.Dir = h.deps.Terminal.Workdir()
	}
	if h.deps.Launcher == nil {
		writeError(w, backend.ErrToolUnavailable)
		return
	}
	if err := h.deps.Launcher.OpenAt(r.Context(), req.Dir); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "dir": req.Dir})
}

func (h *editorHandler) terminalStop(w http.ResponseWriter, r *http.Request) {
	if h.deps.Launcher == nil {
		writeError(w, backend.ErrToolUnavailable)
		return
	}
	if err := h.deps.Launcher.Stop(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// terminalInstall tells the client where to get the terminal app. The page is
// opened on the device, not fetched here.
func (h *editorHandler) terminalInstall(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": backend.InstallURL})
}

// --- Settings ---

func (h *editorHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Settings.Get())
}

func (h *editorHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	s, err := h.deps.Settings.Update(r.Context(), body)
	if err != nil {
		var fsErr *wickfs.Error
		if errors.As(err, &fsErr) {
			writeError(w, err)
			return
		}
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.deps.EventBus.Broadcast(EventSettingsChanged, s)
	writeJSON(w, http.StatusOK, s)
}

// --- Extension context state / secrets ---

func (h *editorHandler) listState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"keys": h.deps.Context.WorkspaceState().Keys()})
}

func (h *editorHandler) getState(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	v := h.deps.Context.WorkspaceState().Get(key, nil)
	if v == nil {
		writeJSONError(w, http.StatusNotFound, "no value for "+key)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
}

func (h *editorHandler) putState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value any `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	key := mux.Vars(r)["key"]
	h.deps.Context.WorkspaceState().Update(key, req.Value)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": req.Value})
}

func (h *editorHandler) getSecret(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	v, ok, err := h.deps.Context.Secrets().Get(name)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no secret "+name)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": v})
}

func (h *editorHandler) putSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	name := mux.Vars(r)["name"]
	if err := h.deps.Context.Secrets().Store(name, req.Value); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "name": name})
}

func (h *editorHandler) deleteSecret(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	h.deps.Context.Secrets().Delete(name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "name": name})
}

// --- Events (SSE relay) ---

func (h *editorHandler) sessionEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the stream opens so nothing published after the
	// client sees the headers is missed.
	ch := h.deps.EventBus.Subscribe()
	defer h.deps.EventBus.Unsubscribe(ch)

	sseWriter := sse.NewWriter(w, 3000)
	if sseWriter == nil {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			sseWriter.SendEvent(ev.Type, ev.Data)
		case <-ticker.C:
			sseWriter.SendComment("keep-alive")
		}
	}
}

func (h *editorHandler) terminalEvents(w http.ResponseWriter, r *http.Request) {
	tr := h.deps.Terminal.Transcript()
	ch := tr.Subscribe()
	defer tr.Unsubscribe(ch)

	sseWriter := sse.NewWriter(w, 3000)
	if sseWriter == nil {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-ch:
			if c.Type == terminal.ChangeClear {
				sseWriter.SendEvent(c.Type, map[string]string{})
				continue
			}
			sseWriter.SendEvent(c.Type, c.Line)
		case <-ticker.C:
			sseWriter.SendComment("keep-alive")
		}
	}
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func requirePath(w http.ResponseWriter, p string) bool {
	if p == "" {
		writeJSONError(w, http.StatusBadRequest, "path is required")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, backend.ErrCommandRejected),
		errors.Is(err, editor.ErrInvalidExtension):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrUnknownFile),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrExist):
		return http.StatusConflict
	case errors.Is(err, backend.ErrToolUnavailable),
		errors.Is(err, terminal.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, wickfs.ErrReadFailed),
		errors.Is(err, wickfs.ErrWriteFailed),
		errors.Is(err, wickfs.ErrDeleteFailed),
		errors.Is(err, wickfs.ErrRenameFailed),
		errors.Is(err, wickfs.ErrCopyFailed),
		errors.Is(err, wickfs.ErrDirectoryOp):
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		logging.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
