package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/scriptdeck/scriptdeck/internal/discovery"
	"github.com/scriptdeck/scriptdeck/internal/model"
)

// handleScripts answers with everything the frontend needs to draw the
// script list in one round trip.
func (s *Server) handleScripts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stored, err := s.store.Folders(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "loading folders", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	folders := append(slices.Clone(s.folders), stored...)
	scripts := discovery.New(folders, s.exts).Scan(ctx)

	seen := make(map[string]bool, len(scripts))
	for _, d := range scripts {
		seen[d.ID] = true
	}
	manual, err := s.store.Scripts(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "loading manual scripts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	for _, d := range manual {
		if !seen[d.ID] {
			scripts = append(scripts, d)
		}
	}

	favourites, err := s.store.Favourites(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "loading favourites", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	recent, err := s.store.Recents(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "loading recents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scripts":    scripts,
		"running":    s.runs.ListRunning(),
		"favourites": favourites,
		"recent":     recent,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id_required")
		return
	}

	rec, err := s.runs.StartRun(ctx, req.ID, "")
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
		return
	case errors.Is(err, model.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "already_running")
		return
	case err != nil:
		slog.ErrorContext(ctx, "starting script", "script_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	if err := s.store.TouchRecent(ctx, rec.Name); err != nil {
		slog.ErrorContext(ctx, "recording recent script", "name", rec.Name, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": rec})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id_required")
		return
	}

	err := s.runs.StopRun(ctx, req.ID)
	switch {
	case errors.Is(err, model.ErrNotRunning):
		writeError(w, http.StatusConflict, "not_running")
		return
	case err != nil:
		slog.ErrorContext(ctx, "stopping script", "script_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id_required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": s.runs.Logs(id)})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	// Base strips any directory part a hostile client might send.
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || !slices.Contains(s.exts, filepath.Ext(name)) {
		writeError(w, http.StatusBadRequest, "unsupported_file")
		return
	}

	if err := os.MkdirAll(s.uploads, 0o755); err != nil {
		slog.ErrorContext(ctx, "creating upload folder", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	dst := filepath.Join(s.uploads, name)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		slog.ErrorContext(ctx, "creating uploaded script", "path", dst, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	_, copyErr := io.Copy(out, file)
	if err := out.Close(); copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		slog.ErrorContext(ctx, "writing uploaded script", "path", dst, "error", copyErr)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	id, err := model.ScriptID(dst)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	info, err := os.Stat(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	desc := model.Descriptor{
		ID:       id,
		Name:     model.ScriptName(id),
		Path:     id,
		Category: "uploaded",
		Size:     info.Size(),
		Modified: info.ModTime(),
		Manual:   true,
	}
	if err := s.store.AddScript(ctx, desc); err != nil {
		slog.ErrorContext(ctx, "registering uploaded script", "script_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	slog.InfoContext(ctx, "script uploaded", "script_id", id)
	writeJSON(w, http.StatusCreated, map[string]any{"script": desc})
}

func (s *Server) handleFoldersGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	folders, err := s.store.Folders(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "loading folders", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func (s *Server) handleFoldersPut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Folders []string `json:"folders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "folders_required")
		return
	}
	if err := s.store.SetFolders(ctx, req.Folders); err != nil {
		slog.ErrorContext(ctx, "storing folders", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": req.Folders})
}

func (s *Server) handleFavourite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	favourite, err := s.store.ToggleFavourite(ctx, req.Name)
	if err != nil {
		slog.ErrorContext(ctx, "toggling favourite", "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": req.Name, "favourite": favourite})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id_required")
		return
	}
	runs, err := s.store.History(ctx, id, 0)
	if err != nil {
		slog.ErrorContext(ctx, "loading history", "script_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
