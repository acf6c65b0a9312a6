package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/scriptdeck/scriptdeck/internal/runner"
	"github.com/scriptdeck/scriptdeck/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Options configure a Server. Runs and Store are required.
type Options struct {
	// Runs supervises script processes.
	Runs *runner.Service
	// Store persists folders, manual scripts, favourites and history.
	Store *store.Store
	// Folders are always scanned, in addition to the stored ones.
	Folders []string
	// Extensions limits discovery and uploads, e.g. ".py".
	Extensions []string
	// UploadDir receives uploaded scripts.
	UploadDir string
}

// Server is the HTTP front of the runner. It holds no request state
// of its own; everything lives in the runner service and the store.
type Server struct {
	runs    *runner.Service
	store   *store.Store
	folders []string
	exts    []string
	uploads string
}

func NewServer(opts Options) *Server {
	return &Server{
		runs:    opts.Runs,
		store:   opts.Store,
		folders: opts.Folders,
		exts:    opts.Extensions,
		uploads: opts.UploadDir,
	}
}

// Handler returns the routed API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.register(mux)
	return mux
}

func (s *Server) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/scripts", s.handleScripts)
	mux.HandleFunc("POST /api/scripts/run", s.handleRun)
	mux.HandleFunc("POST /api/scripts/stop", s.handleStop)
	mux.HandleFunc("GET /api/scripts/logs", s.handleLogs)
	mux.HandleFunc("POST /api/scripts/upload", s.handleUpload)
	mux.HandleFunc("GET /api/folders", s.handleFoldersGet)
	mux.HandleFunc("PUT /api/folders", s.handleFoldersPut)
	mux.HandleFunc("POST /api/favourites", s.handleFavourite)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/events", s.handleEvents)
}

// ListenAndServe serves the API on addr until ctx is cancelled, then
// shuts the server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}
