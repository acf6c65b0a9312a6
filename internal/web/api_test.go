package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scriptdeck/scriptdeck/internal/model"
	"github.com/scriptdeck/scriptdeck/internal/runner"
	"github.com/scriptdeck/scriptdeck/internal/store"
	"github.com/scriptdeck/scriptdeck/internal/web"
)

type fixture struct {
	handler http.Handler
	store   *store.Store
	scripts string
	uploads string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "deck.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	runs := runner.NewService(runner.Options{History: st})
	t.Cleanup(func() {
		runs.Close(context.Background())
	})

	scripts := filepath.Join(dir, "scripts")
	require.NoError(t, os.MkdirAll(scripts, 0o755))
	srv := web.NewServer(web.Options{
		Runs:       runs,
		Store:      st,
		Folders:    []string{scripts},
		Extensions: []string{".sh", ".py"},
		UploadDir:  filepath.Join(dir, "uploads"),
	})
	return &fixture{
		handler: srv.Handler(),
		store:   st,
		scripts: scripts,
		uploads: filepath.Join(dir, "uploads"),
	}
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
}

func (f *fixture) writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(f.scripts, name)
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755)
	require.NoError(t, err)
	return path
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(blob)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestScriptsListing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	path := f.writeScript(t, "backup.sh", "echo done")
	f.writeScript(t, "notes.txt", "not a script")

	rec := f.do(t, http.MethodGet, "/api/scripts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Scripts    []model.Descriptor `json:"scripts"`
		Running    []string           `json:"running"`
		Favourites []string           `json:"favourites"`
		Recent     []string           `json:"recent"`
	}](t, rec)
	require.Len(t, body.Scripts, 1)
	require.Equal(t, "backup", body.Scripts[0].Name)
	require.Equal(t, path, body.Scripts[0].Path)
	require.Empty(t, body.Running)
	require.Empty(t, body.Favourites)
	require.Empty(t, body.Recent)
}

func TestScriptsListingIncludesManual(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	err := f.store.AddScript(context.Background(), model.Descriptor{
		ID: "/opt/tools/cleanup.py", Name: "cleanup", Path: "/opt/tools/cleanup.py", Manual: true,
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/scripts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Scripts []model.Descriptor `json:"scripts"`
	}](t, rec)
	require.Len(t, body.Scripts, 1)
	require.True(t, body.Scripts[0].Manual)
}

func TestRunStopAndLogs(t *testing.T) {
	t.Parallel()
	requireSh(t)
	f := newFixture(t)
	path := f.writeScript(t, "greet.sh", "echo hello")

	rec := f.do(t, http.MethodPost, "/api/scripts/run", map[string]string{"id": path})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Run model.RunRecord `json:"run"`
	}](t, rec)
	require.NotEmpty(t, body.Run.RunID)
	require.Equal(t, path, body.Run.ScriptID)

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/api/scripts/logs?id="+path, nil)
		logs := decode[struct {
			Logs []model.LogEntry `json:"logs"`
		}](t, rec)
		for _, entry := range logs.Logs {
			if entry.Kind == model.LogSuccess {
				return true
			}
		}
		return false
	}, 10*time.Second, 20*time.Millisecond)

	// the run is over, so stopping it now is a conflict
	rec = f.do(t, http.MethodPost, "/api/scripts/stop", map[string]string{"id": path})
	require.Equal(t, http.StatusConflict, rec.Code)

	recents, err := f.store.Recents(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"greet"}, recents)
}

func TestRunUnknownScript(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/scripts/run", map[string]string{"id": "/no/such/script.sh"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunDuplicate(t *testing.T) {
	t.Parallel()
	requireSh(t)
	f := newFixture(t)
	path := f.writeScript(t, "slow.sh", "sleep 60")

	rec := f.do(t, http.MethodPost, "/api/scripts/run", map[string]string{"id": path})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/scripts/run", map[string]string{"id": path})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/scripts/stop", map[string]string{"id": path})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRunRequiresID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/scripts/run", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/scripts/logs", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "deploy.sh")
	require.NoError(t, err)
	_, err = part.Write([]byte("#!/bin/sh\necho deploy"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/scripts/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode[struct {
		Script model.Descriptor `json:"script"`
	}](t, rec)
	require.True(t, body.Script.Manual)
	require.Equal(t, "deploy", body.Script.Name)
	require.FileExists(t, filepath.Join(f.uploads, "deploy.sh"))

	scripts, err := f.store.Scripts(context.Background())
	require.NoError(t, err)
	require.Len(t, scripts, 1)
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/scripts/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFolders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/folders", map[string]any{"folders": []string{"/srv/jobs", "/opt/cron"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/folders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Folders []string `json:"folders"`
	}](t, rec)
	require.ElementsMatch(t, []string{"/srv/jobs", "/opt/cron"}, body.Folders)
}

func TestFavouriteToggle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/favourites", map[string]string{"name": "backup"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Favourite bool `json:"favourite"`
	}](t, rec)
	require.True(t, body.Favourite)

	rec = f.do(t, http.MethodPost, "/api/favourites", map[string]string{"name": "backup"})
	body = decode[struct {
		Favourite bool `json:"favourite"`
	}](t, rec)
	require.False(t, body.Favourite)
}

func TestHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	err := f.store.Record(context.Background(), model.RunRecord{
		RunID: "r1", ScriptID: "/srv/jobs/sync.sh", Name: "sync", Path: "/srv/jobs/sync.sh",
		StartedAt: time.Now().Add(-time.Minute), StoppedAt: time.Now(), ExitCode: 0,
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/history?id=/srv/jobs/sync.sh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Runs []model.RunRecord `json:"runs"`
	}](t, rec)
	require.Len(t, body.Runs, 1)
	require.Equal(t, "r1", body.Runs[0].RunID)

	rec = f.do(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
