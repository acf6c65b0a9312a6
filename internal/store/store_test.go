package store_test

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/scriptdeck/scriptdeck/internal/model"
	"github.com/scriptdeck/scriptdeck/internal/store"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.Context(), filepath.Join(t.TempDir(), "scriptdeck.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestFolders(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := t.Context()

	folders, err := s.Folders(ctx)
	require.NoError(t, err)
	require.Empty(t, folders)

	require.NoError(t, s.SetFolders(ctx, []string{"/opt/scripts", "/home/alice/bin"}))
	folders, err = s.Folders(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"/home/alice/bin", "/opt/scripts"}, folders)

	require.NoError(t, s.SetFolders(ctx, []string{"/tmp/only"}))
	folders, err = s.Folders(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"/tmp/only"}, folders)
}

func TestScripts(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := t.Context()

	d := model.Descriptor{
		ID:       "/data/uploads/report.py",
		Name:     "report",
		Path:     "/data/uploads/report.py",
		Category: "Uploaded",
	}
	require.NoError(t, s.AddScript(ctx, d))

	scripts, err := s.Scripts(ctx)
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	require.Equal(t, d.ID, scripts[0].ID)
	require.True(t, scripts[0].Manual)

	require.NoError(t, s.RemoveScript(ctx, d.ID))
	err = s.RemoveScript(ctx, d.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFavourites(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := t.Context()

	fav, err := s.ToggleFavourite(ctx, "backup")
	require.NoError(t, err)
	require.True(t, fav)

	favs, err := s.Favourites(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"backup"}, favs)

	fav, err = s.ToggleFavourite(ctx, "backup")
	require.NoError(t, err)
	require.False(t, fav)

	favs, err = s.Favourites(ctx)
	require.NoError(t, err)
	require.Empty(t, favs)
}

func TestRecents(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := t.Context()

	for i := range 12 {
		require.NoError(t, s.TouchRecent(ctx, fmt.Sprintf("script-%02d", i)))
	}
	// touching an existing name moves it to the front
	require.NoError(t, s.TouchRecent(ctx, "script-05"))

	recents, err := s.Recents(ctx)
	require.NoError(t, err)
	require.Len(t, recents, 10)
	require.Equal(t, "script-05", recents[0])
	require.Equal(t, "script-11", recents[1])
	require.NotContains(t, recents, "script-00")
	require.NotContains(t, recents, "script-01")
}

func TestHistory(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := t.Context()

	base := time.Now().Add(-time.Hour)
	for i := range 3 {
		rec := model.RunRecord{
			RunID:     fmt.Sprintf("run-%d", i),
			ScriptID:  "/opt/backup.py",
			Name:      "backup",
			Path:      "/opt/backup.py",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			StoppedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			ExitCode:  i,
		}
		require.NoError(t, s.Record(ctx, rec))
	}

	history, err := s.History(ctx, "/opt/backup.py", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "run-2", history[0].RunID)
	require.Equal(t, "run-1", history[1].RunID)
	require.Equal(t, 2, history[0].ExitCode)
	require.WithinDuration(t, base.Add(2*time.Minute), history[0].StartedAt, time.Second)

	history, err = s.History(ctx, "/opt/unknown.py", 10)
	require.NoError(t, err)
	require.Empty(t, history)
}
