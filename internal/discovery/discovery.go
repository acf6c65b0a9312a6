package discovery

import (
	"context"
	"iter"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scriptdeck/scriptdeck/internal/model"
	"github.com/scriptdeck/scriptdeck/internal/parallel"
	"github.com/scriptdeck/scriptdeck/internal/walk"
)

// DefaultExtensions is the allow list applied when the config leaves
// extensions unset.
var DefaultExtensions = []string{".py", ".sh"}

const describeWorkers = 4

// Discoverer enumerates runnable scripts below the monitored folders.
// It holds no state between scans; every Scan reflects the current
// filesystem.
type Discoverer struct {
	folders []string
	exts    map[string]struct{}
}

func New(folders, extensions []string) *Discoverer {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Discoverer{
		folders: folders,
		exts:    exts,
	}
}

// Scan walks every monitored folder and returns a descriptor per
// script found, sorted by path. Unreadable folders or files are
// logged and skipped.
func (d *Discoverer) Scan(ctx context.Context) []model.Descriptor {
	var out []model.Descriptor
	for _, folder := range d.folders {
		category := filepath.Base(folder)
		scripts := parallel.Map(ctx, describeWorkers, d.candidates(ctx, folder), func(_ context.Context, e walk.Entry) (model.Descriptor, error) {
			return describe(e, category)
		})
		for desc, err := range scripts {
			if err != nil {
				slog.DebugContext(ctx, "describing script failed", "path", desc.Path, "error", err)
				continue
			}
			out = append(out, desc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// candidates filters the walk down to files with an allowed extension.
func (d *Discoverer) candidates(ctx context.Context, folder string) iter.Seq2[walk.Entry, error] {
	return func(yield func(walk.Entry, error) bool) {
		for entry, err := range walk.Dirs(ctx, folder) {
			if err != nil {
				slog.DebugContext(ctx, "walking folder", "folder", folder, "path", entry.Path, "error", err)
				continue
			}
			if _, ok := d.exts[strings.ToLower(filepath.Ext(entry.Path))]; !ok {
				continue
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func describe(e walk.Entry, category string) (model.Descriptor, error) {
	id, err := model.ScriptID(e.Path)
	if err != nil {
		return model.Descriptor{Path: e.Path}, err
	}
	return model.Descriptor{
		ID:       id,
		Name:     model.ScriptName(id),
		Path:     id,
		Category: category,
		Size:     e.Info.Size(),
		Modified: e.Info.ModTime(),
	}, nil
}
