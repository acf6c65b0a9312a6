package walk

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
)

// Entry is one regular file found during a walk. Path is absolute.
type Entry struct {
	Path string
	Info fs.FileInfo
}

// Dirs recursively walks every dir and yields an Entry per regular
// file found, or an error when file information retrieval fails. A
// directory that cannot be opened yields one error and is skipped.
// Symlinks are not followed. Cancelling ctx ends the walk.
func Dirs(ctx context.Context, dirs ...string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, dir := range dirs {
			root, err := os.OpenRoot(dir)
			if err != nil {
				if !yield(Entry{Path: dir}, err) {
					return
				}
				continue
			}
			ok := walkRoot(ctx, root, yield)
			_ = root.Close()
			if !ok {
				return
			}
		}
	}
}

func walkRoot(ctx context.Context, root *os.Root, yield func(Entry, error) bool) bool {
	more := true
	fn := func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		entry := Entry{
			Path: filepath.Join(root.Name(), path),
		}
		if err == nil {
			info, infoErr := d.Info()
			if infoErr != nil {
				err = infoErr
			} else {
				if !info.Mode().IsRegular() {
					return nil
				}
				entry.Info = info
			}
		}
		if !yield(entry, err) {
			more = false
			return fs.SkipAll
		}
		return nil
	}
	_ = fs.WalkDir(root.FS(), ".", fn)
	return more
}
