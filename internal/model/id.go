package model

import (
	"fmt"
	"path/filepath"
)

// ScriptID resolves path to the identifier of a script: its cleaned
// absolute path. The same path always maps to the same identifier and
// two distinct scripts never collide, unlike a truncated hash would.
func ScriptID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// ScriptName derives a display name from a script path, the base name
// without its extension.
func ScriptName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
