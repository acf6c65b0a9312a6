package model

import (
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrDetails flattens a CUE validation error into one human readable
// line per cause, suitable for logging before refusing a config file.
func CueErrDetails(err error) []string {
	if err == nil {
		return nil
	}

	var out []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := normalizePath(e.Path()); path != "" {
			msg = path + ": " + msg
		}
		for _, pos := range cueerrors.Positions(e) {
			if pos.Filename() == "" {
				continue
			}
			msg += fmt.Sprintf(" (%s:%d:%d)", pos.Filename(), pos.Line(), pos.Column())
			break
		}
		out = append(out, msg)
	}
	return out
}

func normalizePath(p []string) string {
	if len(p) == 0 {
		return ""
	}
	// Remove leading definition (#Config)
	if strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}
