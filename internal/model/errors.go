package model

import (
	"errors"
)

var (
	// ErrNotFound means the script path does not exist or is not a regular file.
	ErrNotFound = errors.New("script not found")
	// ErrAlreadyRunning means the identifier already has an active run.
	ErrAlreadyRunning = errors.New("script already running")
	// ErrNotRunning means a stop was requested for an identifier with no active run.
	ErrNotRunning = errors.New("script not running")
)
