package model

import (
	"time"
)

// LogKind tags a single log entry.
type LogKind string

const (
	LogInfo    LogKind = "info"
	LogStdout  LogKind = "stdout"
	LogStderr  LogKind = "stderr"
	LogError   LogKind = "error"
	LogSuccess LogKind = "success"
)

// LogEntry is one timestamped unit of captured output or summary text.
type LogEntry struct {
	Time    time.Time `json:"timestamp"`
	Message string    `json:"message"`
	Kind    LogKind   `json:"type"`
}

// EventKind names a lifecycle transition of a run.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventLog     EventKind = "log"
	EventStopped EventKind = "stopped"
)

// Event is a lifecycle notification published on the bus.
// Entry is set only for EventLog, ExitCode is meaningful only for
// EventStopped and always serialized there, a zero code is a real
// exit status.
type Event struct {
	Kind     EventKind `json:"event"`
	ScriptID string    `json:"script_id"`
	RunID    string    `json:"run_id"`
	Entry    *LogEntry `json:"log,omitempty"`
	ExitCode int       `json:"exit_code"`
}

// RunRecord describes one execution attempt of a script.
// Only the supervisor owning the run mutates it.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	ScriptID  string    `json:"script_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitzero"`
	ExitCode  int       `json:"exit_code"`
	Failure   string    `json:"failure,omitempty"`
}

// Descriptor describes one runnable script. Immutable once discovered.
// ID is the canonical absolute path of the script, which makes the
// mapping path -> identifier stable and collision free.
type Descriptor struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Category string    `json:"category"`
	Size     int64     `json:"size,omitempty"`
	Modified time.Time `json:"modified,omitzero"`
	Manual   bool      `json:"manual,omitempty"`
}
