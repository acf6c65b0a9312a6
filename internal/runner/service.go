package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/scriptdeck/scriptdeck/internal/model"
)

// defaultGrace is how long a stopped script may keep running after
// SIGTERM before it gets killed.
const defaultGrace = 5 * time.Second

// HistorySink receives the record of every finished run.
// Implementations must be safe for concurrent use.
type HistorySink interface {
	Record(ctx context.Context, rec model.RunRecord) error
}

// Options tune a Service. The zero value is usable.
type Options struct {
	// LogCap bounds per run log history, DefaultLogCap when zero.
	LogCap int
	// Grace overrides the stop grace period, defaultGrace when zero.
	Grace time.Duration
	// History, when set, persists finished runs.
	History HistorySink
}

// Service is the composition root of the supervision engine. It owns
// the registry, the log book and the event bus; nothing here lives in
// package level state.
type Service struct {
	reg     *Registry
	book    *LogBook
	bus     *Bus
	history HistorySink
	grace   time.Duration
	wg      sync.WaitGroup
}

func NewService(opts Options) *Service {
	grace := opts.Grace
	if grace == 0 {
		grace = defaultGrace
	}
	return &Service{
		reg:     NewRegistry(),
		book:    NewLogBook(opts.LogCap),
		bus:     NewBus(),
		history: opts.History,
		grace:   grace,
	}
}

// StartRun launches the script at path under its canonical identifier.
// It returns model.ErrNotFound when path does not name a regular file,
// model.ErrAlreadyRunning when the script has an active run, or the
// spawn error. Everything after a successful return is reported via
// the bus and the log book only.
func (s *Service) StartRun(ctx context.Context, path, name string) (model.RunRecord, error) {
	id, err := model.ScriptID(path)
	if err != nil {
		return model.RunRecord{}, err
	}
	info, err := os.Stat(id)
	if err != nil || !info.Mode().IsRegular() {
		return model.RunRecord{}, fmt.Errorf("script %q: %w", path, model.ErrNotFound)
	}
	if name == "" {
		name = model.ScriptName(id)
	}

	rec := model.RunRecord{
		RunID:    uuid.NewString(),
		ScriptID: id,
		Name:     name,
		Path:     id,
	}
	sup := newSupervisor(rec, s.book, s.bus, s.reg, s.history, s.grace)
	if !s.reg.TryRegister(id, sup) {
		return model.RunRecord{}, fmt.Errorf("script %q: %w", name, model.ErrAlreadyRunning)
	}

	s.book.Reset(id)
	if err := sup.spawn(command(id)); err != nil {
		s.reg.Unregister(id)
		sup.abort()
		// no started event was published, so keep the failure out of
		// the bus as well and only leave a trace in the log book
		s.book.Append(id, model.LogEntry{
			Time:    time.Now(),
			Message: fmt.Sprintf("starting %s: %v", name, err),
			Kind:    model.LogError,
		})
		return model.RunRecord{}, fmt.Errorf("spawning %q: %w", name, err)
	}

	s.bus.Publish(model.Event{
		Kind:     model.EventStarted,
		ScriptID: id,
		RunID:    rec.RunID,
	})
	sup.log("starting "+name, model.LogInfo)
	slog.InfoContext(ctx, "script started", "script_id", id, "run_id", rec.RunID, "pid", sup.cmd.Process.Pid)

	s.wg.Go(func() {
		sup.run(context.WithoutCancel(ctx))
	})
	return sup.Record(), nil
}

// StopRun terminates the active run of id, gracefully first and by
// force after the grace period. model.ErrNotRunning when there is none.
func (s *Service) StopRun(ctx context.Context, id string) error {
	sup, ok := s.reg.Get(id)
	if !ok {
		return fmt.Errorf("script %q: %w", id, model.ErrNotRunning)
	}
	slog.InfoContext(ctx, "stopping script", "script_id", id)
	return sup.Stop(ctx)
}

// Logs returns the buffered history of id, empty for an unknown id.
func (s *Service) Logs(id string) []model.LogEntry {
	return s.book.Read(id)
}

// ListRunning returns the identifiers with an active run.
func (s *Service) ListRunning() []string {
	return s.reg.Active()
}

// Running reports whether id has an active run.
func (s *Service) Running(id string) bool {
	_, ok := s.reg.Get(id)
	return ok
}

// Subscribe returns a stream of lifecycle events, ended by ctx.
func (s *Service) Subscribe(ctx context.Context) <-chan model.Event {
	return s.bus.Subscribe(ctx)
}

// Close stops every active run and waits for all run goroutines.
func (s *Service) Close(ctx context.Context) {
	for _, id := range s.reg.Active() {
		if err := s.StopRun(ctx, id); err != nil {
			slog.ErrorContext(ctx, "stopping script on close", "script_id", id, "error", err)
		}
	}
	s.wg.Wait()
	s.bus.Close()
}

// command picks the interpreter by extension; anything unknown must be
// executable on its own.
func command(path string) *exec.Cmd {
	var cmd *exec.Cmd
	switch filepath.Ext(path) {
	case ".py":
		cmd = exec.Command("python3", path)
	case ".sh":
		cmd = exec.Command("sh", path)
	default:
		cmd = exec.Command(path)
	}
	cmd.Env = append(os.Environ(),
		"PYTHONIOENCODING=utf-8",
		"PYTHONUNBUFFERED=1",
	)
	// own process group, so stopping the script also stops its children
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}
