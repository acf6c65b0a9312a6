package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/scriptdeck/scriptdeck/internal/model"
)

// maxLineSize bounds a single captured output line.
const maxLineSize = 1024 * 1024

// Supervisor owns the full lifecycle of exactly one child process.
// Its fields are written only by its own goroutines and read by
// anybody under the mutex.
type Supervisor struct {
	mx      sync.RWMutex
	rec     model.RunRecord
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	book    *LogBook
	bus     *Bus
	reg     *Registry
	history HistorySink
	grace   time.Duration
	readers sync.WaitGroup
	spawned chan struct{}
	done    chan struct{}
}

func newSupervisor(rec model.RunRecord, book *LogBook, bus *Bus, reg *Registry, history HistorySink, grace time.Duration) *Supervisor {
	return &Supervisor{
		rec:     rec,
		book:    book,
		bus:     bus,
		reg:     reg,
		history: history,
		grace:   grace,
		spawned: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// spawn starts the child process and wires both output pipes. It does
// not wait, the caller hands the supervisor to run afterwards.
func (s *Supervisor) spawn(cmd *exec.Cmd) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	s.rec.StartedAt = time.Now()
	if err := cmd.Start(); err != nil {
		return err
	}
	s.cmd = cmd
	s.stdout = stdout
	s.stderr = stderr
	close(s.spawned)
	return nil
}

// abort retires a supervisor whose process never started. Stop waits
// on done, so a failed spawn must still close it.
func (s *Supervisor) abort() {
	close(s.done)
}

// run captures both streams, reaps the process and retires the run.
// It is the only place publishing the terminal stopped event, so the
// event fires exactly once no matter how the process died.
func (s *Supervisor) run(ctx context.Context) {
	s.readers.Go(func() {
		s.capture(ctx, s.stdout, model.LogStdout)
	})
	s.readers.Go(func() {
		s.capture(ctx, s.stderr, model.LogStderr)
	})

	// both pipes must be drained before Wait may reap the process
	s.readers.Wait()
	err := s.cmd.Wait()

	var exitCode int
	var failure string
	switch {
	case err == nil:
	case isExitError(err):
		exitCode = s.cmd.ProcessState.ExitCode()
	default:
		// supervision failure, not the child's own exit
		exitCode = -1
		failure = err.Error()
	}
	s.finalize(ctx, exitCode, failure)
}

func (s *Supervisor) capture(ctx context.Context, stream io.Reader, kind model.LogKind) {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.log(line, kind)
	}
	err := scanner.Err()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		s.log(fmt.Sprintf("reading %s: %v", kind, err), model.LogError)
		slog.ErrorContext(ctx, "capturing stream", "stream", kind, "script_id", s.rec.ScriptID, "error", err)
		// the child blocks writing into a full pipe unless somebody
		// keeps reading until it exits
		_, _ = io.Copy(io.Discard, stream)
	}
}

// log appends one entry to the book and publishes the matching event.
func (s *Supervisor) log(msg string, kind model.LogKind) {
	entry := model.LogEntry{
		Time:    time.Now(),
		Message: msg,
		Kind:    kind,
	}
	s.book.Append(s.rec.ScriptID, entry)
	s.bus.Publish(model.Event{
		Kind:     model.EventLog,
		ScriptID: s.rec.ScriptID,
		RunID:    s.rec.RunID,
		Entry:    &entry,
	})
}

func (s *Supervisor) finalize(ctx context.Context, exitCode int, failure string) {
	s.mx.Lock()
	s.rec.StoppedAt = time.Now()
	s.rec.ExitCode = exitCode
	s.rec.Failure = failure
	rec := s.rec
	s.mx.Unlock()

	switch {
	case failure != "":
		s.log("run failed: "+failure, model.LogError)
	case exitCode == 0:
		s.log("completed successfully", model.LogSuccess)
	default:
		s.log(fmt.Sprintf("exited with code %d", exitCode), model.LogError)
	}

	s.reg.Unregister(rec.ScriptID)
	s.bus.Publish(model.Event{
		Kind:     model.EventStopped,
		ScriptID: rec.ScriptID,
		RunID:    rec.RunID,
		ExitCode: exitCode,
	})

	if s.history != nil {
		if err := s.history.Record(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "recording run history", "run_id", rec.RunID, "error", err)
		}
	}
	close(s.done)
}

// Stop asks the child to terminate, waits up to the grace period and
// then kills it. It returns once the run is fully retired.
func (s *Supervisor) Stop(ctx context.Context) error {
	// there is no process to signal while the spawn is still in
	// flight; a failed spawn closes done instead
	select {
	case <-s.spawned:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := s.signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("terminating %s: %w", s.rec.Name, err)
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(s.grace):
	case <-ctx.Done():
	}

	if err := s.signal(syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing %s: %w", s.rec.Name, err)
	}
	<-s.done
	return nil
}

// signal targets the whole process group, so children of the script
// die with it and release the output pipes.
func (s *Supervisor) signal(sig syscall.Signal) error {
	s.mx.RLock()
	proc := s.cmd.Process
	s.mx.RUnlock()

	err := syscall.Kill(-proc.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// Record returns a snapshot of the run record.
func (s *Supervisor) Record() model.RunRecord {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.rec
}

// Done is closed once the run is retired.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
