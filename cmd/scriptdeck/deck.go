package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scriptdeck/scriptdeck/internal/discovery"
	"github.com/scriptdeck/scriptdeck/internal/log"
	"github.com/scriptdeck/scriptdeck/internal/model"
	"github.com/scriptdeck/scriptdeck/internal/runner"
	"github.com/scriptdeck/scriptdeck/internal/sched"
	"github.com/scriptdeck/scriptdeck/internal/store"
	"github.com/scriptdeck/scriptdeck/internal/web"
)

func doServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	attrs := slog.Group("scriptdeck",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	dataDir := userConfigPath
	if config.Service.DataDir != nil {
		dataDir = *config.Service.DataDir
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	st, err := store.Open(ctx, filepath.Join(dataDir, "scriptdeck.db"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		_ = st.Close()
	}()

	runs := runner.NewService(runner.Options{
		LogCap:  logCap(),
		History: st,
	})
	defer runs.Close(context.WithoutCancel(ctx))

	scheduler, err := sched.New(ctx, config.Schedules, runs)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.ErrorContext(ctx, "shutting scheduler down", "error", err)
		}
	}()

	srv := web.NewServer(web.Options{
		Runs:       runs,
		Store:      st,
		Folders:    config.Folders,
		Extensions: extensions(),
		UploadDir:  filepath.Join(dataDir, "uploads"),
	})

	addr := model.DefaultAddr
	if config.Service.Addr != nil {
		addr = *config.Service.Addr
	}
	slog.InfoContext(ctx, "serving", "addr", addr, "data_dir", dataDir)
	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving %s: %w", addr, err)
	}
	return nil
}

// doRun executes one script in the foreground: logs go to stdout and
// the process exits with the script's exit code.
func doRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs := runner.NewService(runner.Options{LogCap: logCap()})
	defer runs.Close(context.WithoutCancel(ctx))

	// the subscription must outlive a Ctrl-C, the terminal stopped
	// event arrives after the stop
	events := runs.Subscribe(context.WithoutCancel(ctx))
	rec, err := runs.StartRun(ctx, args[0], "")
	if err != nil {
		return err
	}

	exitCode := 0
	interrupt := ctx.Done()
	for done := false; !done; {
		select {
		case <-interrupt:
			interrupt = nil
			if err := runs.StopRun(context.WithoutCancel(ctx), rec.ScriptID); err != nil && !errors.Is(err, model.ErrNotRunning) {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				done = true
				break
			}
			if ev.RunID != rec.RunID {
				continue
			}
			switch ev.Kind {
			case model.EventLog:
				fmt.Printf("%s\t%s\t%s\n", ev.Entry.Time.Format("15:04:05"), ev.Entry.Kind, ev.Entry.Message)
			case model.EventStopped:
				exitCode = ev.ExitCode
				done = true
			}
		}
	}
	if exitCode != 0 {
		runs.Close(context.WithoutCancel(ctx))
		os.Exit(exitCode)
	}
	return nil
}

func logCap() int {
	if config.Service.LogCap != nil {
		return *config.Service.LogCap
	}
	return model.DefaultLogCap
}

func extensions() []string {
	if len(config.Extensions) != 0 {
		return config.Extensions
	}
	return discovery.DefaultExtensions
}
