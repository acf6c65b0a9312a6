// Package sched triggers recurring script runs from config declared
// schedules.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/scriptdeck/scriptdeck/internal/model"
)

// Starter is the slice of the runner service a schedule needs.
type Starter interface {
	StartRun(ctx context.Context, path, name string) (model.RunRecord, error)
}

// Scheduler owns the gocron instance driving scheduled runs.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// New builds a scheduler with one job per schedule entry. A trigger
// colliding with an already active run of the same script is skipped.
func New(ctx context.Context, schedules []model.Schedule, starter Starter) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}

	for _, entry := range schedules {
		def, err := jobDefinition(entry)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("schedule for %q: %w", entry.Path, err)
		}

		_, err = s.NewJob(def, gocron.NewTask(func() {
			_, err := starter.StartRun(ctx, entry.Path, "")
			switch {
			case errors.Is(err, model.ErrAlreadyRunning):
				slog.InfoContext(ctx, "scheduled run skipped, still running", "path", entry.Path)
			case err != nil:
				slog.ErrorContext(ctx, "scheduled run failed to start", "path", entry.Path, "error", err)
			}
		}))
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("initializing gocron job for %q: %w", entry.Path, err)
		}
	}

	return &Scheduler{scheduler: s}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func jobDefinition(entry model.Schedule) (gocron.JobDefinition, error) {
	switch {
	case entry.Cron != "" && entry.Every != "":
		return nil, errors.New("both cron and every are set")
	case entry.Cron != "":
		if err := ParseCron(entry.Cron); err != nil {
			return nil, fmt.Errorf("parsing cron: %w", err)
		}
		return gocron.CronJob(entry.Cron, false), nil
	case entry.Every != "":
		d, err := ParseEvery(entry.Every)
		if err != nil {
			return nil, fmt.Errorf("parsing every: %w", err)
		}
		return gocron.DurationJob(d), nil
	default:
		return nil, errors.New("both cron and every are empty")
	}
}
