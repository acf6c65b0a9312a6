package sched_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scriptdeck/scriptdeck/internal/model"
	"github.com/scriptdeck/scriptdeck/internal/sched"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeStarter) StartRun(_ context.Context, path, _ string) (model.RunRecord, error) {
	f.calls.Add(1)
	return model.RunRecord{ScriptID: path}, f.err
}

func TestNewRejectsBadSchedules(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		entry    model.Schedule
	}{
		{"no trigger", model.Schedule{Path: "/opt/a.sh"}},
		{"both triggers", model.Schedule{Path: "/opt/a.sh", Cron: "* * * * *", Every: "5m"}},
		{"bad cron", model.Schedule{Path: "/opt/a.sh", Cron: "not a cron"}},
		{"bad every", model.Schedule{Path: "/opt/a.sh", Every: "sometimes"}},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := sched.New(t.Context(), []model.Schedule{tc.entry}, &fakeStarter{})
			require.Error(t, err)
		})
	}
}

func TestSchedulerTriggers(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{}
	s, err := sched.New(t.Context(), []model.Schedule{
		{Path: "/opt/tick.sh", Every: "1s"},
	}, starter)
	require.NoError(t, err)

	s.Start()
	t.Cleanup(func() {
		require.NoError(t, s.Shutdown())
	})

	require.Eventually(t, func() bool {
		return starter.calls.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSchedulerSkipsRunning(t *testing.T) {
	t.Parallel()

	// an already running script only logs, the scheduler keeps going
	starter := &fakeStarter{err: model.ErrAlreadyRunning}
	s, err := sched.New(t.Context(), []model.Schedule{
		{Path: "/opt/busy.sh", Every: "1s"},
	}, starter)
	require.NoError(t, err)

	s.Start()
	t.Cleanup(func() {
		require.NoError(t, s.Shutdown())
	})

	require.Eventually(t, func() bool {
		return starter.calls.Load() >= 2
	}, 10*time.Second, 50*time.Millisecond)
}
