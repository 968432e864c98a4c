package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidatesSchedule(t *testing.T) {
	s := New(time.UTC, time.Second)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register(Job{Name: WeeklyAgenda, Schedule: "0 7 * * 1", Run: noop}))
	assert.Error(t, s.Register(Job{Name: WeeklyAgenda, Schedule: "0 7 * * 1", Run: noop}), "duplicate")
	assert.Error(t, s.Register(Job{Name: "bad", Schedule: "every monday", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "nil", Schedule: "* * * * *"}))
}

func TestRunNowRecordsStatus(t *testing.T) {
	s := New(time.UTC, time.Second)
	calls := 0
	require.NoError(t, s.Register(Job{Name: DailyReminder, Schedule: "0 7 * * *", Run: func(context.Context) error {
		calls++
		return nil
	}}))
	require.NoError(t, s.Register(Job{Name: WeeklyAgenda, Schedule: "0 7 * * 1", Run: func(context.Context) error {
		return errors.New("discord down")
	}}))

	require.NoError(t, s.RunNow(context.Background(), DailyReminder))
	err := s.RunNow(context.Background(), WeeklyAgenda)
	assert.ErrorContains(t, err, "discord down")

	st := s.Status()
	require.Len(t, st, 2)
	assert.Equal(t, DailyReminder, st[0].Name)
	assert.NotNil(t, st[0].LastRun)
	assert.Empty(t, st[0].LastError)
	assert.Equal(t, "discord down", st[1].LastError)
	assert.Equal(t, 1, calls)
}

func TestRunNowUnknownJob(t *testing.T) {
	err := New(time.UTC, 0).RunNow(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestJobNeverOverlapsItself(t *testing.T) {
	s := New(time.UTC, 0)
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Register(Job{Name: WeeklyAgenda, Schedule: "0 7 * * 1", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), WeeklyAgenda) }()
	<-started

	assert.ErrorIs(t, s.RunNow(context.Background(), WeeklyAgenda), ErrJobRunning)
	assert.True(t, s.Status()[0].Running)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Status()[0].Running)
}

func TestRunTimeout(t *testing.T) {
	s := New(time.UTC, 20*time.Millisecond)
	require.NoError(t, s.Register(Job{Name: DailyReminder, Schedule: "0 7 * * *", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}))

	err := s.RunNow(context.Background(), DailyReminder)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartComputesNextRunInLocation(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	s := New(paris, time.Second)
	require.NoError(t, s.Register(Job{Name: WeeklyAgenda, Schedule: "0 7 * * 1", Run: func(context.Context) error { return nil }}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	require.Eventually(t, func() bool { return s.Status()[0].NextRun != nil }, time.Second, 10*time.Millisecond)
	next := s.Status()[0].NextRun.In(paris)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestPanickingJobIsContained(t *testing.T) {
	s := New(time.UTC, time.Second)
	calls := 0
	require.NoError(t, s.Register(Job{Name: DailyReminder, Schedule: "0 7 * * *", Run: func(context.Context) error {
		calls++
		if calls == 1 {
			panic("nil embed")
		}
		return nil
	}}))

	err := s.RunNow(context.Background(), DailyReminder)
	assert.ErrorContains(t, err, "panic: nil embed")

	st := s.Status()[0]
	assert.False(t, st.Running, "flag cleared after a panic")
	assert.Equal(t, "panic: nil embed", st.LastError)

	require.NoError(t, s.RunNow(context.Background(), DailyReminder), "job can run again")
	assert.Equal(t, 2, calls)
}

func TestCronRecoverKeepsSchedulerAlive(t *testing.T) {
	s := New(time.UTC, time.Second)
	fired := make(chan struct{}, 4)
	// A raw cron entry bypasses execute, so only the Recover wrapper stands
	// between this panic and the process.
	_, err := s.cron.AddFunc("@every 1s", func() {
		fired <- struct{}{}
		panic("boom")
	})
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()

	for range 2 {
		select {
		case <-fired:
		case <-time.After(5 * time.Second):
			t.Fatal("cron stopped firing after a panic")
		}
	}
}
