package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidExpression(t *testing.T) {
	_, err := New("not a cron", RunnerFunc(func(ctx context.Context) error { return nil }), nil)
	require.Error(t, err)
}

func TestNew_RejectsSixFieldExpression(t *testing.T) {
	// Standard five-field cron only; no seconds field.
	_, err := New("*/5 * * * * *", RunnerFunc(func(ctx context.Context) error { return nil }), nil)
	require.Error(t, err)
}

func TestScheduler_NextRun(t *testing.T) {
	s, err := New("0 3 * * *", RunnerFunc(func(ctx context.Context) error { return nil }), nil)
	require.NoError(t, err)

	from := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	next := s.NextRun(from)
	assert.Equal(t, time.Date(2026, 6, 2, 3, 0, 0, 0, time.UTC), next)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New("0 3 * * *", RunnerFunc(func(ctx context.Context) error { return nil }), nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()), "double start is rejected")
	require.NoError(t, s.Stop())

	// After a clean stop the scheduler can be started again.
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s, err := New("* * * * *", RunnerFunc(func(ctx context.Context) error { return nil }), nil)
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}

func TestScheduler_FireSkipsOverlap(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	var runs int

	s, err := New("* * * * *", RunnerFunc(func(ctx context.Context) error {
		runs++
		close(started)
		<-block
		return nil
	}), nil)
	require.NoError(t, err)

	go s.fire(context.Background())
	<-started

	// A fire during a running pass is dropped, not queued.
	s.fire(context.Background())
	close(block)

	assert.Eventually(t, func() bool {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return !s.running
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, runs)
}

func TestScheduler_AsyncFireDedupes(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	var runs int

	s, err := New("* * * * *", RunnerFunc(func(ctx context.Context) error {
		runs++
		close(started)
		<-block
		return nil
	}), nil)
	require.NoError(t, err)

	// The loop path launches passes asynchronously; a second fire while the
	// first pass still runs is dropped.
	s.fireAsync(context.Background())
	<-started
	s.fireAsync(context.Background())
	close(block)
	s.fireWG.Wait()

	assert.Equal(t, 1, runs)
}

func TestScheduler_StopWaitsForRunningPass(t *testing.T) {
	started := make(chan struct{})
	var finished bool

	s, err := New("* * * * *", RunnerFunc(func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished = true
		return nil
	}), nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.fireAsync(context.Background())
	<-started

	require.NoError(t, s.Stop())
	assert.True(t, finished, "stop returns only after the in-flight pass completes")
}

func TestScheduler_RunnerErrorDoesNotStopScheduler(t *testing.T) {
	s, err := New("* * * * *", RunnerFunc(func(ctx context.Context) error {
		return assert.AnError
	}), nil)
	require.NoError(t, err)

	// fire logs the error and resets the running flag.
	s.fire(context.Background())
	s.runMu.Lock()
	running := s.running
	s.runMu.Unlock()
	assert.False(t, running)
}
