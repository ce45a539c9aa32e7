package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		assert.NoError(t, s.Run(ctx))
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestScheduler_TicksWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	s := New(5*time.Millisecond, func(ctx context.Context) { calls.Add(1) })
	run(t, s)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	s.SetEnabled(true)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_TriggerWhileDisabled(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Hour, func(ctx context.Context) { calls.Add(1) })
	run(t, s)

	s.Trigger()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_DropsTicksWhileBusy(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := New(5*time.Millisecond, func(ctx context.Context) {
		if calls.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
	})
	s.SetEnabled(true)
	run(t, s)

	require.Eventually(t, s.Busy, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_TriggerDuringCallRunsAfter(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := New(time.Hour, func(ctx context.Context) {
		if calls.Add(1) == 1 {
			<-release
		}
	})
	run(t, s)

	s.Trigger()
	require.Eventually(t, s.Busy, time.Second, time.Millisecond)
	s.Trigger()
	s.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestScheduler_Reset(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Hour, func(ctx context.Context) { calls.Add(1) })
	s.SetEnabled(true)
	run(t, s)

	s.Reset(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, s.Interval())
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_DoSuspendsTicks(t *testing.T) {
	var ticks atomic.Int32
	s := New(20*time.Millisecond, func(ctx context.Context) { ticks.Add(1) })
	s.SetEnabled(true)
	run(t, s)

	err := s.Do(context.Background(), func(ctx context.Context) error {
		assert.True(t, s.Busy())
		time.Sleep(90 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), ticks.Load())
	assert.False(t, s.Busy())

	assert.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_DoReturnsError(t *testing.T) {
	s := New(time.Hour, func(ctx context.Context) {})
	err := s.Do(context.Background(), func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.Busy())
}

func TestScheduler_TriggerDuringDoRunsAfter(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Hour, func(ctx context.Context) { calls.Add(1) })
	run(t, s)

	require.NoError(t, s.Do(context.Background(), func(ctx context.Context) error {
		s.Trigger()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(0), calls.Load())
		return nil
	}))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
