package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openhours/internal/service"
)

// MockRunner records ticks for testing.
type MockRunner struct {
	mu    sync.Mutex
	ticks []time.Time
	calls chan struct{}
	block chan struct{}
}

func NewMockRunner() *MockRunner {
	return &MockRunner{calls: make(chan struct{}, 16)}
}

func (m *MockRunner) RunTick(ctx context.Context, now time.Time) service.TickStats {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.ticks = append(m.ticks, now)
	m.mu.Unlock()
	m.calls <- struct{}{}
	return service.TickStats{Total: 1, Unchanged: 1}
}

func (m *MockRunner) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ticks)
}

type staticClock struct{ t time.Time }

func (c staticClock) Now() time.Time { return c.t }

func waitCall(t *testing.T, r *MockRunner) {
	t.Helper()
	select {
	case <-r.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not run")
	}
}

func TestScheduler_RunsImmediatelyAndOnTrigger(t *testing.T) {
	runner := NewMockRunner()
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	logger := zerolog.Nop()
	s := NewScheduler(Config{Interval: time.Hour}, runner, staticClock{now}, &logger)

	s.Start(context.Background())
	defer s.Stop()
	assert.True(t, s.IsRunning())

	waitCall(t, runner)
	s.Trigger()
	waitCall(t, runner)

	assert.Equal(t, 2, runner.Count())
	runner.mu.Lock()
	assert.Equal(t, now, runner.ticks[0])
	runner.mu.Unlock()
}

func TestScheduler_TicksOnInterval(t *testing.T) {
	runner := NewMockRunner()
	logger := zerolog.Nop()
	s := NewScheduler(Config{Interval: 10 * time.Millisecond}, runner, nil, &logger)

	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 3; i++ {
		waitCall(t, runner)
	}
	assert.GreaterOrEqual(t, runner.Count(), 3)
}

func TestScheduler_StopWaitsForInFlightTick(t *testing.T) {
	runner := NewMockRunner()
	runner.block = make(chan struct{})
	logger := zerolog.Nop()
	s := NewScheduler(Config{Interval: time.Hour}, runner, nil, &logger)
	s.Start(context.Background())

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a tick was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.block)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 1, runner.Count())
	assert.False(t, s.IsRunning())
}

func TestScheduler_RestartsAfterContextCancel(t *testing.T) {
	runner := NewMockRunner()
	logger := zerolog.Nop()
	s := NewScheduler(Config{Interval: time.Hour}, runner, nil, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	waitCall(t, runner)
	cancel()

	require.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 5*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()
	assert.True(t, s.IsRunning())
	waitCall(t, runner)
	assert.Equal(t, 2, runner.Count())
}

func TestScheduler_RestartsAfterStop(t *testing.T) {
	runner := NewMockRunner()
	logger := zerolog.Nop()
	s := NewScheduler(Config{Interval: time.Hour}, runner, nil, &logger)

	s.Start(context.Background())
	waitCall(t, runner)
	s.Stop()

	s.Start(context.Background())
	defer s.Stop()
	waitCall(t, runner)
	s.Trigger()
	waitCall(t, runner)
	assert.Equal(t, 3, runner.Count())
}

func TestScheduler_TriggerCoalesces(t *testing.T) {
	runner := NewMockRunner()
	logger := zerolog.Nop()
	s := NewScheduler(DefaultConfig(), runner, nil, &logger)

	for i := 0; i < 5; i++ {
		s.Trigger()
	}
	assert.Len(t, s.trigger, 1)
}

func TestScheduler_RunNow(t *testing.T) {
	runner := NewMockRunner()
	logger := zerolog.Nop()
	s := NewScheduler(DefaultConfig(), runner, nil, &logger)

	stats := s.RunNow(context.Background())
	assert.Equal(t, 1, stats.Total)
	assert.False(t, s.IsRunning())
}

func TestMaintenance_AddJob(t *testing.T) {
	logger := zerolog.Nop()
	m := NewMaintenance(time.UTC, &logger)

	require.NoError(t, m.AddJob("backup", "0 3 * * *", func(context.Context) {}))
	assert.Error(t, m.AddJob("broken", "not a cron", func(context.Context) {}))
	assert.Equal(t, 1, m.Len())

	m.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)
}
