package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock worker for testing
type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
		runFunc:    func(ctx context.Context) error { return nil },
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) GetRunCount() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("sweep", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	ctx := context.Background()
	err := scheduler.Start(ctx)
	require.NoError(t, err)
	assert.True(t, scheduler.IsRunning())

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	err = scheduler.Stop()
	require.NoError(t, err)
	assert.False(t, scheduler.IsRunning())

	// Immediate run plus at least one tick
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_DisabledWorker(t *testing.T) {
	scheduler := NewScheduler()

	enabledWorker := newMockWorker("enabled", 100*time.Millisecond, true)
	disabledWorker := newMockWorker("disabled", 100*time.Millisecond, false)

	scheduler.RegisterWorker(enabledWorker)
	scheduler.RegisterWorker(disabledWorker)

	ctx := context.Background()
	err := scheduler.Start(ctx)
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)

	err = scheduler.Stop()
	require.NoError(t, err)

	assert.Greater(t, enabledWorker.GetRunCount(), 0)
	assert.Equal(t, 0, disabledWorker.GetRunCount())
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("panicky", 50*time.Millisecond, true)
	worker.runFunc = func(ctx context.Context) error {
		panic("boom")
	}
	scheduler.RegisterWorker(worker)

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	// Multiple iterations despite each one panicking
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_ContextCancellation(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("sweep", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	ctx, cancel := context.WithCancel(context.Background())

	err := scheduler.Start(ctx)
	require.NoError(t, err)

	cancel()

	// Wait a bit for workers to stop
	time.Sleep(200 * time.Millisecond)

	// Stop should work even after context cancellation
	err = scheduler.Stop()
	require.NoError(t, err)
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("sweep", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	ctx := context.Background()

	err := scheduler.Start(ctx)
	require.NoError(t, err)

	err = scheduler.Start(ctx)
	assert.Error(t, err)

	scheduler.Stop()
}

func TestScheduler_GetWorkers(t *testing.T) {
	scheduler := NewScheduler()

	scheduler.RegisterWorker(newMockWorker("tracker", 100*time.Millisecond, true))
	scheduler.RegisterWorker(newMockWorker("recalculator", 200*time.Millisecond, false))

	workers := scheduler.GetWorkers()
	assert.Len(t, workers, 2)
	assert.Equal(t, "tracker", workers[0].Name())
	assert.Equal(t, "recalculator", workers[1].Name())
}
