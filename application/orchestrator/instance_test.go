package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reportexport/domain/operation"
	"reportexport/infrastructure/persistence/memory"
	apperrors "reportexport/pkg/errors"
	"reportexport/pkg/observability"
)

func newTestRegistry(t *testing.T, window time.Duration) (*Registry, *memory.OperationRepository) {
	t.Helper()
	repo := memory.NewOperationRepository()
	registry := NewRegistry(repo, observability.NewCollector("test"), zap.NewNop(), window)
	t.Cleanup(registry.Close)
	return registry, repo
}

func TestStartCreatesRunningInstance(t *testing.T) {
	registry, repo := newTestRegistry(t, time.Minute)

	inst, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, operation.StatusRunning, inst.Status())
	assert.Equal(t, "job-1", inst.JobID())

	record, err := repo.Get(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, operation.StatusRunning, record.Status)
	assert.Equal(t, record.CreatedAt.Add(time.Minute), record.DeadlineAt)
}

func TestStartRejectsDuplicateInstanceID(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Minute)

	_, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	_, err = registry.Start(context.Background(), "inst-1", "job-2")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestCompletionSignalWinsBeforeDeadline(t *testing.T) {
	registry, repo := newTestRegistry(t, time.Hour)

	inst, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	delivered := inst.Deliver(operation.CompletionSignal{Success: true, OutputLocation: "https://x/report1.csv"})
	require.True(t, delivered)

	assert.Equal(t, operation.StatusSucceeded, inst.Status())
	assert.Equal(t, "https://x/report1.csv", inst.Record().OutputLocation)

	record, err := repo.Get(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, operation.StatusSucceeded, record.Status)
	assert.Equal(t, "https://x/report1.csv", record.OutputLocation)
}

func TestFailureSignalMovesToFailed(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Hour)

	inst, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	delivered := inst.Deliver(operation.CompletionSignal{Success: false})
	require.True(t, delivered)

	assert.Equal(t, operation.StatusFailed, inst.Status())
	assert.Empty(t, inst.Record().OutputLocation)
}

func TestEmptyOutputLocationIsValidSuccess(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Hour)

	inst, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	require.True(t, inst.Deliver(operation.CompletionSignal{Success: true, OutputLocation: ""}))

	assert.Equal(t, operation.StatusSucceeded, inst.Status())
	assert.Empty(t, inst.Record().OutputLocation)
}

func TestDeadlineTimerWins(t *testing.T) {
	registry, repo := newTestRegistry(t, 20*time.Millisecond)

	inst, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return inst.Status() == operation.StatusTimedOut
	}, time.Second, 5*time.Millisecond)

	record, err := repo.Get(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, operation.StatusTimedOut, record.Status)
	assert.Empty(t, record.OutputLocation)
}

func TestLateSignalAfterTimeoutIsNoOp(t *testing.T) {
	registry, _ := newTestRegistry(t, 20*time.Millisecond)

	inst, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return inst.Status() == operation.StatusTimedOut
	}, time.Second, 5*time.Millisecond)

	delivered := inst.Deliver(operation.CompletionSignal{Success: true, OutputLocation: "https://x/late.csv"})

	assert.False(t, delivered)
	assert.Equal(t, operation.StatusTimedOut, inst.Status())
	assert.Empty(t, inst.Record().OutputLocation)
}

func TestDuplicateSignalIsNoOp(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Hour)

	inst, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	require.True(t, inst.Deliver(operation.CompletionSignal{Success: true, OutputLocation: "https://x/first.csv"}))
	assert.False(t, inst.Deliver(operation.CompletionSignal{Success: false}))

	assert.Equal(t, operation.StatusSucceeded, inst.Status())
	assert.Equal(t, "https://x/first.csv", inst.Record().OutputLocation)
}

func TestWaitSurfacesTerminalOutcome(t *testing.T) {
	t.Run("succeeded", func(t *testing.T) {
		registry, _ := newTestRegistry(t, time.Hour)
		inst, err := registry.Start(context.Background(), "inst-1", "job-1")
		require.NoError(t, err)

		go inst.Deliver(operation.CompletionSignal{Success: true, OutputLocation: "https://x/out.csv"})

		location, err := inst.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "https://x/out.csv", location)
	})

	t.Run("failed", func(t *testing.T) {
		registry, _ := newTestRegistry(t, time.Hour)
		inst, err := registry.Start(context.Background(), "inst-2", "job-2")
		require.NoError(t, err)

		go inst.Deliver(operation.CompletionSignal{Success: false})

		_, err = inst.Wait(context.Background())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})

	t.Run("timed out", func(t *testing.T) {
		registry, _ := newTestRegistry(t, 20*time.Millisecond)
		inst, err := registry.Start(context.Background(), "inst-3", "job-3")
		require.NoError(t, err)

		location, err := inst.Wait(context.Background())
		require.NoError(t, err)
		assert.Empty(t, location)
	})
}

func TestRestoreReArmsActiveOperations(t *testing.T) {
	repo := memory.NewOperationRepository()
	metrics := observability.NewCollector("test")

	// a record whose deadline has already passed, one still inside its
	// window, and a terminal one
	expired := operation.NewRecord("inst-expired", "job-1", time.Now().Add(-10*time.Minute), 5*time.Minute)
	expired.Status = operation.StatusRunning
	active := operation.NewRecord("inst-active", "job-2", time.Now(), time.Hour)
	active.Status = operation.StatusRunning
	done := operation.NewRecord("inst-done", "job-3", time.Now(), time.Hour)
	done.Status = operation.StatusSucceeded

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, expired))
	require.NoError(t, repo.Save(ctx, active))
	require.NoError(t, repo.Save(ctx, done))

	registry := NewRegistry(repo, metrics, zap.NewNop(), 5*time.Minute)
	t.Cleanup(registry.Close)

	restored, err := registry.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	_, tracked := registry.Get("inst-done")
	assert.False(t, tracked)

	expiredInst, ok := registry.Get("inst-expired")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return expiredInst.Status() == operation.StatusTimedOut
	}, time.Second, 5*time.Millisecond)

	activeInst, ok := registry.Get("inst-active")
	require.True(t, ok)
	assert.Equal(t, operation.StatusRunning, activeInst.Status())

	require.True(t, activeInst.Deliver(operation.CompletionSignal{Success: true, OutputLocation: "https://x/out.csv"}))
	assert.Equal(t, operation.StatusSucceeded, activeInst.Status())
}
