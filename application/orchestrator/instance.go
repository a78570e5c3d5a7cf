// Package orchestrator implements the per-request state machine that tracks
// one report export from submission to its terminal outcome.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"reportexport/application/ports"
	"reportexport/domain/operation"
	apperrors "reportexport/pkg/errors"
	"reportexport/pkg/observability"
)

const persistTimeout = 5 * time.Second

// Instance owns one operation record. While the operation is running, a
// single goroutine races the deadline timer against the completion-signal
// channel; the first trigger to fire wins and the instance moves to exactly
// one terminal state. All status mutation happens on that goroutine, so
// trigger delivery is serialized per instance.
type Instance struct {
	repo    ports.OperationRepository
	metrics *observability.Collector
	logger  *zap.Logger

	signals chan operation.CompletionSignal
	done    chan struct{}
	stop    <-chan struct{}

	mu     sync.RWMutex
	record operation.Record
}

func newInstance(
	record operation.Record,
	repo ports.OperationRepository,
	metrics *observability.Collector,
	logger *zap.Logger,
	stop <-chan struct{},
) *Instance {
	return &Instance{
		repo:    repo,
		metrics: metrics,
		logger:  logger.With(zap.String("instanceID", record.InstanceID)),
		signals: make(chan operation.CompletionSignal),
		done:    make(chan struct{}),
		stop:    stop,
		record:  record,
	}
}

// run waits for the first of the two triggers. The losing trigger is
// cancelled best-effort: the timer via the deferred Stop, a late signal via
// the terminal-state guard in Deliver.
func (i *Instance) run() {
	timer := time.NewTimer(time.Until(i.Record().DeadlineAt))
	defer timer.Stop()

	select {
	case sig := <-i.signals:
		if sig.Success {
			i.complete(operation.StatusSucceeded, sig.OutputLocation)
		} else {
			i.logger.Error("export backend reported failure")
			i.complete(operation.StatusFailed, "")
		}
	case <-timer.C:
		i.logger.Warn("operation deadline expired before completion")
		i.complete(operation.StatusTimedOut, "")
	case <-i.stop:
		// Shutting down. The record stays running in the store and the
		// wait is re-armed from its absolute deadline on restart.
		return
	}

	close(i.done)
}

// complete performs the single terminal transition. A second call is a no-op;
// a timer that failed to cancel cannot resurrect a terminal instance.
func (i *Instance) complete(status operation.RuntimeStatus, output string) {
	i.mu.Lock()
	if i.record.Status.Terminal() {
		i.mu.Unlock()
		return
	}
	i.record.Status = status
	i.record.OutputLocation = output
	rec := i.record
	i.mu.Unlock()

	i.metrics.TerminalStates.WithLabelValues(string(status)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := i.repo.Save(ctx, &rec); err != nil {
		i.logger.Error("failed to persist terminal state",
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// Deliver hands a completion signal to the instance and blocks until the
// resulting transition is visible to readers. It reports false, with no side
// effects, when the instance is already terminal or shutting down.
func (i *Instance) Deliver(sig operation.CompletionSignal) bool {
	if i.Status().Terminal() {
		return false
	}

	select {
	case i.signals <- sig:
		<-i.done
		return true
	case <-i.done:
		return false
	case <-i.stop:
		return false
	}
}

// Status returns the current runtime status.
func (i *Instance) Status() operation.RuntimeStatus {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.record.Status
}

// Record returns a snapshot of the operation record.
func (i *Instance) Record() operation.Record {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.record
}

// JobID returns the export backend's job identifier.
func (i *Instance) JobID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.record.JobID
}

// Wait blocks until the instance reaches a terminal state. A failed export
// surfaces as an error; a timed-out one as an empty location with no error,
// mirroring the record's succeeded-with-no-artifact shape.
func (i *Instance) Wait(ctx context.Context) (string, error) {
	select {
	case <-i.done:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-i.stop:
		return "", apperrors.NewUnavailableError("orchestrator shutting down")
	}

	rec := i.Record()
	switch rec.Status {
	case operation.StatusSucceeded:
		return rec.OutputLocation, nil
	case operation.StatusFailed:
		return "", apperrors.NewInternalError("report export failed").WithCode("EXPORT_FAILED")
	default:
		return "", nil
	}
}
