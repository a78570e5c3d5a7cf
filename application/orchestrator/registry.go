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

// Registry maps instance IDs to live orchestrator instances. Lookups are
// concurrent; insertion happens exactly once per instance ID. Terminal
// instances stay in the map so late polls still see their outcome.
type Registry struct {
	repo    ports.OperationRepository
	metrics *observability.Collector
	logger  *zap.Logger
	window  time.Duration

	stop     chan struct{}
	stopOnce sync.Once

	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewRegistry creates a registry whose operations time out after window.
func NewRegistry(
	repo ports.OperationRepository,
	metrics *observability.Collector,
	logger *zap.Logger,
	window time.Duration,
) *Registry {
	return &Registry{
		repo:      repo,
		metrics:   metrics,
		logger:    logger,
		window:    window,
		stop:      make(chan struct{}),
		instances: make(map[string]*Instance),
	}
}

// Start creates the record for an already-submitted export job, persists it,
// and begins the deadline-versus-signal wait. The caller must have submitted
// the job first: a failed submission never reaches this point, so no orphaned
// record is ever written.
func (r *Registry) Start(ctx context.Context, instanceID, jobID string) (*Instance, error) {
	record := operation.NewRecord(instanceID, jobID, time.Now(), r.window)
	record.Status = operation.StatusRunning

	if err := r.repo.Save(ctx, record); err != nil {
		return nil, apperrors.NewInternalError("failed to persist operation record").WithCause(err)
	}

	inst, err := r.insert(*record)
	if err != nil {
		return nil, err
	}

	go inst.run()
	r.metrics.OperationsStarted.Inc()
	r.logger.Info("operation started",
		zap.String("instanceID", instanceID),
		zap.String("jobID", jobID),
		zap.Time("deadlineAt", record.DeadlineAt),
	)
	return inst, nil
}

// Get returns the instance for an ID, if the registry tracks one.
func (r *Registry) Get(instanceID string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[instanceID]
	return inst, ok
}

// Restore reloads every non-terminal record from the store and re-arms its
// wait against the stored absolute deadline. A deadline already in the past
// times the operation out immediately. Returns the number of instances
// restored.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	records, err := r.repo.ListActive(ctx)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to list active operations").WithCause(err)
	}

	restored := 0
	for _, record := range records {
		inst, err := r.insert(*record)
		if err != nil {
			// already tracked; nothing to re-arm
			continue
		}
		go inst.run()
		restored++
		r.logger.Info("operation restored",
			zap.String("instanceID", record.InstanceID),
			zap.Time("deadlineAt", record.DeadlineAt),
		)
	}
	return restored, nil
}

// Close stops all instance goroutines without touching persisted state.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) insert(record operation.Record) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[record.InstanceID]; exists {
		return nil, apperrors.NewConflictError("operation already tracked for instance " + record.InstanceID)
	}
	inst := newInstance(record, r.repo, r.metrics, r.logger, r.stop)
	r.instances[record.InstanceID] = inst
	return inst, nil
}
