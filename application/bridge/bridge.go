// Package bridge translates raw export backend status into orchestrator
// completion signals.
package bridge

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"reportexport/application/orchestrator"
	"reportexport/application/ports"
	"reportexport/domain/operation"
	"reportexport/pkg/observability"
)

// CheckInterval gates the poll-triggered entry point: the backend is queried
// on every CheckInterval-th client poll. With clients honoring the 10s
// Retry-After hint that is roughly one backend query per minute.
const CheckInterval = 6

// ErrBadSubject is returned when a notification subject does not carry an
// instance ID.
var ErrBadSubject = errors.New("notification subject missing instance id")

// Bridge decides when to query the export backend and feeds the results to
// the owning orchestrator instance. It never retries: a transient query
// failure is logged and left for the next poll or notification to pick up.
type Bridge struct {
	registry *orchestrator.Registry
	client   ports.ExportClient
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewBridge creates a status bridge.
func NewBridge(
	registry *orchestrator.Registry,
	client ports.ExportClient,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Bridge {
	return &Bridge{
		registry: registry,
		client:   client,
		metrics:  metrics,
		logger:   logger,
	}
}

// ShouldCheck reports whether a poll at the given attempt count triggers a
// backend query. Callers evaluate it against the attempt count as received,
// before incrementing.
func (b *Bridge) ShouldCheck(attempt int) bool {
	return attempt%CheckInterval == 0
}

// CheckOnPoll is the poll-triggered entry point. The caller is expected to
// have gated it with ShouldCheck.
func (b *Bridge) CheckOnPoll(ctx context.Context, inst *orchestrator.Instance) {
	b.check(ctx, inst)
}

// CheckOnNotification is the notification-triggered entry point. Unknown
// instances are logged and dropped: the notification may concern an
// operation this process never tracked, and that is not an error.
func (b *Bridge) CheckOnNotification(ctx context.Context, instanceID string) {
	inst, ok := b.registry.Get(instanceID)
	if !ok {
		b.logger.Info("notification for unknown instance, dropping",
			zap.String("instanceID", instanceID),
		)
		return
	}
	b.check(ctx, inst)
}

func (b *Bridge) check(ctx context.Context, inst *orchestrator.Instance) {
	// Terminal instances need no further queries; in particular the output
	// must not be fetched a second time.
	if inst.Status().Terminal() {
		return
	}

	jobID := inst.JobID()
	status, err := b.client.Poll(ctx, jobID)
	if err != nil {
		b.metrics.StatusChecks.WithLabelValues("error").Inc()
		b.logger.Warn("export status query failed, no signal this round",
			zap.String("jobID", jobID),
			zap.Error(err),
		)
		return
	}

	switch status {
	case ports.JobSucceeded:
		location, err := b.client.FetchOutput(ctx, jobID)
		if err != nil {
			b.metrics.StatusChecks.WithLabelValues("error").Inc()
			b.logger.Warn("export output query failed, no signal this round",
				zap.String("jobID", jobID),
				zap.Error(err),
			)
			return
		}
		b.metrics.StatusChecks.WithLabelValues("succeeded").Inc()
		inst.Deliver(operation.CompletionSignal{Success: true, OutputLocation: location})
	case ports.JobFailed:
		b.metrics.StatusChecks.WithLabelValues("failed").Inc()
		inst.Deliver(operation.CompletionSignal{Success: false})
	default:
		b.metrics.StatusChecks.WithLabelValues("running").Inc()
	}
}

// ParseSubject extracts the instance ID from a notification subject of the
// form ".../{instanceID}_{suffix}". It fails closed on anything that does not
// yield a non-empty ID.
func ParseSubject(subject string) (string, error) {
	segments := strings.Split(subject, "/")
	last := segments[len(segments)-1]
	instanceID := strings.SplitN(last, "_", 2)[0]
	if instanceID == "" {
		return "", ErrBadSubject
	}
	return instanceID, nil
}
