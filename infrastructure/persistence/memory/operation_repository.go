// Package memory provides an in-process operation store for development and
// tests. Records do not survive a restart.
package memory

import (
	"context"
	"sync"

	"reportexport/application/ports"
	"reportexport/domain/operation"
)

// OperationRepository is a map-backed implementation of
// ports.OperationRepository, safe for concurrent use.
type OperationRepository struct {
	mu      sync.RWMutex
	records map[string]operation.Record
}

// NewOperationRepository creates an empty in-memory repository.
func NewOperationRepository() *OperationRepository {
	return &OperationRepository{
		records: make(map[string]operation.Record),
	}
}

// Save upserts a record keyed by instance ID.
func (r *OperationRepository) Save(_ context.Context, record *operation.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.InstanceID] = *record
	return nil
}

// Get returns the record for an instance ID.
func (r *OperationRepository) Get(_ context.Context, instanceID string) (*operation.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[instanceID]
	if !ok {
		return nil, ports.ErrOperationNotFound
	}
	return &record, nil
}

// ListActive returns every record not yet in a terminal state.
func (r *OperationRepository) ListActive(_ context.Context) ([]*operation.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []*operation.Record
	for _, record := range r.records {
		if !record.Status.Terminal() {
			rec := record
			active = append(active, &rec)
		}
	}
	return active, nil
}
