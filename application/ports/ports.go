// Package ports defines the interfaces between the application core and its
// infrastructure adapters.
package ports

import (
	"context"
	"errors"

	"reportexport/domain/operation"
)

// JobStatus is the status reported by the export backend for a submitted job.
type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// ExportParams carries the submission parameters for a report export.
// NamePrefix is set by the service to the operation's instance ID so the
// backend names output files after it; the rest passes through opaquely.
type ExportParams struct {
	NamePrefix string
	ReportType string
	Parameters map[string]string
}

// Errors returned by FetchOutput.
var (
	// ErrOutputNotReady means the job has not reported success yet.
	ErrOutputNotReady = errors.New("export output not ready")
	// ErrMissingOutput means the backend reports success but returned no
	// output record.
	ErrMissingOutput = errors.New("export reported success but returned no output")
)

// ExportClient abstracts the external report export service. Submit starts a
// job; Poll and FetchOutput are side-effect-free reads and safe to call
// concurrently and repeatedly.
type ExportClient interface {
	Submit(ctx context.Context, params ExportParams) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (JobStatus, error)
	FetchOutput(ctx context.Context, jobID string) (location string, err error)
}

// ErrOperationNotFound is returned by repositories when no record exists for
// an instance ID.
var ErrOperationNotFound = errors.New("operation record not found")

// OperationRepository persists operation records across restarts. Save is an
// upsert keyed by instance ID; ListActive returns every record not yet in a
// terminal state so pending waits can be rebuilt at startup.
type OperationRepository interface {
	Save(ctx context.Context, record *operation.Record) error
	Get(ctx context.Context, instanceID string) (*operation.Record, error)
	ListActive(ctx context.Context) ([]*operation.Record, error)
}
