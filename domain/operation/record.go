package operation

import (
	"time"
)

// RuntimeStatus represents the lifecycle state of a report export operation.
type RuntimeStatus string

const (
	StatusPending   RuntimeStatus = "PENDING"
	StatusRunning   RuntimeStatus = "RUNNING"
	StatusSucceeded RuntimeStatus = "SUCCEEDED"
	StatusFailed    RuntimeStatus = "FAILED"
	StatusCancelled RuntimeStatus = "CANCELLED"
	StatusTimedOut  RuntimeStatus = "TIMED_OUT"
	StatusUnknown   RuntimeStatus = "UNKNOWN"
)

// Terminal reports whether no further transition can leave this status.
func (s RuntimeStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// ParseStatus maps a stored status string back to a RuntimeStatus.
// Unrecognized values come back as StatusUnknown rather than an error so a
// record written by a newer build still loads.
func ParseStatus(s string) RuntimeStatus {
	switch RuntimeStatus(s) {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed,
		StatusCancelled, StatusTimedOut:
		return RuntimeStatus(s)
	}
	return StatusUnknown
}

// Record tracks one report export request from submission to its terminal
// outcome. InstanceID is the primary key for all lookups; JobID is the
// identifier the export backend assigned at submission. Both are immutable
// once set. OutputLocation is only meaningful when Status is StatusSucceeded;
// an empty location on a succeeded record means the export produced no
// artifact.
type Record struct {
	InstanceID     string
	JobID          string
	Status         RuntimeStatus
	OutputLocation string
	CreatedAt      time.Time
	DeadlineAt     time.Time
}

// NewRecord creates a pending record with a fixed deadline. The deadline is
// absolute so a restarted process can re-arm its timer against the original
// window rather than granting the operation a fresh one.
func NewRecord(instanceID, jobID string, now time.Time, window time.Duration) *Record {
	return &Record{
		InstanceID: instanceID,
		JobID:      jobID,
		Status:     StatusPending,
		CreatedAt:  now.UTC(),
		DeadlineAt: now.UTC().Add(window),
	}
}
