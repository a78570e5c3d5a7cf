// Package schema defines the wire shapes of events this service consumes.
package schema

import "time"

// FileCreatedEvent is the notification emitted when the export backend
// writes a report file. Subject carries the blob path whose last segment is
// "{instanceID}_{suffix}".
type FileCreatedEvent struct {
	ID        string    `json:"id"`
	EventType string    `json:"eventType"`
	Subject   string    `json:"subject"`
	EventTime time.Time `json:"eventTime"`
}
