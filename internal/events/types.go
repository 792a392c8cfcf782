// Package events provides the asynchronous change-notification channel the
// location store, sync engine and batch coordinator publish to. Observers
// register consumers and only ever see copies of state.
package events

import (
	"time"

	"github.com/tphakala/cyanwatch/internal/location"
)

// Kind names an event type. It is also the MQTT topic suffix.
type Kind string

const (
	KindLocationChanged      Kind = "location_changed"
	KindLocationRemoved      Kind = "location_removed"
	KindLocationsReset       Kind = "locations_reset"
	KindCompareChanged       Kind = "compare_changed"
	KindSyncProgress         Kind = "sync_progress"
	KindSyncDone             Kind = "sync_done"
	KindBatchStatusChanged   Kind = "batch_status_changed"
	KindBatchTableRowUpdated Kind = "batch_table_row_updated"
	KindNotification         Kind = "notification"
)

// Event is implemented by every published event.
type Event interface {
	Kind() Kind
}

// LocationChanged carries a location after creation, edit or enrichment.
type LocationChanged struct {
	Location location.Location `json:"location"`
}

// LocationRemoved is published when a location leaves the collection.
type LocationRemoved struct {
	Key location.Key `json:"key"`
}

// LocationsReset is published when the collection is discarded for a data
// type switch.
type LocationsReset struct {
	DataType location.DataType `json:"dataType"`
}

// CompareChanged carries the full compare list after a membership change.
type CompareChanged struct {
	Locations []location.Location `json:"locations"`
}

// SyncProgress reports the aggregate enrichment progress in percent.
type SyncProgress struct {
	OperationID string  `json:"operationId"`
	Percent     float64 `json:"percent"`
	Pending     int     `json:"pending"`
	Total       int     `json:"total"`
}

// SyncDone is published when no enrichment fetch is outstanding.
type SyncDone struct{}

// BatchStatusChanged reports the coordinator's current job status.
type BatchStatusChanged struct {
	JobID     string `json:"jobId"`
	JobNum    int    `json:"jobNum"`
	JobStatus string `json:"jobStatus"`
}

// BatchTableRowUpdated reports an in-place update of a job history row.
// Times are local.
type BatchTableRowUpdated struct {
	JobID     string    `json:"jobId"`
	JobNum    int       `json:"jobNum"`
	JobStatus string    `json:"jobStatus"`
	Filename  string    `json:"filename"`
	Submitted time.Time `json:"submitted"`
	Updated   time.Time `json:"updated"`
}

// Notification is a user-facing message.
type Notification struct {
	Message string `json:"message"`
}

func (LocationChanged) Kind() Kind      { return KindLocationChanged }
func (LocationRemoved) Kind() Kind      { return KindLocationRemoved }
func (LocationsReset) Kind() Kind       { return KindLocationsReset }
func (CompareChanged) Kind() Kind       { return KindCompareChanged }
func (SyncProgress) Kind() Kind         { return KindSyncProgress }
func (SyncDone) Kind() Kind             { return KindSyncDone }
func (BatchStatusChanged) Kind() Kind   { return KindBatchStatusChanged }
func (BatchTableRowUpdated) Kind() Kind { return KindBatchTableRowUpdated }
func (Notification) Kind() Kind         { return KindNotification }

// Publisher accepts events without blocking. Components depend on this
// rather than on *EventBus.
type Publisher interface {
	TryPublish(event Event) bool
}

// EventConsumer processes events delivered by the bus
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
