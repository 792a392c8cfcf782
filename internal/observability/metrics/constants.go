// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation names recorded through the Recorder interface.
const (
	// OpFetch is one provider enrichment fetch.
	OpFetch = "fetch"
	// OpSyncAll is one SyncAll call.
	OpSyncAll = "sync_all"
	// OpSubmit is a batch job submission.
	OpSubmit = "submit"
	// OpPoll is one batch status poll.
	OpPoll = "poll"
	// OpCancel is a batch cancel request.
	OpCancel = "cancel"
	// OpValidate is CSV upload validation.
	OpValidate = "validate"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusStale   = "stale"
	StatusSkipped = "skipped"
)

// Histogram bucket configuration constants.
const (
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second
