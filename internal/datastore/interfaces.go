// Package datastore persists the batch job history in a local SQLite
// database through GORM.
package datastore

import "time"

// Interface abstracts the job history store.
type Interface interface {
	Open() error
	Close() error
	UpsertJob(job *JobRecord) error
	UpdateStatus(jobID, status string, updated time.Time) error
	GetJob(jobID string) (JobRecord, error)
	ListJobs(limit int) ([]JobRecord, error)
}
