package backend

import (
	"context"
	"net/http"
	"time"
)

// BatchLocation is one CSV row of a batch submission.
type BatchLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Type      string  `json:"type"`
}

// BatchJob is a batch submission.
type BatchJob struct {
	Filename  string          `json:"filename"`
	Locations []BatchLocation `json:"locations"`
}

// BatchStatus is the backend's view of one job.
type BatchStatus struct {
	JobID     string `json:"jobId"`
	JobStatus string `json:"jobStatus"`
	JobNum    int    `json:"jobNum"`
}

// JobSummary is one row of the user's job history. Timestamps are UTC.
type JobSummary struct {
	JobID     string    `json:"jobId"`
	JobNum    int       `json:"jobNum"`
	JobStatus string    `json:"jobStatus"`
	Filename  string    `json:"filename"`
	Submitted time.Time `json:"submitted"`
	Updated   time.Time `json:"updated"`
}

type jobRequest struct {
	JobID string `json:"jobId"`
}

// SubmitBatch submits a job and returns its initial status.
func (c *Client) SubmitBatch(ctx context.Context, job BatchJob) (BatchStatus, error) {
	var status BatchStatus
	err := c.do(ctx, "submit_batch", http.MethodPost, "/batch", job, &status)
	return status, err
}

// BatchStatus requests the current status of a job.
func (c *Client) BatchStatus(ctx context.Context, jobID string) (BatchStatus, error) {
	var status BatchStatus
	err := c.do(ctx, "batch_status", http.MethodPost, "/batch/status", jobRequest{JobID: jobID}, &status)
	return status, err
}

// CancelBatch requests cancellation of a job and returns the resulting status.
func (c *Client) CancelBatch(ctx context.Context, jobID string) (BatchStatus, error) {
	var status BatchStatus
	err := c.do(ctx, "cancel_batch", http.MethodPost, "/batch/cancel", jobRequest{JobID: jobID}, &status)
	return status, err
}

// ListBatches returns the user's job history.
func (c *Client) ListBatches(ctx context.Context) ([]JobSummary, error) {
	var jobs []JobSummary
	if err := c.do(ctx, "list_batches", http.MethodGet, "/batch", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
