package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/datastore"
	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/events"
	"github.com/tphakala/cyanwatch/internal/logger"
	"github.com/tphakala/cyanwatch/internal/observability/metrics"
)

// DefaultPollInterval is the status poll period.
const DefaultPollInterval = 2 * time.Second

// AlreadyCompleteMessage is published when cancelling a finished job.
const AlreadyCompleteMessage = "job already complete"

// Backend is the batch side of the backend API.
type Backend interface {
	SubmitBatch(ctx context.Context, job backend.BatchJob) (backend.BatchStatus, error)
	BatchStatus(ctx context.Context, jobID string) (backend.BatchStatus, error)
	CancelBatch(ctx context.Context, jobID string) (backend.BatchStatus, error)
	ListBatches(ctx context.Context) ([]backend.JobSummary, error)
}

// Authorizer reports whether the session may still issue requests.
type Authorizer interface {
	IsAuthorized() bool
}

// JobStore persists job history rows.
type JobStore interface {
	UpsertJob(job *datastore.JobRecord) error
	UpdateStatus(jobID, status string, updated time.Time) error
}

// Config holds coordinator dependencies. Publisher, Metrics and Store are
// optional.
type Config struct {
	Backend      Backend
	Auth         Authorizer
	Publisher    events.Publisher
	Metrics      *metrics.BatchMetrics
	Store        JobStore
	Limits       Limits
	PollInterval time.Duration
	// Location is the display time zone for table rows, default time.Local
	Location *time.Location
}

// pollHandle is the single active poll loop.
type pollHandle struct {
	id     uuid.UUID
	jobID  string
	cancel context.CancelFunc
}

// Coordinator drives one batch job lifecycle at a time. Safe for concurrent use.
type Coordinator struct {
	backend   Backend
	auth      Authorizer
	publisher events.Publisher
	metrics   *metrics.BatchMetrics
	store     JobStore
	limits    Limits
	interval  time.Duration
	loc       *time.Location

	mu         sync.Mutex
	current    backend.BatchStatus
	hasCurrent bool
	filenames  map[string]string
	table      []Row
	tableOpen  bool
	poll       *pollHandle
	lastErr    error

	wg  sync.WaitGroup
	now func() time.Time
	log logger.Logger
}

// New creates a coordinator.
func New(config Config) (*Coordinator, error) {
	if config.Backend == nil || config.Auth == nil {
		return nil, errors.Newf("backend and authorizer are required").
			Component("batch").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &Coordinator{
		backend:   config.Backend,
		auth:      config.Auth,
		publisher: config.Publisher,
		metrics:   config.Metrics,
		store:     config.Store,
		limits:    config.Limits.withDefaults(),
		interval:  config.PollInterval,
		loc:       config.Location,
		filenames: make(map[string]string),
		now:       time.Now,
		log:       GetLogger(),
	}, nil
}

// Limits returns the upload limits in effect.
func (c *Coordinator) Limits() Limits {
	return c.limits
}

// Current returns the current job status, if any job was submitted.
func (c *Coordinator) Current() (backend.BatchStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.hasCurrent
}

// Polling reports whether a poll loop is active.
func (c *Coordinator) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poll != nil
}

// LastError returns the error that stopped the most recent poll, if any.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// UploadFile runs the upload pipeline: file checks, content checks, row
// mapping and submission. A rejected upload returns a ValidationError and
// issues no request.
func (c *Coordinator) UploadFile(ctx context.Context, name, body string) (backend.BatchStatus, *ValidationError, error) {
	verr := c.limits.ValidateFile(FileInfo{Name: name, Present: true})
	if verr == nil {
		verr = c.limits.ValidateContent(body)
	}
	var locs []backend.BatchLocation
	if verr == nil {
		locs, verr = ToBatchLocations(body)
	}
	if verr != nil {
		c.metrics.RecordValidationRejection(verr.Reason)
		c.log.Info("upload rejected",
			logger.String("filename", name),
			logger.String("reason", verr.Reason))
		return backend.BatchStatus{}, verr, nil
	}
	c.metrics.RecordOperation(metrics.OpValidate, metrics.StatusSuccess)

	status, err := c.Submit(ctx, backend.BatchJob{Filename: name, Locations: locs})
	return status, nil, err
}

// Submit sends the job, records the returned status as current and starts
// polling unless the response already signals failure. Transport errors are
// returned to the caller.
func (c *Coordinator) Submit(ctx context.Context, job backend.BatchJob) (backend.BatchStatus, error) {
	start := time.Now()
	status, err := c.backend.SubmitBatch(ctx, job)
	c.metrics.RecordDuration(metrics.OpSubmit, time.Since(start).Seconds())
	if err != nil {
		c.recordError(metrics.OpSubmit, err)
		return backend.BatchStatus{}, err
	}
	c.metrics.RecordOperation(metrics.OpSubmit, metrics.StatusSuccess)
	c.metrics.RecordStatus(status.JobStatus)

	now := c.now()
	c.mu.Lock()
	c.current = status
	c.hasCurrent = true
	c.filenames[status.JobID] = job.Filename
	var row *Row
	if c.tableOpen {
		r := Row{
			JobID:     status.JobID,
			JobNum:    status.JobNum,
			JobStatus: status.JobStatus,
			Filename:  job.Filename,
			Submitted: now.In(c.loc),
			Updated:   now.In(c.loc),
		}
		c.table = append([]Row{r}, c.table...)
		row = &r
	}
	c.mu.Unlock()

	c.publishStatus(status)
	if row != nil {
		c.publish(row.event())
	}
	c.persist(&datastore.JobRecord{
		JobID:     status.JobID,
		JobNum:    status.JobNum,
		Filename:  job.Filename,
		Status:    status.JobStatus,
		Submitted: now,
		Updated:   now,
	})

	c.log.Info("batch job submitted",
		logger.String("job_id", status.JobID),
		logger.Int("job_num", status.JobNum),
		logger.Int("locations", len(job.Locations)),
		logger.String("status", status.JobStatus))

	if isFailure(status.JobStatus) {
		return status, nil
	}
	c.Poll(status)
	return status, nil
}

// Poll starts polling status.JobID every interval, replacing any active poll.
func (c *Coordinator) Poll(status backend.BatchStatus) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &pollHandle{id: uuid.New(), jobID: status.JobID, cancel: cancel}

	c.mu.Lock()
	previous := c.poll
	c.poll = h
	c.lastErr = nil
	c.mu.Unlock()

	if previous != nil {
		previous.cancel()
	}
	c.metrics.SetPolling(true)

	c.log.Debug("polling started",
		logger.String("job_id", status.JobID),
		logger.String("poll_id", h.id.String()),
		logger.Duration("interval", c.interval))

	c.wg.Go(func() {
		c.pollLoop(ctx, h)
	})
}

func (c *Coordinator) pollLoop(ctx context.Context, h *pollHandle) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.tick(ctx, h) {
				return
			}
		}
	}
}

// tick runs one poll. It returns false when polling should end.
func (c *Coordinator) tick(ctx context.Context, h *pollHandle) bool {
	if !c.auth.IsAuthorized() {
		c.log.Debug("polling stopped, not authorized", logger.String("job_id", h.jobID))
		c.release(h)
		return false
	}

	start := time.Now()
	status, err := c.backend.BatchStatus(ctx, h.jobID)
	c.metrics.RecordDuration(metrics.OpPoll, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.recordError(metrics.OpPoll, err)
		if !errors.IsUnauthorized(err) {
			c.mu.Lock()
			if c.poll == h {
				c.lastErr = err
			}
			c.mu.Unlock()
			c.publish(events.Notification{Message: "status request failed: " + err.Error()})
		}
		c.release(h)
		return false
	}
	c.metrics.RecordOperation(metrics.OpPoll, metrics.StatusSuccess)

	if !c.apply(h, status) {
		return false
	}
	if stopsPolling(status.JobStatus) {
		c.log.Info("batch job finished",
			logger.String("job_id", status.JobID),
			logger.String("status", status.JobStatus))
		c.release(h)
		return false
	}
	return true
}

// apply records a polled status if h is still the active poll.
func (c *Coordinator) apply(h *pollHandle, status backend.BatchStatus) bool {
	c.mu.Lock()
	if c.poll != h {
		c.mu.Unlock()
		return false
	}
	prev := c.current.JobStatus
	c.current = status
	c.hasCurrent = true
	row, ok := c.updateRowLocked(status)
	c.mu.Unlock()

	if status.JobStatus != prev {
		c.metrics.RecordStatus(status.JobStatus)
	}
	c.publishStatus(status)
	if ok {
		c.publish(row.event())
	}
	c.persistStatus(status)
	return true
}

// release clears h if it is still the active poll.
func (c *Coordinator) release(h *pollHandle) {
	c.mu.Lock()
	active := c.poll == h
	if active {
		c.poll = nil
	}
	c.mu.Unlock()

	h.cancel()
	if active {
		c.metrics.SetPolling(false)
	}
}

// StopPolling stops the active poll, if any.
func (c *Coordinator) StopPolling() {
	c.mu.Lock()
	h := c.poll
	c.mu.Unlock()
	if h != nil {
		c.release(h)
	}
}

// Cancel cancels the job. A job already in a terminal state is not sent to
// the backend; an "already complete" notification is published instead.
// Polling stops in both cases.
func (c *Coordinator) Cancel(ctx context.Context, status backend.BatchStatus) (backend.BatchStatus, error) {
	c.mu.Lock()
	if c.hasCurrent && c.current.JobID == status.JobID {
		status = c.current
	}
	c.mu.Unlock()

	if State(status.JobStatus).IsTerminal() {
		c.StopPolling()
		c.publish(events.Notification{Message: AlreadyCompleteMessage})
		c.metrics.RecordOperation(metrics.OpCancel, metrics.StatusSkipped)
		return status, nil
	}

	start := time.Now()
	result, err := c.backend.CancelBatch(ctx, status.JobID)
	c.metrics.RecordDuration(metrics.OpCancel, time.Since(start).Seconds())
	if err != nil {
		c.recordError(metrics.OpCancel, err)
		return backend.BatchStatus{}, err
	}
	c.metrics.RecordOperation(metrics.OpCancel, metrics.StatusSuccess)
	c.metrics.RecordStatus(result.JobStatus)

	c.StopPolling()

	c.mu.Lock()
	if !c.hasCurrent || c.current.JobID == result.JobID {
		c.current = result
		c.hasCurrent = true
	}
	row, ok := c.updateRowLocked(result)
	c.mu.Unlock()

	c.publishStatus(result)
	if ok {
		c.publish(row.event())
	}
	c.persistStatus(result)

	c.log.Info("batch job cancelled",
		logger.String("job_id", result.JobID),
		logger.String("status", result.JobStatus))
	return result, nil
}

// Close stops polling and waits for the poll goroutine to exit.
func (c *Coordinator) Close() {
	c.StopPolling()
	c.wg.Wait()
}

func (c *Coordinator) recordError(op string, err error) {
	category := string(errors.CategoryGeneric)
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		category = ee.GetCategory()
	}
	c.metrics.RecordError(op, category)
	c.log.Warn("batch request failed",
		logger.String("operation", op),
		logger.Error(err))
}

func (c *Coordinator) publishStatus(status backend.BatchStatus) {
	c.publish(events.BatchStatusChanged{
		JobID:     status.JobID,
		JobNum:    status.JobNum,
		JobStatus: status.JobStatus,
	})
}

func (c *Coordinator) publish(ev events.Event) {
	if c.publisher != nil {
		c.publisher.TryPublish(ev)
	}
}

func (c *Coordinator) persist(job *datastore.JobRecord) {
	if c.store == nil {
		return
	}
	if err := c.store.UpsertJob(job); err != nil {
		c.log.Warn("failed to persist job", logger.String("job_id", job.JobID), logger.Error(err))
	}
}

func (c *Coordinator) persistStatus(status backend.BatchStatus) {
	if c.store == nil {
		return
	}
	if err := c.store.UpdateStatus(status.JobID, status.JobStatus, c.now()); err != nil {
		if errors.IsNotFound(err) {
			c.mu.Lock()
			filename := c.filenames[status.JobID]
			c.mu.Unlock()
			now := c.now()
			c.persist(&datastore.JobRecord{
				JobID:     status.JobID,
				JobNum:    status.JobNum,
				Filename:  filename,
				Status:    status.JobStatus,
				Submitted: now,
				Updated:   now,
			})
			return
		}
		c.log.Warn("failed to persist job status", logger.String("job_id", status.JobID), logger.Error(err))
	}
}

// GetLogger returns the batch module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("batch")
}
