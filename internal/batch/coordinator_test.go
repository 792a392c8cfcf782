package batch

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/datastore"
	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/events"
)

const testInterval = 10 * time.Millisecond

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAuth struct{ denied atomic.Bool }

func (a *fakeAuth) IsAuthorized() bool { return !a.denied.Load() }

type fakeBackend struct {
	mu          sync.Mutex
	submit      backend.BatchStatus
	statuses    []string
	statusErr   error
	statusCalls map[string]int
	cancelCalls int
	cancelTo    string
	jobs        []backend.JobSummary
	submitted   []backend.BatchJob
}

func newFakeBackend(submitStatus string, statuses ...string) *fakeBackend {
	return &fakeBackend{
		submit:      backend.BatchStatus{JobID: "job-1", JobStatus: submitStatus, JobNum: 7},
		statuses:    statuses,
		statusCalls: map[string]int{},
		cancelTo:    string(StateRevoked),
	}
}

func (b *fakeBackend) SubmitBatch(_ context.Context, job backend.BatchJob) (backend.BatchStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, job)
	return b.submit, nil
}

func (b *fakeBackend) BatchStatus(_ context.Context, jobID string) (backend.BatchStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls[jobID]++
	if b.statusErr != nil {
		return backend.BatchStatus{}, b.statusErr
	}
	idx := min(b.statusCalls[jobID], len(b.statuses)) - 1
	return backend.BatchStatus{JobID: jobID, JobStatus: b.statuses[idx], JobNum: 7}, nil
}

func (b *fakeBackend) CancelBatch(_ context.Context, jobID string) (backend.BatchStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelCalls++
	return backend.BatchStatus{JobID: jobID, JobStatus: b.cancelTo, JobNum: 7}, nil
}

func (b *fakeBackend) ListBatches(context.Context) ([]backend.JobSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jobs, nil
}

func (b *fakeBackend) calls(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls[jobID]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) TryPublish(ev events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *recordingPublisher) notifications() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if n, ok := ev.(events.Notification); ok {
			out = append(out, n.Message)
		}
	}
	return out
}

func newCoordinator(t *testing.T, b *fakeBackend, mutate ...func(*Config)) (*Coordinator, *fakeAuth, *recordingPublisher) {
	t.Helper()
	auth := &fakeAuth{}
	pub := &recordingPublisher{}
	cfg := Config{Backend: b, Auth: auth, Publisher: pub, PollInterval: testInterval}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, auth, pub
}

func waitStopped(t *testing.T, c *Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.Polling() }, 2*time.Second, testInterval/2)
}

func TestPollingStopsOnTerminalStatus(t *testing.T) {
	b := newFakeBackend("RECEIVED", "STARTED", "PENDING", "SUCCESS")
	c, _, _ := newCoordinator(t, b)

	status, err := c.Submit(t.Context(), backend.BatchJob{Filename: "a.csv"})
	require.NoError(t, err)
	assert.Equal(t, "RECEIVED", status.JobStatus)
	assert.True(t, c.Polling())

	waitStopped(t, c)
	assert.Equal(t, 3, b.calls("job-1"))

	// no further requests once terminal
	time.Sleep(5 * testInterval)
	assert.Equal(t, 3, b.calls("job-1"))

	current, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "SUCCESS", current.JobStatus)
}

func TestPollingStopsOnFailureMessage(t *testing.T) {
	b := newFakeBackend("RECEIVED", "Failed to geocode row 3")
	c, _, _ := newCoordinator(t, b)

	_, err := c.Submit(t.Context(), backend.BatchJob{})
	require.NoError(t, err)
	waitStopped(t, c)
	assert.Equal(t, 1, b.calls("job-1"))
}

func TestSubmitFailureDoesNotPoll(t *testing.T) {
	b := newFakeBackend("FAILURE")
	c, _, _ := newCoordinator(t, b)

	_, err := c.Submit(t.Context(), backend.BatchJob{})
	require.NoError(t, err)
	assert.False(t, c.Polling())
	time.Sleep(3 * testInterval)
	assert.Zero(t, b.calls("job-1"))
}

func TestCancelTerminalJobIssuesNoRequest(t *testing.T) {
	b := newFakeBackend("RECEIVED", "SUCCESS")
	c, _, pub := newCoordinator(t, b)

	submitted, err := c.Submit(t.Context(), backend.BatchJob{Filename: "a.csv"})
	require.NoError(t, err)
	waitStopped(t, c)

	// the caller's stale RECEIVED view is superseded by the polled status
	_, err = c.Cancel(t.Context(), submitted)
	require.NoError(t, err)
	assert.Zero(t, b.cancelCalls)
	assert.Equal(t, []string{AlreadyCompleteMessage}, pub.notifications())
}

func TestCancelTerminalJobStopsPolling(t *testing.T) {
	b := newFakeBackend("RECEIVED", "STARTED")
	c, _, pub := newCoordinator(t, b, func(cfg *Config) { cfg.PollInterval = time.Hour })

	c.Poll(backend.BatchStatus{JobID: "job-9", JobStatus: "STARTED"})
	require.True(t, c.Polling())

	_, err := c.Cancel(t.Context(), backend.BatchStatus{JobID: "job-9", JobStatus: "SUCCESS"})
	require.NoError(t, err)

	assert.False(t, c.Polling())
	assert.Zero(t, b.cancelCalls)
	assert.Zero(t, b.calls("job-9"))
	assert.Equal(t, []string{AlreadyCompleteMessage}, pub.notifications())
}

func TestCancelRunningJob(t *testing.T) {
	b := newFakeBackend("RECEIVED", "STARTED")
	b.jobs = []backend.JobSummary{{JobID: "job-0", JobNum: 6, JobStatus: "SUCCESS", Filename: "old.csv"}}
	c, _, _ := newCoordinator(t, b)
	require.NoError(t, c.OpenTable(t.Context()))

	status, err := c.Submit(t.Context(), backend.BatchJob{Filename: "a.csv"})
	require.NoError(t, err)

	result, err := c.Cancel(t.Context(), status)
	require.NoError(t, err)
	assert.Equal(t, "REVOKED", result.JobStatus)
	assert.Equal(t, 1, b.cancelCalls)
	assert.False(t, c.Polling())

	current, _ := c.Current()
	assert.Equal(t, "REVOKED", current.JobStatus)

	table := c.Table()
	require.Len(t, table, 2)
	assert.Equal(t, "job-1", table[0].JobID)
	assert.Equal(t, "a.csv", table[0].Filename)
	assert.Equal(t, "REVOKED", table[0].JobStatus)
	assert.Equal(t, "SUCCESS", table[1].JobStatus)
}

func TestNewPollReplacesPrevious(t *testing.T) {
	b := newFakeBackend("RECEIVED", "STARTED")
	c, _, _ := newCoordinator(t, b)

	c.Poll(backend.BatchStatus{JobID: "old"})
	require.Eventually(t, func() bool { return b.calls("old") > 0 }, time.Second, testInterval/2)

	c.Poll(backend.BatchStatus{JobID: "new"})
	before := b.calls("old")
	require.Eventually(t, func() bool { return b.calls("new") >= 3 }, time.Second, testInterval/2)

	// at most one request of the old loop was already in flight
	assert.LessOrEqual(t, b.calls("old"), before+1)
	c.StopPolling()
}

func TestPollStopsWhenUnauthorized(t *testing.T) {
	b := newFakeBackend("RECEIVED", "STARTED")
	c, auth, _ := newCoordinator(t, b)

	auth.denied.Store(true)
	c.Poll(backend.BatchStatus{JobID: "job-1"})
	waitStopped(t, c)

	assert.Zero(t, b.calls("job-1"))
	assert.NoError(t, c.LastError())
}

func TestPollTransportErrorStops(t *testing.T) {
	b := newFakeBackend("RECEIVED", "STARTED")
	b.statusErr = errors.NewStd("connection reset")
	c, _, pub := newCoordinator(t, b)

	c.Poll(backend.BatchStatus{JobID: "job-1"})
	waitStopped(t, c)

	assert.Equal(t, 1, b.calls("job-1"))
	require.Error(t, c.LastError())
	require.Len(t, pub.notifications(), 1)
}

func TestOpenTableConvertsToDisplayZone(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	submitted := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b := newFakeBackend("RECEIVED", "SUCCESS")
	b.jobs = []backend.JobSummary{{JobID: "job-1", JobNum: 7, JobStatus: "STARTED", Filename: "a.csv", Submitted: submitted, Updated: submitted}}
	c, _, _ := newCoordinator(t, b, func(cfg *Config) { cfg.Location = zone })

	require.NoError(t, c.OpenTable(t.Context()))
	table := c.Table()
	require.Len(t, table, 1)
	assert.Equal(t, 15, table[0].Submitted.Hour())
	assert.True(t, table[0].Submitted.Equal(submitted))

	c.Poll(backend.BatchStatus{JobID: "job-1", JobStatus: "STARTED"})
	waitStopped(t, c)
	assert.Equal(t, "SUCCESS", c.Table()[0].JobStatus)

	c.CloseTable()
	assert.Empty(t, c.Table())
}

func TestUploadFileRejectsWithoutRequest(t *testing.T) {
	b := newFakeBackend("RECEIVED", "SUCCESS")
	c, _, _ := newCoordinator(t, b)

	_, verr, err := c.UploadFile(t.Context(), "points.txt", "latitude,longitude,type\n1,2,weekly\n")
	require.NoError(t, err)
	require.NotNil(t, verr)
	assert.Equal(t, ReasonFileType, verr.Reason)

	_, verr, err = c.UploadFile(t.Context(), "points.csv", "lat,lon,type\n1,2,weekly\n")
	require.NoError(t, err)
	require.NotNil(t, verr)
	assert.Equal(t, ReasonColumnName, verr.Reason)

	b.mu.Lock()
	assert.Empty(t, b.submitted)
	b.mu.Unlock()

	status, verr, err := c.UploadFile(t.Context(), "points.csv", "latitude,longitude,type\n1,2,weekly\n3,4,daily\n")
	require.NoError(t, err)
	require.Nil(t, verr)
	assert.Equal(t, "job-1", status.JobID)
	waitStopped(t, c)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.submitted, 1)
	assert.Len(t, b.submitted[0].Locations, 2)
}

func TestJobHistoryPersisted(t *testing.T) {
	db := datastore.NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, db.Open())
	t.Cleanup(func() { _ = db.Close() })

	b := newFakeBackend("RECEIVED", "STARTED", "SUCCESS")
	c, _, _ := newCoordinator(t, b, func(cfg *Config) { cfg.Store = db })

	_, err := c.Submit(t.Context(), backend.BatchJob{Filename: "lakes.csv"})
	require.NoError(t, err)
	waitStopped(t, c)

	job, err := db.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", job.Status)
	assert.Equal(t, "lakes.csv", job.Filename)
	assert.Equal(t, 7, job.JobNum)
}
