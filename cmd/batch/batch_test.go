package batch

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/batch"
	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/events"
)

type fakeQuerier struct {
	mu      sync.Mutex
	calls   int
	failFor string
}

func (q *fakeQuerier) BatchStatus(ctx context.Context, jobID string) (backend.BatchStatus, error) {
	q.mu.Lock()
	q.calls++
	q.mu.Unlock()
	if jobID == q.failFor {
		return backend.BatchStatus{}, errors.NewStd("boom")
	}
	return backend.BatchStatus{JobID: jobID, JobStatus: "STARTED", JobNum: len(jobID)}, nil
}

func TestQueryStatusesKeepsOrder(t *testing.T) {
	q := &fakeQuerier{}
	ids := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	statuses, err := QueryStatuses(t.Context(), q, ids)
	require.NoError(t, err)
	require.Len(t, statuses, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, statuses[i].JobID)
		assert.Equal(t, len(id), statuses[i].JobNum)
	}
	assert.Equal(t, len(ids), q.calls)
}

func TestQueryStatusesFails(t *testing.T) {
	q := &fakeQuerier{failFor: "bad"}

	_, err := QueryStatuses(t.Context(), q, []string{"ok", "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job bad")
}

func TestPrintRows(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	rows := []batch.Row{
		{JobID: "j-2", JobNum: 2, JobStatus: "STARTED", Filename: "b.csv", Submitted: ts, Updated: ts},
		{JobID: "j-1", JobNum: 1, JobStatus: "SUCCESS", Filename: "a.csv"},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintRows(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2024-06-01 12:30:00")
	assert.Contains(t, lines[2], "SUCCESS")
	assert.Contains(t, lines[2], " - ")
}

func TestPrintStatusesSkipsRepeats(t *testing.T) {
	ch := make(chan events.Event, 4)
	ch <- events.BatchStatusChanged{JobStatus: "STARTED"}
	ch <- events.BatchStatusChanged{JobStatus: "STARTED"}
	ch <- events.BatchStatusChanged{JobStatus: "SUCCESS"}
	ch <- events.Notification{Message: batch.AlreadyCompleteMessage}
	close(ch)

	var buf bytes.Buffer
	printStatuses(&buf, ch)
	assert.Equal(t, "status   STARTED\nstatus   SUCCESS\njob already complete\n", buf.String())
}
