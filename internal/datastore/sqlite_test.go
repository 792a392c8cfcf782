package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cyanwatch/internal/errors"
)

var _ Interface = (*SQLiteStore)(nil)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "jobs.db"))
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndList(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertJob(&JobRecord{JobID: "a", JobNum: 1, Filename: "a.csv", Status: "RECEIVED", Submitted: base, Updated: base}))
	require.NoError(t, s.UpsertJob(&JobRecord{JobID: "b", JobNum: 2, Filename: "b.csv", Status: "STARTED", Submitted: base.Add(time.Hour), Updated: base.Add(time.Hour)}))
	// upsert overwrites
	require.NoError(t, s.UpsertJob(&JobRecord{JobID: "a", JobNum: 1, Filename: "a.csv", Status: "SUCCESS", Submitted: base, Updated: base.Add(2 * time.Hour)}))

	jobs, err := s.ListJobs(0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].JobID)
	assert.Equal(t, "SUCCESS", jobs[1].Status)

	jobs, err = s.ListJobs(1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	now := time.Now()
	require.NoError(t, s.UpsertJob(&JobRecord{JobID: "j", Status: "RECEIVED", Submitted: now, Updated: now}))
	require.NoError(t, s.UpdateStatus("j", "REVOKED", now.Add(time.Minute)))

	job, err := s.GetJob("j")
	require.NoError(t, err)
	assert.Equal(t, "REVOKED", job.Status)
	assert.WithinDuration(t, now.Add(time.Minute), job.Updated, time.Second)

	err = s.UpdateStatus("missing", "SUCCESS", now)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = s.GetJob("missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestClosedStore(t *testing.T) {
	t.Parallel()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	_, err := s.ListJobs(0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	require.NoError(t, s.Close())

	require.Error(t, NewSQLiteStore("").Open())
}
