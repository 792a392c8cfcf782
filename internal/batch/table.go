package batch

import (
	"context"
	"time"

	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/datastore"
	"github.com/tphakala/cyanwatch/internal/events"
	"github.com/tphakala/cyanwatch/internal/logger"
)

// Row is one job history row. Times are in the display time zone.
type Row struct {
	JobID     string
	JobNum    int
	JobStatus string
	Filename  string
	Submitted time.Time
	Updated   time.Time
}

func (r Row) event() events.BatchTableRowUpdated {
	return events.BatchTableRowUpdated{
		JobID:     r.JobID,
		JobNum:    r.JobNum,
		JobStatus: r.JobStatus,
		Filename:  r.Filename,
		Submitted: r.Submitted,
		Updated:   r.Updated,
	}
}

// OpenTable loads the job history and keeps it updated by later polls and
// cancels until CloseTable. Backend timestamps are UTC; rows hold them in the
// display time zone.
func (c *Coordinator) OpenTable(ctx context.Context) error {
	jobs, err := c.backend.ListBatches(ctx)
	if err != nil {
		c.recordError("list", err)
		return err
	}

	rows := make([]Row, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, Row{
			JobID:     j.JobID,
			JobNum:    j.JobNum,
			JobStatus: j.JobStatus,
			Filename:  j.Filename,
			Submitted: j.Submitted.In(c.loc),
			Updated:   j.Updated.In(c.loc),
		})
		c.persist(&datastore.JobRecord{
			JobID:     j.JobID,
			JobNum:    j.JobNum,
			Filename:  j.Filename,
			Status:    j.JobStatus,
			Submitted: j.Submitted,
			Updated:   j.Updated,
		})
	}

	c.mu.Lock()
	c.table = rows
	c.tableOpen = true
	for _, r := range rows {
		c.filenames[r.JobID] = r.Filename
	}
	c.mu.Unlock()

	c.log.Debug("job table opened", logger.Int("rows", len(rows)))
	return nil
}

// CloseTable drops the table; later status changes no longer touch rows.
func (c *Coordinator) CloseTable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = nil
	c.tableOpen = false
}

// Table returns a copy of the job history rows, newest first.
func (c *Coordinator) Table() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Row, len(c.table))
	copy(out, c.table)
	return out
}

// updateRowLocked updates the row for status.JobID in place.
func (c *Coordinator) updateRowLocked(status backend.BatchStatus) (Row, bool) {
	if !c.tableOpen {
		return Row{}, false
	}
	for i := range c.table {
		if c.table[i].JobID == status.JobID {
			c.table[i].JobStatus = status.JobStatus
			c.table[i].Updated = c.now().In(c.loc)
			return c.table[i], true
		}
	}
	return Row{}, false
}
