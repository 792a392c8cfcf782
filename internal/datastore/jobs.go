package datastore

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/cyanwatch/internal/errors"
)

func (s *SQLiteStore) db() (*gorm.DB, error) {
	if s.DB == nil {
		return nil, errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return s.DB, nil
}

func dbError(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("operation", op).
			Build()
	}
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

// UpsertJob inserts the job or overwrites the existing row with the same id.
func (s *SQLiteStore) UpsertJob(job *JobRecord) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	job.Submitted = job.Submitted.UTC()
	job.Updated = job.Updated.UTC()
	err = db.Clauses(clause.OnConflict{UpdateAll: true}).Create(job).Error
	if err != nil {
		return dbError(err, "upsert_job")
	}
	return nil
}

// UpdateStatus sets the status of a stored job.
func (s *SQLiteStore) UpdateStatus(jobID, status string, updated time.Time) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	result := db.Model(&JobRecord{}).
		Where("job_id = ?", jobID).
		Updates(map[string]any{"status": status, "updated": updated.UTC()})
	if result.Error != nil {
		return dbError(result.Error, "update_status")
	}
	if result.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "update_status")
	}
	return nil
}

// GetJob returns one job.
func (s *SQLiteStore) GetJob(jobID string) (JobRecord, error) {
	db, err := s.db()
	if err != nil {
		return JobRecord{}, err
	}
	var job JobRecord
	if err := db.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return JobRecord{}, dbError(err, "get_job")
	}
	return job, nil
}

// ListJobs returns jobs newest first. limit <= 0 returns all.
func (s *SQLiteStore) ListJobs(limit int) ([]JobRecord, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	q := db.Order("submitted DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []JobRecord
	if err := q.Find(&jobs).Error; err != nil {
		return nil, dbError(err, "list_jobs")
	}
	return jobs, nil
}
