package datastore

import "time"

// JobRecord is one submitted batch job. Times are stored in UTC.
type JobRecord struct {
	JobID     string `gorm:"primaryKey;size:64"`
	JobNum    int    `gorm:"index"`
	Filename  string `gorm:"size:255"`
	Status    string `gorm:"size:32;index"`
	Submitted time.Time
	Updated   time.Time
}

// TableName pins the table name.
func (JobRecord) TableName() string {
	return "batch_jobs"
}
