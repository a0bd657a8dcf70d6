package models

import (
	"time"

	"gorm.io/datatypes"
)

// FeedJobRowLog is the append-only per-row outcome record. Rows are
// bulk-inserted through pgx; this model serves reads.
type FeedJobRowLog struct {
	ID         int64  `gorm:"primaryKey"`
	JobID      string `gorm:"type:uuid;not null;index"`
	RowNumber  int    `gorm:"not null"`
	RawRow     datatypes.JSON
	Identifier string `gorm:"size:255"`
	Operation  string `gorm:"size:16;not null"`
	RecordID   string `gorm:"size:64"`
	Changes    datatypes.JSON
	Status     string  `gorm:"size:16;not null"`
	ErrorMsg   *string `gorm:"type:text"`
	Warnings   datatypes.JSON
	DurationMs int64     `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null;default:now()"`
}

func (FeedJobRowLog) TableName() string {
	return "feed_job_row_logs"
}
