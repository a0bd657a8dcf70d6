package models

import "time"

// FeedJob is one persisted execution attempt of a feed sync.
type FeedJob struct {
	ID      string `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FeedID  string `gorm:"type:uuid;not null;index"`
	ShopID  string `gorm:"type:uuid;not null;index"`
	Status  string `gorm:"size:16;not null;index"`
	Trigger string `gorm:"column:trigger_type;size:16;not null"`

	IsPreview bool `gorm:"not null;default:false"`

	FilePath     string `gorm:"type:text"`
	FileChecksum string `gorm:"size:64"`
	FileSize     int64  `gorm:"not null;default:0"`
	FileRowCount int    `gorm:"not null;default:0"`

	ProcessedCount int `gorm:"not null;default:0"`
	CreatedCount   int `gorm:"not null;default:0"`
	UpdatedCount   int `gorm:"not null;default:0"`
	SkippedCount   int `gorm:"not null;default:0"`
	FailedCount    int `gorm:"not null;default:0"`

	ProgressCurrent  int `gorm:"not null;default:0"`
	ProgressTotal    int `gorm:"not null;default:0"`
	LastProcessedRow int `gorm:"not null;default:0"`

	QueueDeliveryID string `gorm:"size:64"`

	ErrorMessage *string `gorm:"type:text"`
	ErrorCode    *string `gorm:"size:64"`
	ErrorAt      *time.Time

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time `gorm:"index"`
}

func (FeedJob) TableName() string {
	return "feed_jobs"
}
