package models

import (
	"time"

	"gorm.io/datatypes"
)

// Feed is the persisted feed configuration. Mapping, filter and
// value-rule payloads are JSON columns carrying the domain shapes.
type Feed struct {
	ID     string `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID string `gorm:"type:uuid;not null;index"`
	Name   string `gorm:"size:255;not null"`

	Protocol      string `gorm:"size:16;not null"`
	Host          string `gorm:"size:255"`
	Port          int
	Username      string `gorm:"size:255"`
	CredentialRef string `gorm:"size:255"`
	Directory     string `gorm:"type:text"`
	Filename      string `gorm:"size:255;not null"`

	Delimiter string `gorm:"size:4;not null;default:','"`
	Encoding  string `gorm:"size:32;not null;default:'utf-8'"`
	HasHeader bool   `gorm:"not null;default:true"`

	MatchingColumn string `gorm:"size:255;not null"`
	MatchingType   string `gorm:"size:16;not null;default:'sku'"`

	Mappings      datatypes.JSON `gorm:"not null"`
	Filters       datatypes.JSON
	ValueMappings datatypes.JSON

	ScheduleEnabled  bool   `gorm:"not null;default:false"`
	ScheduleDailyAt  string `gorm:"size:5"`
	ScheduleTimezone string `gorm:"size:64"`

	SkipUnchangedFile bool `gorm:"not null;default:false"`
	SkipUnchangedRows bool `gorm:"not null;default:false"`
	BatchSize         int  `gorm:"not null;default:25"`
	CreateNew         bool `gorm:"not null;default:true"`
	UpdateExisting    bool `gorm:"not null;default:true"`

	LastChecksum string `gorm:"size:64"`
	LastSyncAt   *time.Time
	NextRunAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Feed) TableName() string {
	return "feeds"
}
