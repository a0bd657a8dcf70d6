package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/infrastructure/db/models"
)

// FeedRepository reads and updates feed configurations. The pipeline
// treats feeds as read-only during a run; only the last-sync summary
// and next-run time are written back.
type FeedRepository struct {
	db *gorm.DB
}

func NewFeedRepository(db *gorm.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

func (r *FeedRepository) GetByID(ctx context.Context, id string) (*feed.Feed, error) {
	var m models.Feed
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, feed.ErrFeedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feed %s: %w", id, err)
	}
	return feedToDomain(&m)
}

// ListScheduled returns every feed with an enabled schedule; the
// scheduler reconciles its cron table against this set.
func (r *FeedRepository) ListScheduled(ctx context.Context) ([]*feed.Feed, error) {
	var rows []models.Feed
	if err := r.db.WithContext(ctx).Where("schedule_enabled = ?", true).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list scheduled feeds: %w", err)
	}

	feeds := make([]*feed.Feed, 0, len(rows))
	for i := range rows {
		f, err := feedToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, nil
}

// UpdateLastSync records the checksum and timing of a completed
// non-preview run; the aggregate counts stay on the job record.
func (r *FeedRepository) UpdateLastSync(ctx context.Context, feedID, checksum string, nextRun *time.Time) error {
	updates := map[string]any{
		"last_checksum": checksum,
		"last_sync_at":  time.Now().UTC(),
	}
	if nextRun != nil {
		updates["next_run_at"] = *nextRun
	}

	if err := r.db.WithContext(ctx).Model(&models.Feed{}).
		Where("id = ?", feedID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update feed last sync: %w", err)
	}
	return nil
}

func feedToDomain(m *models.Feed) (*feed.Feed, error) {
	f := &feed.Feed{
		ID:     m.ID,
		ShopID: m.ShopID,
		Name:   m.Name,
		Connection: feed.Connection{
			Protocol:      feed.Protocol(m.Protocol),
			Host:          m.Host,
			Port:          m.Port,
			Username:      m.Username,
			CredentialRef: m.CredentialRef,
			Directory:     m.Directory,
			Filename:      m.Filename,
		},
		Parse: feed.ParseOptions{
			Delimiter: m.Delimiter,
			Encoding:  m.Encoding,
			HasHeader: m.HasHeader,
		},
		Matching: feed.MatchingRule{
			Column: m.MatchingColumn,
			Type:   feed.MatchingType(m.MatchingType),
		},
		Schedule: feed.Schedule{
			Enabled:  m.ScheduleEnabled,
			DailyAt:  m.ScheduleDailyAt,
			Timezone: m.ScheduleTimezone,
		},
		Options: feed.Options{
			SkipUnchangedFile: m.SkipUnchangedFile,
			SkipUnchangedRows: m.SkipUnchangedRows,
			BatchSize:         m.BatchSize,
			CreateNew:         m.CreateNew,
			UpdateExisting:    m.UpdateExisting,
		},
		LastChecksum: m.LastChecksum,
		LastSyncAt:   m.LastSyncAt,
		NextRunAt:    m.NextRunAt,
	}

	if len(m.Mappings) > 0 {
		if err := json.Unmarshal(m.Mappings, &f.Mappings); err != nil {
			return nil, fmt.Errorf("decode feed mappings: %w", err)
		}
	}
	if len(m.Filters) > 0 {
		if err := json.Unmarshal(m.Filters, &f.Filters); err != nil {
			return nil, fmt.Errorf("decode feed filters: %w", err)
		}
	}
	if len(m.ValueMappings) > 0 {
		if err := json.Unmarshal(m.ValueMappings, &f.ValueMappings); err != nil {
			return nil, fmt.Errorf("decode feed value mappings: %w", err)
		}
	}
	return f, nil
}
