package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecomsync/feedsync/internal/domain/job"
	"github.com/ecomsync/feedsync/internal/infrastructure/db/models"
)

// JobRepository persists job lifecycle state. Status writes go through
// the domain transition table; an illegal transition is a bug surfaced
// as ErrInvalidTransition rather than silently overwritten state.
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreatePending creates a new pending job for a feed. Admission
// control: inside one transaction, any existing pending or processing
// job for the feed rejects the create with ErrJobConflict — two
// overlapping syncs for one feed must never both run.
func (r *JobRepository) CreatePending(ctx context.Context, feedID, shopID string, trigger job.Trigger, isPreview bool) (*job.Job, error) {
	var created models.FeedJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		err := tx.Model(&models.FeedJob{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("feed_id = ? AND status IN ?", feedID,
				[]string{string(job.StatusPending), string(job.StatusProcessing)}).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("count active jobs: %w", err)
		}
		if active > 0 {
			return job.ErrJobConflict
		}

		created = models.FeedJob{
			FeedID:  feedID,
			ShopID:  shopID,
			Status:  string(job.StatusPending),
			Trigger: string(trigger),

			IsPreview: isPreview,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return jobToDomain(&created), nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*job.Job, error) {
	var m models.FeedJob
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, job.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return jobToDomain(&m), nil
}

// FindPendingByFeed resolves a fresh queue delivery to the pending job
// created at enqueue time. A nil job without error means no pending job
// exists, which happens when a delivery is replayed after its job
// already finished or was cancelled.
func (r *JobRepository) FindPendingByFeed(ctx context.Context, feedID string) (*job.Job, error) {
	var m models.FeedJob
	err := r.db.WithContext(ctx).
		Where("feed_id = ? AND status = ?", feedID, string(job.StatusPending)).
		Order("created_at ASC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending job for feed %s: %w", feedID, err)
	}
	return jobToDomain(&m), nil
}

// Status is the cheap per-row cancellation poll.
func (r *JobRepository) Status(ctx context.Context, id string) (job.Status, error) {
	var m models.FeedJob
	err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", job.ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read job status: %w", err)
	}
	return job.Status(m.Status), nil
}

// MarkProcessing transitions a pending or interrupted job to
// processing and stamps the start time (resume keeps the original).
func (r *JobRepository) MarkProcessing(ctx context.Context, id string, deliveryID string) error {
	return r.transition(ctx, id, job.StatusProcessing, map[string]any{
		"queue_delivery_id": deliveryID,
		"started_at":        gorm.Expr("COALESCE(started_at, ?)", time.Now().UTC()),
	})
}

// SetFile records the downloaded file descriptor on the job.
func (r *JobRepository) SetFile(ctx context.Context, id string, file job.FileInfo) error {
	err := r.db.WithContext(ctx).Model(&models.FeedJob{}).Where("id = ?", id).
		Updates(map[string]any{
			"file_path":      file.Path,
			"file_checksum":  file.Checksum,
			"file_size":      file.Size,
			"file_row_count": file.RowCount,
			"progress_total": file.RowCount,
		}).Error
	if err != nil {
		return fmt.Errorf("set job file: %w", err)
	}
	return nil
}

// UpdateProgress persists the live current/total counter.
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, p job.Progress) error {
	err := r.db.WithContext(ctx).Model(&models.FeedJob{}).Where("id = ?", id).
		Updates(map[string]any{
			"progress_current": p.Current,
			"progress_total":   p.Total,
		}).Error
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// SaveCheckpoint persists the resume checkpoint: last processed row and
// the aggregate snapshot. Written on a fixed cadence; a crash loses at
// most one cadence worth of rows.
func (r *JobRepository) SaveCheckpoint(ctx context.Context, id string, cp job.Checkpoint) error {
	err := r.db.WithContext(ctx).Model(&models.FeedJob{}).Where("id = ?", id).
		Updates(map[string]any{
			"last_processed_row": cp.RowIndex,
			"processed_count":    cp.Results.Processed,
			"created_count":      cp.Results.Created,
			"updated_count":      cp.Results.Updated,
			"skipped_count":      cp.Results.Skipped,
			"failed_count":       cp.Results.Failed,
		}).Error
	if err != nil {
		return fmt.Errorf("save job checkpoint: %w", err)
	}
	return nil
}

// Complete marks the job completed with its final aggregates.
func (r *JobRepository) Complete(ctx context.Context, id string, results job.Results) error {
	return r.transition(ctx, id, job.StatusCompleted, map[string]any{
		"processed_count":  results.Processed,
		"created_count":    results.Created,
		"updated_count":    results.Updated,
		"skipped_count":    results.Skipped,
		"failed_count":     results.Failed,
		"progress_current": gorm.Expr("progress_total"),
		"completed_at":     time.Now().UTC(),
	})
}

// Fail marks the job failed with error detail.
func (r *JobRepository) Fail(ctx context.Context, id string, message, code string) error {
	return r.transition(ctx, id, job.StatusFailed, map[string]any{
		"error_message": truncate(message, 1000),
		"error_code":    code,
		"error_at":      time.Now().UTC(),
		"completed_at":  time.Now().UTC(),
	})
}

// Interrupt marks a job interrupted so the resume sweep can redispatch
// it. The checkpoint written alongside is what the resume restores.
func (r *JobRepository) Interrupt(ctx context.Context, id string, cp job.Checkpoint, reason string) error {
	return r.transition(ctx, id, job.StatusInterrupted, map[string]any{
		"last_processed_row": cp.RowIndex,
		"processed_count":    cp.Results.Processed,
		"created_count":      cp.Results.Created,
		"updated_count":      cp.Results.Updated,
		"skipped_count":      cp.Results.Skipped,
		"failed_count":       cp.Results.Failed,
		"error_message":      truncate(reason, 1000),
		"error_code":         "interrupted",
		"error_at":           time.Now().UTC(),
	})
}

// RequestCancel flips a pending or processing job to cancelled. The
// worker notices on its next per-row poll; the row in flight may still
// complete.
func (r *JobRepository) RequestCancel(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.FeedJob{}).
		Where("id = ? AND status IN ?", id,
			[]string{string(job.StatusPending), string(job.StatusProcessing)}).
		Updates(map[string]any{
			"status":       string(job.StatusCancelled),
			"completed_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("cancel job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job is not pending or processing", job.ErrInvalidTransition)
	}
	return nil
}

// FindStale returns processing and interrupted jobs whose record has
// not been touched within the threshold; the sweeper decides
// interrupt-vs-fail-vs-redispatch per job.
func (r *JobRepository) FindStale(ctx context.Context, olderThan time.Duration) ([]*job.Job, error) {
	var rows []models.FeedJob
	cutoff := time.Now().UTC().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]string{string(job.StatusProcessing), string(job.StatusInterrupted)}, cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find stale jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, jobToDomain(&rows[i]))
	}
	return jobs, nil
}

// transition applies a guarded status change plus extra column updates.
func (r *JobRepository) transition(ctx context.Context, id string, to job.Status, updates map[string]any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.FeedJob
		err := tx.Select("status").
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return job.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("read job status: %w", err)
		}
		if !job.CanTransition(job.Status(current.Status), to) {
			return fmt.Errorf("%w: %s -> %s", job.ErrInvalidTransition, current.Status, to)
		}

		updates["status"] = string(to)
		if err := tx.Model(&models.FeedJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("transition job to %s: %w", to, err)
		}
		return nil
	})
}

func jobToDomain(m *models.FeedJob) *job.Job {
	j := &job.Job{
		ID:      m.ID,
		FeedID:  m.FeedID,
		ShopID:  m.ShopID,
		Status:  job.Status(m.Status),
		Trigger: job.Trigger(m.Trigger),

		IsPreview: m.IsPreview,
		File: job.FileInfo{
			Path:     m.FilePath,
			Checksum: m.FileChecksum,
			Size:     m.FileSize,
			RowCount: m.FileRowCount,
		},
		Results: job.Results{
			Processed: m.ProcessedCount,
			Created:   m.CreatedCount,
			Updated:   m.UpdatedCount,
			Skipped:   m.SkippedCount,
			Failed:    m.FailedCount,
		},
		Progress:         job.NewProgress(m.ProgressCurrent, m.ProgressTotal),
		LastProcessedRow: m.LastProcessedRow,
		QueueDeliveryID:  m.QueueDeliveryID,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}

	if m.ErrorMessage != nil {
		detail := &job.ErrorDetail{Message: *m.ErrorMessage}
		if m.ErrorCode != nil {
			detail.Code = *m.ErrorCode
		}
		if m.ErrorAt != nil {
			detail.At = *m.ErrorAt
		}
		j.Error = detail
	}
	return j
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
