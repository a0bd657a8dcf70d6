package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/ecomsync/feedsync/internal/domain/job"
	"github.com/ecomsync/feedsync/internal/infrastructure/db/models"
)

// RowLogRepository appends per-row outcome records in bulk through pgx
// and serves paged reads through gorm.
type RowLogRepository struct {
	pool *pgxpool.Pool
	db   *gorm.DB
}

func NewRowLogRepository(pool *pgxpool.Pool, db *gorm.DB) *RowLogRepository {
	return &RowLogRepository{pool: pool, db: db}
}

// Append bulk-inserts a batch of row logs. Entries are append-only;
// nothing ever updates them.
func (r *RowLogRepository) Append(ctx context.Context, logs []job.RowLog) error {
	if len(logs) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(logs))
	for _, l := range logs {
		rawRow, err := nullableJSON(l.RawRow)
		if err != nil {
			return fmt.Errorf("encode raw row: %w", err)
		}
		changes, err := nullableJSON(l.Changes)
		if err != nil {
			return fmt.Errorf("encode changes: %w", err)
		}
		warnings, err := nullableJSON(l.Warnings)
		if err != nil {
			return fmt.Errorf("encode warnings: %w", err)
		}

		rows = append(rows, []any{
			l.JobID,
			l.RowNumber,
			rawRow,
			l.Identifier,
			string(l.Operation),
			nullableText(l.RecordID),
			changes,
			string(l.Status),
			nullableText(l.ErrorMsg),
			warnings,
			l.Duration.Milliseconds(),
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"feed_job_row_logs"},
		[]string{
			"job_id", "row_number", "raw_row", "identifier", "operation",
			"record_id", "changes", "status", "error_msg", "warnings", "duration_ms",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy row logs: %w", err)
	}
	return nil
}

// ListByJob returns one page of row logs in row order.
func (r *RowLogRepository) ListByJob(ctx context.Context, jobID string, offset, limit int) ([]job.RowLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []models.FeedJobRowLog
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("row_number ASC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list row logs: %w", err)
	}

	logs := make([]job.RowLog, 0, len(rows))
	for i := range rows {
		l, err := rowLogToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func rowLogToDomain(m *models.FeedJobRowLog) (job.RowLog, error) {
	l := job.RowLog{
		JobID:      m.JobID,
		RowNumber:  m.RowNumber,
		Identifier: m.Identifier,
		Operation:  job.RowOperation(m.Operation),
		RecordID:   m.RecordID,
		Status:     job.RowStatus(m.Status),
		Duration:   time.Duration(m.DurationMs) * time.Millisecond,
		CreatedAt:  m.CreatedAt,
	}
	if m.ErrorMsg != nil {
		l.ErrorMsg = *m.ErrorMsg
	}
	if len(m.RawRow) > 0 {
		if err := json.Unmarshal(m.RawRow, &l.RawRow); err != nil {
			return job.RowLog{}, fmt.Errorf("decode raw row: %w", err)
		}
	}
	if len(m.Changes) > 0 {
		if err := json.Unmarshal(m.Changes, &l.Changes); err != nil {
			return job.RowLog{}, fmt.Errorf("decode changes: %w", err)
		}
	}
	if len(m.Warnings) > 0 {
		if err := json.Unmarshal(m.Warnings, &l.Warnings); err != nil {
			return job.RowLog{}, fmt.Errorf("decode warnings: %w", err)
		}
	}
	return l, nil
}

func nullableJSON(v any) (*string, error) {
	if isEmptyValue(v) {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case map[string]string:
		return len(val) == 0
	case []job.FieldChange:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
