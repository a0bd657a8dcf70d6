package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecomsync/feedsync/internal/domain/job"
)

type rowLogReader interface {
	ListByJob(ctx context.Context, jobID string, offset, limit int) ([]job.RowLog, error)
}

type ListRowLogsInput struct {
	JobID  string
	Offset int
	Limit  int
}

type ListRowLogs interface {
	Execute(ctx context.Context, in ListRowLogsInput) ([]job.RowLog, error)
}

type listRowLogs struct {
	jobs getJobRepo
	logs rowLogReader
}

func NewListRowLogs(jobs getJobRepo, logs rowLogReader) ListRowLogs {
	return &listRowLogs{jobs: jobs, logs: logs}
}

func (uc *listRowLogs) Execute(ctx context.Context, in ListRowLogsInput) ([]job.RowLog, error) {
	if _, err := uc.jobs.Get(ctx, in.JobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return uc.logs.ListByJob(ctx, in.JobID, in.Offset, in.Limit)
}
