package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecomsync/feedsync/internal/domain/job"
)

type cancelJobRepo interface {
	Get(ctx context.Context, id string) (*job.Job, error)
	RequestCancel(ctx context.Context, id string) error
}

type CancelJobInput struct {
	JobID string
}

type CancelJob interface {
	Execute(ctx context.Context, in CancelJobInput) (*job.Job, error)
}

type cancelJob struct {
	jobs cancelJobRepo
}

func NewCancelJob(jobs cancelJobRepo) CancelJob {
	return &cancelJob{jobs: jobs}
}

// Execute flips a pending or processing job to cancelled. The worker
// notices on its next per-row poll, so the row currently in flight may
// still be written before processing stops.
func (uc *cancelJob) Execute(ctx context.Context, in CancelJobInput) (*job.Job, error) {
	if err := uc.jobs.RequestCancel(ctx, in.JobID); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			return nil, ErrJobNotFound
		case errors.Is(err, job.ErrInvalidTransition):
			return nil, fmt.Errorf("%w: %v", ErrCancelSyncJob, err)
		default:
			return nil, fmt.Errorf("cancel job: %w", err)
		}
	}
	return uc.jobs.Get(ctx, in.JobID)
}
