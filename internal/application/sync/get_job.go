package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecomsync/feedsync/internal/domain/job"
)

type getJobRepo interface {
	Get(ctx context.Context, id string) (*job.Job, error)
}

type GetJobInput struct {
	JobID string
}

type GetJob interface {
	Execute(ctx context.Context, in GetJobInput) (*job.Job, error)
}

type getJob struct {
	jobs getJobRepo
}

func NewGetJob(jobs getJobRepo) GetJob {
	return &getJob{jobs: jobs}
}

func (uc *getJob) Execute(ctx context.Context, in GetJobInput) (*job.Job, error) {
	j, err := uc.jobs.Get(ctx, in.JobID)
	if errors.Is(err, job.ErrJobNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}
