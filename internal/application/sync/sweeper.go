package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ecomsync/feedsync/internal/domain/job"
)

type sweeperJobRepo interface {
	FindStale(ctx context.Context, olderThan time.Duration) ([]*job.Job, error)
	Interrupt(ctx context.Context, id string, cp job.Checkpoint, reason string) error
	Fail(ctx context.Context, id, message, code string) error
}

// Sweeper recovers jobs whose worker died without reporting back: a
// processing job untouched past the stale threshold either resumes from
// its checkpoint or, having made no progress, fails outright.
type Sweeper struct {
	jobs           sweeperJobRepo
	queue          resumeEnqueuer
	staleThreshold time.Duration
}

func NewSweeper(jobs sweeperJobRepo, queue resumeEnqueuer, staleThreshold time.Duration) *Sweeper {
	if staleThreshold <= 0 {
		staleThreshold = time.Hour
	}
	return &Sweeper{jobs: jobs, queue: queue, staleThreshold: staleThreshold}
}

// Sweep performs one pass; the entrypoint runs it on a fixed interval.
func (s *Sweeper) Sweep(ctx context.Context) error {
	stale, err := s.jobs.FindStale(ctx, s.staleThreshold)
	if err != nil {
		return fmt.Errorf("find stale jobs: %w", err)
	}

	for _, j := range stale {
		if err := s.recover(ctx, j); err != nil {
			log.Printf("recover stale job %s: %v", j.ID, err)
		}
	}
	return nil
}

func (s *Sweeper) recover(ctx context.Context, j *job.Job) error {
	cp := j.Checkpoint()

	if j.Status == job.StatusProcessing {
		if cp.RowIndex == 0 && cp.Results.Processed == 0 {
			return s.jobs.Fail(ctx, j.ID, "processing stalled before any row completed", "stalled")
		}
		if err := s.jobs.Interrupt(ctx, j.ID, cp, "processing stalled"); err != nil {
			return err
		}
	}

	// Interrupted jobs reaching this point lost their resume dispatch;
	// re-enqueueing is safe because a duplicate resume delivery is
	// dropped once the job has left the interrupted state.
	_, err := s.queue.Enqueue(ctx, job.Descriptor{
		FeedID:      j.FeedID,
		ShopID:      j.ShopID,
		Type:        job.TriggerResume,
		ResumeJobID: j.ID,
	})
	if err != nil {
		return fmt.Errorf("enqueue resume: %w", err)
	}
	return nil
}
