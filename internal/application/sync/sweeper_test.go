package sync_test

import (
	"context"
	"testing"
	"time"

	appsync "github.com/ecomsync/feedsync/internal/application/sync"
	"github.com/ecomsync/feedsync/internal/domain/job"
)

type fakeSweeperJobs struct {
	stale []*job.Job

	interrupted []string
	failed      []string
}

func (f *fakeSweeperJobs) FindStale(ctx context.Context, olderThan time.Duration) ([]*job.Job, error) {
	return f.stale, nil
}

func (f *fakeSweeperJobs) Interrupt(ctx context.Context, id string, cp job.Checkpoint, reason string) error {
	f.interrupted = append(f.interrupted, id)
	return nil
}

func (f *fakeSweeperJobs) Fail(ctx context.Context, id, message, code string) error {
	f.failed = append(f.failed, id)
	return nil
}

func TestSweeperResumesStalledJobWithProgress(t *testing.T) {
	t.Parallel()

	jobs := &fakeSweeperJobs{stale: []*job.Job{{
		ID:               "job-1",
		FeedID:           "feed-1",
		ShopID:           "shop-1",
		Status:           job.StatusProcessing,
		LastProcessedRow: 120,
		Results:          job.Results{Processed: 120, Created: 100, Skipped: 20},
	}}}
	queue := &fakeQueue{}

	sweeper := appsync.NewSweeper(jobs, queue, time.Hour)
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(jobs.interrupted) != 1 || jobs.interrupted[0] != "job-1" {
		t.Errorf("expected job-1 interrupted, got %v", jobs.interrupted)
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected a resume dispatch, got %d", len(queue.enqueued))
	}
	d := queue.enqueued[0]
	if d.ResumeJobID != "job-1" || d.Type != job.TriggerResume || d.FeedID != "feed-1" {
		t.Errorf("unexpected resume descriptor: %+v", d)
	}
}

func TestSweeperFailsStalledJobWithoutProgress(t *testing.T) {
	t.Parallel()

	jobs := &fakeSweeperJobs{stale: []*job.Job{{
		ID:     "job-2",
		FeedID: "feed-1",
		Status: job.StatusProcessing,
	}}}
	queue := &fakeQueue{}

	sweeper := appsync.NewSweeper(jobs, queue, time.Hour)
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(jobs.failed) != 1 || jobs.failed[0] != "job-2" {
		t.Errorf("expected job-2 failed, got %v", jobs.failed)
	}
	if len(queue.enqueued) != 0 {
		t.Error("a job with no checkpoint has nothing to resume")
	}
}

func TestSweeperRedispatchesOrphanedInterruptedJob(t *testing.T) {
	t.Parallel()

	jobs := &fakeSweeperJobs{stale: []*job.Job{{
		ID:               "job-3",
		FeedID:           "feed-2",
		ShopID:           "shop-1",
		Status:           job.StatusInterrupted,
		LastProcessedRow: 40,
		Results:          job.Results{Processed: 40, Created: 40},
	}}}
	queue := &fakeQueue{}

	sweeper := appsync.NewSweeper(jobs, queue, time.Hour)
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	// Already interrupted: no second interrupt, just a fresh dispatch.
	if len(jobs.interrupted) != 0 {
		t.Errorf("unexpected interrupts: %v", jobs.interrupted)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0].ResumeJobID != "job-3" {
		t.Errorf("expected resume dispatch for job-3, got %+v", queue.enqueued)
	}
}
