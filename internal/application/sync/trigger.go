package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/domain/job"
)

type triggerFeedRepo interface {
	GetByID(ctx context.Context, id string) (*feed.Feed, error)
}

type triggerJobRepo interface {
	CreatePending(ctx context.Context, feedID, shopID string, trigger job.Trigger, isPreview bool) (*job.Job, error)
	Fail(ctx context.Context, id, message, code string) error
}

type triggerEnqueuer interface {
	Enqueue(ctx context.Context, d job.Descriptor) (string, error)
}

type TriggerSyncInput struct {
	FeedID          string
	Trigger         job.Trigger
	IsPreview       bool
	PreviewRowLimit int
}

type TriggerSync interface {
	Execute(ctx context.Context, in TriggerSyncInput) (*job.Job, error)
}

type triggerSync struct {
	feeds triggerFeedRepo
	jobs  triggerJobRepo
	queue triggerEnqueuer
}

func NewTriggerSync(feeds triggerFeedRepo, jobs triggerJobRepo, queue triggerEnqueuer) TriggerSync {
	return &triggerSync{feeds: feeds, jobs: jobs, queue: queue}
}

// Execute admits a new sync for the feed and enqueues its dispatch. At
// most one pending or processing job may exist per feed; a second
// trigger is rejected with ErrSyncInProgress rather than queued behind
// the first.
func (uc *triggerSync) Execute(ctx context.Context, in TriggerSyncInput) (*job.Job, error) {
	f, err := uc.feeds.GetByID(ctx, in.FeedID)
	if err != nil {
		if errors.Is(err, feed.ErrFeedNotFound) {
			return nil, ErrFeedNotFound
		}
		return nil, fmt.Errorf("load feed: %w", err)
	}

	trigger := in.Trigger
	if trigger == "" {
		trigger = job.TriggerManual
	}

	j, err := uc.jobs.CreatePending(ctx, f.ID, f.ShopID, trigger, in.IsPreview)
	if err != nil {
		if errors.Is(err, job.ErrJobConflict) {
			return nil, ErrSyncInProgress
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	_, err = uc.queue.Enqueue(ctx, job.Descriptor{
		FeedID:          f.ID,
		ShopID:          f.ShopID,
		Type:            trigger,
		IsPreview:       in.IsPreview,
		PreviewRowLimit: in.PreviewRowLimit,
	})
	if err != nil {
		// Don't leave a pending job no worker will ever pick up.
		if failErr := uc.jobs.Fail(ctx, j.ID, "enqueue dispatch: "+err.Error(), "queue"); failErr != nil {
			log.Printf("job %s: mark failed after enqueue error: %v", j.ID, failErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrEnqueueSyncJob, err)
	}
	return j, nil
}
