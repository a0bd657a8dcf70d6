package sync

import "errors"

var (
	ErrFeedNotFound   = errors.New("feed not found")
	ErrSyncInProgress = errors.New("a sync is already running for this feed")
	ErrEnqueueSyncJob = errors.New("failed to enqueue sync job")
	ErrJobNotFound    = errors.New("job not found")
	ErrCancelSyncJob  = errors.New("job cannot be cancelled")
)
