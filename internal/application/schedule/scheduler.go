// Package schedule keeps a cron table in step with the feeds whose
// schedules are enabled. Reconciliation runs periodically so edits to a
// feed's schedule take effect without a restart.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"

	appsync "github.com/ecomsync/feedsync/internal/application/sync"
	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/domain/job"
)

type scheduledFeedRepo interface {
	ListScheduled(ctx context.Context) ([]*feed.Feed, error)
}

type entry struct {
	id   cron.EntryID
	spec string
}

// Scheduler owns the cron table. Each enabled feed maps to exactly one
// cron entry firing at its daily time in its timezone.
type Scheduler struct {
	feeds   scheduledFeedRepo
	trigger appsync.TriggerSync
	cron    *cron.Cron

	mu      gosync.Mutex
	entries map[string]entry
}

func NewScheduler(feeds scheduledFeedRepo, trigger appsync.TriggerSync) *Scheduler {
	return &Scheduler{
		feeds:   feeds,
		trigger: trigger,
		cron:    cron.New(),
		entries: make(map[string]entry),
	}
}

// Start launches the cron loop and a reconciliation ticker.
func (s *Scheduler) Start(ctx context.Context, reconcileEvery time.Duration) {
	if reconcileEvery <= 0 {
		reconcileEvery = time.Minute
	}

	if err := s.Reconcile(ctx); err != nil {
		log.Printf("initial schedule reconcile: %v", err)
	}
	s.cron.Start()

	go func() {
		ticker := time.NewTicker(reconcileEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.cron.Stop()
				return
			case <-ticker.C:
				if err := s.Reconcile(ctx); err != nil {
					log.Printf("schedule reconcile: %v", err)
				}
			}
		}
	}()
}

// Reconcile diffs the cron table against the currently enabled
// schedules: new feeds are added, changed times are re-registered, and
// disabled or deleted feeds are removed. Idempotent.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	feeds, err := s.feeds.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled feeds: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		spec, err := cronSpec(f.Schedule)
		if err != nil {
			log.Printf("feed %s: invalid schedule: %v", f.ID, err)
			continue
		}
		seen[f.ID] = true

		if current, ok := s.entries[f.ID]; ok {
			if current.spec == spec {
				continue
			}
			s.cron.Remove(current.id)
		}

		id, err := s.cron.AddFunc(spec, s.runFeed(f.ID))
		if err != nil {
			log.Printf("feed %s: register schedule %q: %v", f.ID, spec, err)
			continue
		}
		s.entries[f.ID] = entry{id: id, spec: spec}
	}

	for feedID, current := range s.entries {
		if !seen[feedID] {
			s.cron.Remove(current.id)
			delete(s.entries, feedID)
		}
	}
	return nil
}

func (s *Scheduler) runFeed(feedID string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err := s.trigger.Execute(ctx, appsync.TriggerSyncInput{
			FeedID:  feedID,
			Trigger: job.TriggerScheduled,
		})
		if errors.Is(err, appsync.ErrSyncInProgress) {
			// The previous run is still going; this tick is skipped, not
			// queued behind it.
			log.Printf("feed %s: scheduled sync skipped, previous run still active", feedID)
			return
		}
		if err != nil {
			log.Printf("feed %s: scheduled sync: %v", feedID, err)
		}
	}
}

// cronSpec converts a daily HH:MM schedule into a cron expression
// evaluated in the feed's timezone.
func cronSpec(s feed.Schedule) (string, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s.DailyAt, "%d:%d", &hour, &minute); err != nil {
		return "", fmt.Errorf("invalid daily time %q: %w", s.DailyAt, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid daily time %q", s.DailyAt)
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return "", fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
		return fmt.Sprintf("CRON_TZ=%s %d %d * * *", s.Timezone, minute, hour), nil
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
