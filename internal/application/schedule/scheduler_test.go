package schedule

import (
	"context"
	"testing"

	appsync "github.com/ecomsync/feedsync/internal/application/sync"
	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/domain/job"
)

type fakeScheduledFeeds struct {
	feeds []*feed.Feed
}

func (f *fakeScheduledFeeds) ListScheduled(ctx context.Context) ([]*feed.Feed, error) {
	return f.feeds, nil
}

type fakeTrigger struct {
	triggered []string
}

func (f *fakeTrigger) Execute(ctx context.Context, in appsync.TriggerSyncInput) (*job.Job, error) {
	f.triggered = append(f.triggered, in.FeedID)
	return &job.Job{ID: "job-1", FeedID: in.FeedID, Status: job.StatusPending}, nil
}

func scheduledFeed(id, dailyAt string) *feed.Feed {
	return &feed.Feed{
		ID:       id,
		ShopID:   "shop-1",
		Schedule: feed.Schedule{Enabled: true, DailyAt: dailyAt, Timezone: "UTC"},
	}
}

func TestReconcileAddsAndRemovesEntries(t *testing.T) {
	t.Parallel()

	feeds := &fakeScheduledFeeds{feeds: []*feed.Feed{
		scheduledFeed("feed-1", "06:00"),
		scheduledFeed("feed-2", "07:30"),
	}}
	s := NewScheduler(feeds, &fakeTrigger{})

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(s.entries) != 2 {
		t.Fatalf("expected 2 cron entries, got %d", len(s.entries))
	}

	// feed-2's schedule is disabled; its entry must go away.
	feeds.feeds = feeds.feeds[:1]
	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if len(s.entries) != 1 {
		t.Fatalf("expected 1 cron entry, got %d", len(s.entries))
	}
	if _, ok := s.entries["feed-1"]; !ok {
		t.Error("feed-1 entry missing after reconcile")
	}
}

func TestReconcileReregistersChangedTime(t *testing.T) {
	t.Parallel()

	feeds := &fakeScheduledFeeds{feeds: []*feed.Feed{scheduledFeed("feed-1", "06:00")}}
	s := NewScheduler(feeds, &fakeTrigger{})

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	before := s.entries["feed-1"]

	feeds.feeds[0].Schedule.DailyAt = "09:45"
	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	after := s.entries["feed-1"]

	if before.spec == after.spec {
		t.Error("changed time must produce a new cron spec")
	}
	if before.id == after.id {
		t.Error("changed time must re-register the cron entry")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	feeds := &fakeScheduledFeeds{feeds: []*feed.Feed{scheduledFeed("feed-1", "06:00")}}
	s := NewScheduler(feeds, &fakeTrigger{})

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	first := s.entries["feed-1"]

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if s.entries["feed-1"].id != first.id {
		t.Error("unchanged schedule must keep its cron entry")
	}
}

func TestReconcileSkipsInvalidSchedule(t *testing.T) {
	t.Parallel()

	feeds := &fakeScheduledFeeds{feeds: []*feed.Feed{
		scheduledFeed("feed-1", "26:00"),
		scheduledFeed("feed-2", "07:00"),
	}}
	s := NewScheduler(feeds, &fakeTrigger{})

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(s.entries) != 1 {
		t.Fatalf("invalid schedule must be skipped, got %d entries", len(s.entries))
	}
}

func TestCronSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		schedule feed.Schedule
		want     string
		wantErr  bool
	}{
		{feed.Schedule{DailyAt: "06:30"}, "30 6 * * *", false},
		{feed.Schedule{DailyAt: "23:05", Timezone: "Europe/Berlin"}, "CRON_TZ=Europe/Berlin 5 23 * * *", false},
		{feed.Schedule{DailyAt: "24:00"}, "", true},
		{feed.Schedule{DailyAt: "aa:bb"}, "", true},
		{feed.Schedule{DailyAt: "06:30", Timezone: "Nowhere/Here"}, "", true},
	}

	for _, tt := range tests {
		got, err := cronSpec(tt.schedule)
		if tt.wantErr {
			if err == nil {
				t.Errorf("cronSpec(%+v): expected error", tt.schedule)
			}
			continue
		}
		if err != nil {
			t.Errorf("cronSpec(%+v): %v", tt.schedule, err)
			continue
		}
		if got != tt.want {
			t.Errorf("cronSpec(%+v) = %q, want %q", tt.schedule, got, tt.want)
		}
	}
}
