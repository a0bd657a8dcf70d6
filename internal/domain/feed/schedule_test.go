package feed_test

import (
	"testing"
	"time"

	"github.com/ecomsync/feedsync/internal/domain/feed"
)

func TestNextDailyRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule feed.Schedule
		want     time.Time
	}{
		{
			"later today",
			feed.Schedule{DailyAt: "14:00"},
			time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		},
		{
			"already passed rolls to tomorrow",
			feed.Schedule{DailyAt: "06:15"},
			time.Date(2026, 3, 11, 6, 15, 0, 0, time.UTC),
		},
		{
			"exact now rolls to tomorrow",
			feed.Schedule{DailyAt: "08:30"},
			time.Date(2026, 3, 11, 8, 30, 0, 0, time.UTC),
		},
		{
			"timezone applied",
			feed.Schedule{DailyAt: "02:00", Timezone: "America/New_York"},
			time.Date(2026, 3, 11, 2, 0, 0, 0, mustLoad(t, "America/New_York")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := feed.NextDailyRun(now, tt.schedule)
			if err != nil {
				t.Fatalf("NextDailyRun failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if !got.After(now) {
				t.Error("next run must be strictly after now")
			}
		})
	}
}

func TestNextDailyRunRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	for _, s := range []feed.Schedule{
		{DailyAt: "25:00"},
		{DailyAt: "12:75"},
		{DailyAt: "noon"},
		{DailyAt: "09:00", Timezone: "Mars/Olympus"},
	} {
		if _, err := feed.NextDailyRun(time.Now(), s); err == nil {
			t.Errorf("expected error for %+v", s)
		}
	}
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}
