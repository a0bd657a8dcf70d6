package feed

import (
	"fmt"
	"time"
)

// NextDailyRun computes the next wall-clock occurrence of the schedule's
// HH:MM in its timezone, strictly after now. Around a DST jump the
// returned instant follows the wall clock, so a run can shift by the
// offset change; daily feeds tolerate that.
func NextDailyRun(now time.Time, s Schedule) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s.DailyAt, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule time %q: %w", s.DailyAt, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid schedule time %q", s.DailyAt)
	}

	loc := time.UTC
	if s.Timezone != "" {
		l, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid schedule timezone %q: %w", s.Timezone, err)
		}
		loc = l
	}

	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}
