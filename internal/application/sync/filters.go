package sync

import (
	"strconv"
	"strings"

	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/tabular"
)

// rowIncluded evaluates the feed's filters against one row. The first
// failing filter wins; a row passing every filter is included, and a
// feed without filters includes everything.
func rowIncluded(row tabular.Row, filters []feed.Filter) bool {
	for _, f := range filters {
		matched := filterMatches(row[f.Column], f)
		switch f.Mode {
		case feed.FilterExclude:
			if matched {
				return false
			}
		default: // include
			if !matched {
				return false
			}
		}
	}
	return true
}

func filterMatches(value string, f feed.Filter) bool {
	value = strings.TrimSpace(value)

	switch f.Operator {
	case feed.FilterEquals:
		return strings.EqualFold(value, f.Value)
	case feed.FilterNotEquals:
		return !strings.EqualFold(value, f.Value)
	case feed.FilterContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(f.Value))
	case feed.FilterNotContains:
		return !strings.Contains(strings.ToLower(value), strings.ToLower(f.Value))
	case feed.FilterGreaterThan:
		a, b, ok := parsePair(value, f.Value)
		return ok && a > b
	case feed.FilterLessThan:
		a, b, ok := parsePair(value, f.Value)
		return ok && a < b
	case feed.FilterIsEmpty:
		return value == ""
	case feed.FilterIsNotEmpty:
		return value != ""
	}
	return false
}

func parsePair(a, b string) (float64, float64, bool) {
	fa, errA := strconv.ParseFloat(strings.Replace(a, ",", ".", 1), 64)
	fb, errB := strconv.ParseFloat(strings.Replace(b, ",", ".", 1), 64)
	return fa, fb, errA == nil && errB == nil
}
