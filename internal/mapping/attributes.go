package mapping

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ecomsync/feedsync/internal/domain/catalog"
	"github.com/ecomsync/feedsync/internal/domain/feed"
)

// truthTokens are the accepted spellings of boolean true.
var truthTokens = map[string]bool{
	"true": true, "1": true, "yes": true, "on": true,
}

// dateLayouts are tried in order when parsing date/datetime attributes.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
	"01/02/2006",
}

// listDelimiters are tried in order; the first one present wins.
var listDelimiters = []string{"|", ";", ","}

// formatAttribute converts a transformed string value into the declared
// attribute type. A nil attribute with a non-empty warning means the
// value was dropped.
func formatAttribute(meta feed.AttributeMeta, field, value string) (*catalog.CustomAttribute, string) {
	out := func(v string) *catalog.CustomAttribute {
		return &catalog.CustomAttribute{
			Namespace: meta.Namespace,
			Key:       meta.Key,
			Type:      string(meta.Type),
			Value:     v,
		}
	}

	switch meta.Type {
	case feed.AttrString, "":
		return out(value), ""

	case feed.AttrInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Sprintf("%s: %q is not an integer", field, value)
		}
		return out(strconv.FormatInt(n, 10)), ""

	case feed.AttrDecimal:
		f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(value), ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Sprintf("%s: %q is not a decimal", field, value)
		}
		return out(strconv.FormatFloat(f, 'f', -1, 64)), ""

	case feed.AttrBoolean:
		return out(strconv.FormatBool(truthTokens[strings.ToLower(strings.TrimSpace(value))])), ""

	case feed.AttrJSON:
		if json.Valid([]byte(value)) {
			return out(value), ""
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Sprintf("%s: cannot encode value as JSON", field)
		}
		return out(string(encoded)), ""

	case feed.AttrDate, feed.AttrDateTime:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
				return out(ts.UTC().Format(time.RFC3339)), ""
			}
		}
		return nil, fmt.Sprintf("%s: %q is not a recognized date", field, value)

	case feed.AttrURL:
		u, err := url.Parse(strings.TrimSpace(value))
		if err != nil || !u.IsAbs() || u.Host == "" {
			return nil, fmt.Sprintf("%s: %q is not a valid URL", field, value)
		}
		return out(u.String()), ""

	case feed.AttrListStr, feed.AttrListInt:
		return formatListAttribute(meta, field, value, out)

	default:
		return out(value), ""
	}
}

func formatListAttribute(meta feed.AttributeMeta, field, value string, out func(string) *catalog.CustomAttribute) (*catalog.CustomAttribute, string) {
	items := []string{}

	var existing []any
	if json.Unmarshal([]byte(value), &existing) == nil {
		for _, it := range existing {
			items = append(items, strings.TrimSpace(fmt.Sprint(it)))
		}
	} else {
		sep := ","
		for _, d := range listDelimiters {
			if strings.Contains(value, d) {
				sep = d
				break
			}
		}
		items = splitList(value, sep)
	}

	if meta.Type == feed.AttrListInt {
		for _, it := range items {
			if _, err := strconv.ParseInt(it, 10, 64); err != nil {
				return nil, fmt.Sprintf("%s: list item %q is not an integer", field, it)
			}
		}
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Sprintf("%s: cannot encode list value", field)
	}
	return out(string(encoded)), ""
}
