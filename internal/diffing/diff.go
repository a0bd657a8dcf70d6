// Package diffing compares an existing catalog record against a freshly
// mapped one and reports the changed fields. All comparisons go through
// value normalization so representation differences (whitespace, casing,
// element order, empty variants) do not count as changes.
package diffing

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/ecomsync/feedsync/internal/domain/catalog"
	"github.com/ecomsync/feedsync/internal/domain/job"
	"github.com/ecomsync/feedsync/internal/mapping"
)

// Compare returns the ordered list of fields whose mapped value differs
// from the existing record. Core fields come first in mapped-key order,
// then custom attributes. Neither input is mutated.
func Compare(existing *catalog.Record, mapped mapping.Result) []job.FieldChange {
	var changes []job.FieldChange

	coreKeys := make([]string, 0, len(mapped.Core))
	for k := range mapped.Core {
		coreKeys = append(coreKeys, k)
	}
	sort.Strings(coreKeys)

	for _, field := range coreKeys {
		newValue := mapped.Core[field]
		oldValue := existing.CoreValue(field)
		if !valuesEqual(oldValue, newValue) {
			changes = append(changes, job.FieldChange{
				Field:    field,
				OldValue: oldValue,
				NewValue: newValue,
				Kind:     "core",
			})
		}
	}

	for _, attr := range mapped.Attributes {
		current := existing.Attribute(attr.Namespace, attr.Key)
		var oldValue any
		if current != nil {
			oldValue = current.Value
		}
		if !valuesEqual(oldValue, attr.Value) {
			changes = append(changes, job.FieldChange{
				Field:    attr.Namespace + "." + attr.Key,
				OldValue: oldValue,
				NewValue: attr.Value,
				Kind:     "customAttribute",
			})
		}
	}

	return changes
}

// HasChanges reports whether Compare would return anything.
func HasChanges(existing *catalog.Record, mapped mapping.Result) bool {
	return len(Compare(existing, mapped)) > 0
}

// BuildUpdatePayload extracts only the changed core fields for a
// minimal write.
func BuildUpdatePayload(existing *catalog.Record, mapped mapping.Result) map[string]any {
	payload := make(map[string]any)
	for _, ch := range Compare(existing, mapped) {
		if ch.Kind == "core" {
			payload[ch.Field] = mapped.Core[ch.Field]
		}
	}
	return payload
}

// valuesEqual compares two values after normalization: empty variants
// (nil, "", empty list) are mutually equal; lists compare
// order-independently; maps compare by deep equality; scalars compare
// case-insensitively after whitespace collapse.
func valuesEqual(a, b any) bool {
	na, nb := normalize(a), normalize(b)
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}

	la, aIsList := na.([]string)
	lb, bIsList := nb.([]string)
	if aIsList || bIsList {
		if !aIsList || !bIsList {
			return false
		}
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if la[i] != lb[i] {
				return false
			}
		}
		return true
	}

	if reflect.TypeOf(na).Kind() == reflect.Map || reflect.TypeOf(nb).Kind() == reflect.Map {
		return reflect.DeepEqual(na, nb)
	}

	return normalizeScalar(na) == normalizeScalar(nb)
}

// normalize maps empty variants to nil and list variants to a sorted,
// element-normalized []string.
func normalize(v any) any {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return val
	case []string:
		return normalizeList(len(val), func(i int) any { return val[i] })
	case []any:
		return normalizeList(len(val), func(i int) any { return val[i] })
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return normalizeList(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	}
	return v
}

func normalizeList(n int, at func(int) any) any {
	if n == 0 {
		return nil
	}
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, strings.ToLower(strings.TrimSpace(fmt.Sprint(at(i)))))
	}
	sort.Strings(items)
	return items
}

var spaceCollapse = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func normalizeScalar(v any) string {
	s := spaceCollapse.Replace(fmt.Sprint(v))
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
