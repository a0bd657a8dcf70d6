package mapping

import (
	"strings"

	"github.com/ecomsync/feedsync/internal/domain/catalog"
	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/tabular"
)

// Result is the target-record shape produced from one CSV row.
type Result struct {
	Core       map[string]any
	Attributes []catalog.CustomAttribute
	Identifier catalog.Identifier
	Warnings   []string
}

// TransformRow maps one parsed row through the compiled mappings,
// extracts the matching identifier, and applies value-mapping overrides
// as a post-pass. The function is pure: it never mutates the row.
func TransformRow(row tabular.Row, compiled []CompiledMapping, rule feed.MatchingRule, valueRules []feed.ValueMappingRule) Result {
	res := Result{Core: make(map[string]any)}

	for _, cm := range compiled {
		raw := cm.literal
		if !cm.constant {
			raw = row[cm.Source]
		}

		value, keep := applyTransform(raw, cm.Transform)
		if !keep {
			continue
		}

		switch cm.variant {
		case variantCoreList:
			res.Core[cm.TargetField] = splitList(value, ",")
		case variantCoreEnum:
			if cm.enumSet[strings.ToLower(value)] {
				res.Core[cm.TargetField] = strings.ToLower(value)
			}
		case variantCoreScalar:
			res.Core[cm.TargetField] = value
		case variantAttribute:
			attr, warn := formatAttribute(*cm.Attribute, cm.TargetField, value)
			if warn != "" {
				res.Warnings = append(res.Warnings, warn)
			}
			if attr != nil {
				res.Attributes = append(res.Attributes, *attr)
			}
		}
	}

	res.Identifier = extractIdentifier(row, rule)
	applyValueRules(row, valueRules, &res)
	return res
}

// applyTransform runs the string pipeline: trim unless disabled, case
// fold, default substitution, then the ignore-if-empty gate. The second
// return is false when the field must be skipped entirely.
func applyTransform(value string, t feed.Transform) (string, bool) {
	if !t.DisableTrim {
		value = strings.TrimSpace(value)
	}

	switch t.Case {
	case feed.CaseLower:
		value = strings.ToLower(value)
	case feed.CaseUpper:
		value = strings.ToUpper(value)
	case feed.CaseTitle:
		value = titleCase(value)
	}

	if value == "" && t.DefaultValue != "" {
		value = t.DefaultValue
	}
	if value == "" && t.IgnoreIfEmpty {
		return "", false
	}
	return value, true
}

func extractIdentifier(row tabular.Row, rule feed.MatchingRule) catalog.Identifier {
	idType := catalog.IdentifierSKU
	if rule.Type == feed.MatchByHandle {
		idType = catalog.IdentifierHandle
	}
	return catalog.Identifier{
		Type:  idType,
		Value: strings.TrimSpace(row[rule.Column]),
	}
}

// applyValueRules overwrites or supplements computed fields when the
// configured source column carries the configured literal value.
func applyValueRules(row tabular.Row, rules []feed.ValueMappingRule, res *Result) {
	for _, r := range rules {
		if r.SourceColumn == "" || strings.TrimSpace(row[r.SourceColumn]) != r.SourceValue {
			continue
		}

		if r.Attribute != nil {
			attr, warn := formatAttribute(*r.Attribute, r.TargetField, r.TargetValue)
			if warn != "" {
				res.Warnings = append(res.Warnings, warn)
			}
			if attr != nil {
				replaced := false
				for i := range res.Attributes {
					if res.Attributes[i].Namespace == attr.Namespace && res.Attributes[i].Key == attr.Key {
						res.Attributes[i] = *attr
						replaced = true
						break
					}
				}
				if !replaced {
					res.Attributes = append(res.Attributes, *attr)
				}
			}
			continue
		}

		if coreListFields[r.TargetField] {
			res.Core[r.TargetField] = splitList(r.TargetValue, ",")
		} else {
			res.Core[r.TargetField] = r.TargetValue
		}
	}
}

func splitList(value, sep string) []string {
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
