// Package mapping turns parsed CSV rows into catalog record shapes.
//
// Mappings are compiled once against the file's headers before the row
// loop starts; per-row transformation then dispatches on a closed set of
// target variants instead of switching on field-name strings.
package mapping

import (
	"fmt"

	"github.com/ecomsync/feedsync/internal/domain/feed"
)

// targetVariant is the closed routing decision resolved at compile time.
type targetVariant int

const (
	variantCoreScalar targetVariant = iota
	variantCoreList
	variantCoreEnum
	variantAttribute
)

// coreListFields are core fields whose value is a delimited list.
var coreListFields = map[string]bool{
	"tags":   true,
	"images": true,
}

// coreEnumFields are core fields restricted to a fixed value set.
// Invalid values are dropped silently.
var coreEnumFields = map[string]map[string]bool{
	"status": {"active": true, "draft": true, "archived": true},
}

// CompiledMapping is one field mapping resolved against the parsed
// headers: constant detection done, variant chosen, attribute meta
// verified.
type CompiledMapping struct {
	feed.FieldMapping

	variant  targetVariant
	constant bool
	literal  string
	enumSet  map[string]bool
}

// Compile validates the configured mappings against the file headers and
// resolves each into its target variant. It returns every validation
// error found, not just the first.
func Compile(mappings []feed.FieldMapping, headers []string) ([]CompiledMapping, []error) {
	var errs []error
	if len(mappings) == 0 {
		return nil, []error{fmt.Errorf("at least one field mapping is required")}
	}

	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[h] = true
	}

	compiled := make([]CompiledMapping, 0, len(mappings))
	for i, m := range mappings {
		cm := CompiledMapping{FieldMapping: m}

		if m.IsConstant() {
			cm.constant = true
			cm.literal = m.ConstantValue()
		} else if !headerSet[m.Source] {
			errs = append(errs, fmt.Errorf("mapping %d: source column %q not found in file headers", i+1, m.Source))
		}

		if m.TargetField == "" {
			errs = append(errs, fmt.Errorf("mapping %d: target field is required", i+1))
		}

		switch m.Kind {
		case feed.KindCore, feed.KindVariant:
			switch {
			case coreListFields[m.TargetField]:
				cm.variant = variantCoreList
			case coreEnumFields[m.TargetField] != nil:
				cm.variant = variantCoreEnum
				cm.enumSet = coreEnumFields[m.TargetField]
			default:
				cm.variant = variantCoreScalar
			}
		case feed.KindCustomAttribute:
			cm.variant = variantAttribute
			if m.Attribute == nil || m.Attribute.Namespace == "" || m.Attribute.Key == "" || m.Attribute.Type == "" {
				errs = append(errs, fmt.Errorf("mapping %d: custom-attribute mappings need namespace, key and type", i+1))
			}
		case "":
			errs = append(errs, fmt.Errorf("mapping %d: field kind is required", i+1))
		default:
			errs = append(errs, fmt.Errorf("mapping %d: unknown field kind %q", i+1, m.Kind))
		}

		compiled = append(compiled, cm)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return compiled, nil
}
