package mapping_test

import (
	"strings"
	"testing"

	"github.com/ecomsync/feedsync/internal/domain/catalog"
	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/mapping"
	"github.com/ecomsync/feedsync/internal/tabular"
)

func compile(t *testing.T, mappings []feed.FieldMapping, headers []string) []mapping.CompiledMapping {
	t.Helper()
	compiled, errs := mapping.Compile(mappings, headers)
	if len(errs) > 0 {
		t.Fatalf("compile failed: %v", errs)
	}
	return compiled
}

var skuRule = feed.MatchingRule{Column: "sku", Type: feed.MatchBySKU}

func TestTransformRowCoreFields(t *testing.T) {
	t.Parallel()

	compiled := compile(t, []feed.FieldMapping{
		{Source: "name", TargetField: "title", Kind: feed.KindCore},
		{Source: "price", TargetField: "price", Kind: feed.KindCore},
		{Source: "const:EUR", TargetField: "currency", Kind: feed.KindCore},
	}, []string{"name", "price", "sku"})

	res := mapping.TransformRow(tabular.Row{"name": "  Widget ", "price": "9.99", "sku": "W1"},
		compiled, skuRule, nil)

	if res.Core["title"] != "Widget" {
		t.Errorf("expected trimmed title, got %q", res.Core["title"])
	}
	if res.Core["currency"] != "EUR" {
		t.Errorf("expected constant value, got %q", res.Core["currency"])
	}
	if res.Identifier.Type != catalog.IdentifierSKU || res.Identifier.Value != "W1" {
		t.Errorf("unexpected identifier: %+v", res.Identifier)
	}
}

func TestTransformRowTagsSplit(t *testing.T) {
	t.Parallel()

	compiled := compile(t, []feed.FieldMapping{
		{Source: "tags", TargetField: "tags", Kind: feed.KindCore},
	}, []string{"tags", "sku"})

	res := mapping.TransformRow(tabular.Row{"tags": "summer, sale , ,new", "sku": "W1"}, compiled, skuRule, nil)
	tags, ok := res.Core["tags"].([]string)
	if !ok || len(tags) != 3 {
		t.Fatalf("expected 3 tags, got %#v", res.Core["tags"])
	}
	if tags[0] != "summer" || tags[1] != "sale" || tags[2] != "new" {
		t.Errorf("unexpected tags: %v", tags)
	}
}

func TestTransformRowStatusEnum(t *testing.T) {
	t.Parallel()

	compiled := compile(t, []feed.FieldMapping{
		{Source: "state", TargetField: "status", Kind: feed.KindCore},
	}, []string{"state", "sku"})

	res := mapping.TransformRow(tabular.Row{"state": "Active", "sku": "W1"}, compiled, skuRule, nil)
	if res.Core["status"] != "active" {
		t.Errorf("expected normalized status, got %q", res.Core["status"])
	}

	res = mapping.TransformRow(tabular.Row{"state": "bogus", "sku": "W1"}, compiled, skuRule, nil)
	if _, present := res.Core["status"]; present {
		t.Error("invalid enum value must be dropped silently")
	}
}

func TestTransformRowDefaultsAndIgnoreIfEmpty(t *testing.T) {
	t.Parallel()

	compiled := compile(t, []feed.FieldMapping{
		{Source: "vendor", TargetField: "vendor", Kind: feed.KindCore,
			Transform: feed.Transform{DefaultValue: "ACME"}},
		{Source: "color", TargetField: "color", Kind: feed.KindCore,
			Transform: feed.Transform{IgnoreIfEmpty: true}},
	}, []string{"vendor", "color", "sku"})

	res := mapping.TransformRow(tabular.Row{"vendor": " ", "color": "", "sku": "W1"}, compiled, skuRule, nil)
	if res.Core["vendor"] != "ACME" {
		t.Errorf("expected default value, got %q", res.Core["vendor"])
	}
	if _, present := res.Core["color"]; present {
		t.Error("empty ignored field must not be assigned")
	}
}

func TestTransformRowCaseFolding(t *testing.T) {
	t.Parallel()

	compiled := compile(t, []feed.FieldMapping{
		{Source: "code", TargetField: "barcode", Kind: feed.KindCore,
			Transform: feed.Transform{Case: feed.CaseUpper}},
		{Source: "name", TargetField: "title", Kind: feed.KindCore,
			Transform: feed.Transform{Case: feed.CaseTitle}},
	}, []string{"code", "name", "sku"})

	res := mapping.TransformRow(tabular.Row{"code": "abc123", "name": "blue WIDGET deluxe", "sku": "W1"},
		compiled, skuRule, nil)
	if res.Core["barcode"] != "ABC123" {
		t.Errorf("expected upper case, got %q", res.Core["barcode"])
	}
	if res.Core["title"] != "Blue Widget Deluxe" {
		t.Errorf("expected title case, got %q", res.Core["title"])
	}
}

func TestTransformRowEmptyIdentifier(t *testing.T) {
	t.Parallel()

	compiled := compile(t, []feed.FieldMapping{
		{Source: "name", TargetField: "title", Kind: feed.KindCore},
	}, []string{"name", "sku"})

	res := mapping.TransformRow(tabular.Row{"name": "Widget", "sku": "   "}, compiled, skuRule, nil)
	if !res.Identifier.IsZero() {
		t.Errorf("whitespace identifier must be nullified, got %q", res.Identifier.Value)
	}
}

func TestTransformRowValueMappingOverride(t *testing.T) {
	t.Parallel()

	compiled := compile(t, []feed.FieldMapping{
		{Source: "state", TargetField: "status", Kind: feed.KindCore},
	}, []string{"state", "sku"})

	rules := []feed.ValueMappingRule{
		{SourceColumn: "state", SourceValue: "EOL", TargetField: "status", TargetValue: "archived"},
	}

	res := mapping.TransformRow(tabular.Row{"state": "EOL", "sku": "W1"}, compiled, skuRule, rules)
	if res.Core["status"] != "archived" {
		t.Errorf("expected value-mapped status, got %q", res.Core["status"])
	}

	res = mapping.TransformRow(tabular.Row{"state": "active", "sku": "W1"}, compiled, skuRule, rules)
	if res.Core["status"] != "active" {
		t.Errorf("non-matching rule must not override, got %q", res.Core["status"])
	}
}

func TestTransformRowCustomAttributes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		attrType  feed.AttributeType
		value     string
		wantValue string
		wantDrop  bool
		wantWarn  bool
	}{
		{name: "integer", attrType: feed.AttrInteger, value: " 42 ", wantValue: "42"},
		{name: "bad integer", attrType: feed.AttrInteger, value: "4x", wantDrop: true, wantWarn: true},
		{name: "decimal comma", attrType: feed.AttrDecimal, value: "19,95", wantValue: "19.95"},
		{name: "boolean yes", attrType: feed.AttrBoolean, value: "Yes", wantValue: "true"},
		{name: "boolean other", attrType: feed.AttrBoolean, value: "nope", wantValue: "false"},
		{name: "json valid", attrType: feed.AttrJSON, value: `{"a":1}`, wantValue: `{"a":1}`},
		{name: "json reencoded", attrType: feed.AttrJSON, value: `plain text`, wantValue: `"plain text"`},
		{name: "date", attrType: feed.AttrDate, value: "2024-06-01", wantValue: "2024-06-01T00:00:00Z"},
		{name: "bad date", attrType: feed.AttrDate, value: "junk", wantDrop: true, wantWarn: true},
		{name: "url", attrType: feed.AttrURL, value: "https://example.com/a.jpg", wantValue: "https://example.com/a.jpg"},
		{name: "bad url", attrType: feed.AttrURL, value: "not a url", wantDrop: true, wantWarn: true},
		{name: "list json", attrType: feed.AttrListStr, value: `["a","b"]`, wantValue: `["a","b"]`},
		{name: "list pipes", attrType: feed.AttrListStr, value: "a|b|c", wantValue: `["a","b","c"]`},
		{name: "list semicolons", attrType: feed.AttrListStr, value: "a;b", wantValue: `["a","b"]`},
		{name: "list commas", attrType: feed.AttrListStr, value: "a,b", wantValue: `["a","b"]`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			compiled := compile(t, []feed.FieldMapping{
				{Source: "val", TargetField: "custom.field", Kind: feed.KindCustomAttribute,
					Attribute: &feed.AttributeMeta{Namespace: "custom", Key: "field", Type: c.attrType}},
			}, []string{"val", "sku"})

			res := mapping.TransformRow(tabular.Row{"val": c.value, "sku": "W1"}, compiled, skuRule, nil)

			if c.wantDrop {
				if len(res.Attributes) != 0 {
					t.Fatalf("expected dropped attribute, got %+v", res.Attributes)
				}
				if c.wantWarn && len(res.Warnings) == 0 {
					t.Error("expected a warning for the dropped value")
				}
				return
			}

			if len(res.Attributes) != 1 {
				t.Fatalf("expected one attribute, got %+v", res.Attributes)
			}
			if res.Attributes[0].Value != c.wantValue {
				t.Errorf("expected %q, got %q", c.wantValue, res.Attributes[0].Value)
			}
		})
	}
}

func TestTransformRowDoesNotMutateRow(t *testing.T) {
	t.Parallel()

	compiled := compile(t, []feed.FieldMapping{
		{Source: "name", TargetField: "title", Kind: feed.KindCore},
	}, []string{"name", "sku"})

	row := tabular.Row{"name": "  Widget  ", "sku": "W1"}
	mapping.TransformRow(row, compiled, skuRule, nil)
	if row["name"] != "  Widget  " {
		t.Error("TransformRow must not mutate its input row")
	}
}

func TestCompileValidation(t *testing.T) {
	t.Parallel()

	headers := []string{"name", "sku"}

	cases := []struct {
		name     string
		mappings []feed.FieldMapping
		wantErr  string
	}{
		{
			name:    "no mappings",
			wantErr: "at least one",
		},
		{
			name: "missing source column",
			mappings: []feed.FieldMapping{
				{Source: "price", TargetField: "price", Kind: feed.KindCore},
			},
			wantErr: "not found in file headers",
		},
		{
			name: "constant source needs no column",
			mappings: []feed.FieldMapping{
				{Source: "const:EUR", TargetField: "currency", Kind: feed.KindCore},
			},
		},
		{
			name: "missing target field",
			mappings: []feed.FieldMapping{
				{Source: "name", Kind: feed.KindCore},
			},
			wantErr: "target field is required",
		},
		{
			name: "missing kind",
			mappings: []feed.FieldMapping{
				{Source: "name", TargetField: "title"},
			},
			wantErr: "field kind is required",
		},
		{
			name: "attribute without meta",
			mappings: []feed.FieldMapping{
				{Source: "name", TargetField: "custom.x", Kind: feed.KindCustomAttribute},
			},
			wantErr: "namespace, key and type",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, errs := mapping.Compile(c.mappings, headers)
			if c.wantErr == "" {
				if len(errs) > 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), c.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error containing %q, got %v", c.wantErr, errs)
			}
		})
	}
}
