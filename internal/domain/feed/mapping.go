package feed

import "strings"

// ConstantPrefix marks a mapping source as a literal value rather than a
// column name, e.g. "const:EUR".
const ConstantPrefix = "const:"

// TargetKind routes a mapped value into the catalog record shape.
type TargetKind string

const (
	KindCore            TargetKind = "core"
	KindVariant         TargetKind = "variant"
	KindCustomAttribute TargetKind = "customAttribute"
)

// CaseFold is the optional case transform applied after trimming.
type CaseFold string

const (
	CaseNone  CaseFold = ""
	CaseLower CaseFold = "lower"
	CaseUpper CaseFold = "upper"
	CaseTitle CaseFold = "title"
)

// Transform is the per-field string pipeline: trim (unless disabled),
// case folding, default substitution, then the ignore-if-empty gate.
type Transform struct {
	DisableTrim   bool
	Case          CaseFold
	DefaultValue  string
	IgnoreIfEmpty bool
}

// AttributeType is the declared value type of a custom-attribute mapping.
type AttributeType string

const (
	AttrString   AttributeType = "string"
	AttrInteger  AttributeType = "integer"
	AttrDecimal  AttributeType = "decimal"
	AttrBoolean  AttributeType = "boolean"
	AttrJSON     AttributeType = "json"
	AttrDate     AttributeType = "date"
	AttrDateTime AttributeType = "datetime"
	AttrURL      AttributeType = "url"
	AttrListStr  AttributeType = "list.string"
	AttrListInt  AttributeType = "list.integer"
)

// AttributeMeta identifies a custom attribute on the target record.
type AttributeMeta struct {
	Namespace string
	Key       string
	Type      AttributeType
}

// FieldMapping maps one source column (or constant) onto one target
// field of the catalog record.
type FieldMapping struct {
	Source      string
	TargetField string
	Kind        TargetKind
	Transform   Transform
	Attribute   *AttributeMeta
}

// IsConstant reports whether the mapping source is a literal value.
func (m FieldMapping) IsConstant() bool {
	return strings.HasPrefix(m.Source, ConstantPrefix)
}

// ConstantValue returns the literal for a constant source mapping.
func (m FieldMapping) ConstantValue() string {
	return strings.TrimPrefix(m.Source, ConstantPrefix)
}

// ValueMappingRule substitutes a computed field value when the source
// column carries a configured literal. Rules form a lookup table keyed
// by (SourceColumn, SourceValue).
type ValueMappingRule struct {
	SourceField  string
	SourceColumn string
	SourceValue  string
	TargetField  string
	TargetValue  string
	Attribute    *AttributeMeta
}
