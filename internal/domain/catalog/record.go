package catalog

// IdentifierType is the catalog key kind a feed matches rows on: the
// unique product code or the unique slug.
type IdentifierType string

const (
	IdentifierSKU    IdentifierType = "sku"
	IdentifierHandle IdentifierType = "handle"
)

// Identifier is the matching key extracted from one CSV row.
type Identifier struct {
	Type  IdentifierType
	Value string
}

// IsZero reports whether no usable identifier value was extracted.
func (id Identifier) IsZero() bool {
	return id.Value == ""
}

// CustomAttribute is a typed, namespaced extension field on a record.
type CustomAttribute struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// Media is one attached media object on a record.
type Media struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Record is the remote catalog record shape the pipeline reads and
// writes. Core holds the scalar/list core fields keyed by field name;
// Attributes holds the custom-attribute extension fields.
type Record struct {
	ID         string            `json:"id"`
	Core       map[string]any    `json:"core"`
	Attributes []CustomAttribute `json:"attributes"`
	Media      []Media           `json:"media"`
}

// CoreValue returns the named core field or nil when absent.
func (r *Record) CoreValue(field string) any {
	if r == nil || r.Core == nil {
		return nil
	}
	return r.Core[field]
}

// Attribute returns the attribute with the given namespace and key, or
// nil when the record does not carry it.
func (r *Record) Attribute(namespace, key string) *CustomAttribute {
	if r == nil {
		return nil
	}
	for i := range r.Attributes {
		if r.Attributes[i].Namespace == namespace && r.Attributes[i].Key == key {
			return &r.Attributes[i]
		}
	}
	return nil
}
