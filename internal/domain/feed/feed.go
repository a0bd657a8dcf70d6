package feed

import "time"

// Protocol identifies the file-server variant a feed is fetched from.
type Protocol string

const (
	ProtocolSFTP  Protocol = "sftp"
	ProtocolFTP   Protocol = "ftp"
	ProtocolLocal Protocol = "local"
)

// Connection describes where the source file lives. Secrets are not part
// of the feed configuration; CredentialRef is resolved through the
// credential store at download time.
type Connection struct {
	Protocol      Protocol
	Host          string
	Port          int
	Username      string
	CredentialRef string
	Directory     string
	Filename      string
}

// ParseOptions control how the downloaded file is read.
type ParseOptions struct {
	Delimiter string
	Encoding  string
	HasHeader bool
}

// MatchingType selects which catalog identifier a feed matches rows on.
type MatchingType string

const (
	MatchBySKU    MatchingType = "sku"
	MatchByHandle MatchingType = "handle"
)

// MatchingRule names the CSV column whose value identifies the catalog
// record a row belongs to.
type MatchingRule struct {
	Column string
	Type   MatchingType
}

// Schedule holds the recurring-run configuration for a feed.
type Schedule struct {
	Enabled  bool
	DailyAt  string // "HH:MM"
	Timezone string
}

// Options are the behavioral toggles of a feed run.
type Options struct {
	SkipUnchangedFile bool
	SkipUnchangedRows bool
	BatchSize         int
	CreateNew         bool
	UpdateExisting    bool
}

// Feed is the immutable-during-run sync configuration. It is owned by
// configuration storage and read-only to the pipeline.
type Feed struct {
	ID            string
	ShopID        string
	Name          string
	Connection    Connection
	Parse         ParseOptions
	Matching      MatchingRule
	Mappings      []FieldMapping
	Filters       []Filter
	ValueMappings []ValueMappingRule
	Schedule      Schedule
	Options       Options

	LastChecksum string
	LastSyncAt   *time.Time
	NextRunAt    *time.Time
}

// FilterOperator is the comparison applied by a row filter.
type FilterOperator string

const (
	FilterEquals      FilterOperator = "equals"
	FilterNotEquals   FilterOperator = "not_equals"
	FilterContains    FilterOperator = "contains"
	FilterNotContains FilterOperator = "not_contains"
	FilterGreaterThan FilterOperator = "greater_than"
	FilterLessThan    FilterOperator = "less_than"
	FilterIsEmpty     FilterOperator = "is_empty"
	FilterIsNotEmpty  FilterOperator = "is_not_empty"
)

// FilterMode decides whether a matching row is kept or dropped.
type FilterMode string

const (
	FilterInclude FilterMode = "include"
	FilterExclude FilterMode = "exclude"
)

// Filter is one row-level predicate. An include filter that fails
// excludes the row; an exclude filter that matches excludes the row.
type Filter struct {
	Column   string
	Operator FilterOperator
	Value    string
	Mode     FilterMode
}
