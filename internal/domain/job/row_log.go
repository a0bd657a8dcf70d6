package job

import "time"

// RowOperation is the outcome chosen for one CSV row.
type RowOperation string

const (
	OpCreate RowOperation = "create"
	OpUpdate RowOperation = "update"
	OpSkip   RowOperation = "skip"
	OpError  RowOperation = "error"
)

// RowStatus grades a row log entry.
type RowStatus string

const (
	RowSuccess RowStatus = "success"
	RowWarning RowStatus = "warning"
	RowError   RowStatus = "error"
)

// FieldChange is one changed field recorded on a row log entry.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
	Kind     string `json:"kind"`
}

// RowLog is the append-only record of one processed CSV row. Entries
// are never mutated after creation.
type RowLog struct {
	JobID      string
	RowNumber  int
	RawRow     map[string]string
	Identifier string
	Operation  RowOperation
	RecordID   string
	Changes    []FieldChange
	Status     RowStatus
	ErrorMsg   string
	Warnings   []string
	Duration   time.Duration
	CreatedAt  time.Time
}
