package job

import "time"

// Status is the lifecycle state of one sync job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusInterrupted Status = "interrupted"
)

// allowedTransitions encodes the job state machine. interrupted is the
// only recoverable terminal state: a resume dispatch moves it back to
// processing.
var allowedTransitions = map[Status][]Status{
	StatusPending:     {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing:  {StatusCompleted, StatusFailed, StatusCancelled, StatusInterrupted},
	StatusInterrupted: {StatusProcessing},
	StatusCompleted:   {},
	StatusFailed:      {},
	StatusCancelled:   {},
}

// CanTransition reports whether moving a job from one status to another
// is legal.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status never produces further queue
// activity on its own. interrupted counts as terminal here; the sweep
// converts it into a fresh dispatch rather than the job resuming itself.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusInterrupted:
		return true
	}
	return false
}

// IsActive reports whether a status blocks admission of a new job for
// the same feed.
func IsActive(s Status) bool {
	return s == StatusPending || s == StatusProcessing
}

// Trigger records what caused a job to be enqueued.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerResume    Trigger = "resume"
)

// Results are the aggregate row outcomes of a run.
type Results struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Progress is the user-visible completion counter.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// NewProgress derives a Progress from a current/total pair.
func NewProgress(current, total int) Progress {
	p := Progress{Current: current, Total: total}
	if total > 0 {
		p.Percentage = float64(current) / float64(total) * 100
	}
	return p
}

// FileInfo describes the downloaded source file of a run.
type FileInfo struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
	RowCount int    `json:"rowCount"`
}

// ErrorDetail is the user-visible failure summary on a job.
type ErrorDetail struct {
	Message string    `json:"message"`
	Code    string    `json:"code"`
	At      time.Time `json:"at"`
}

// Checkpoint is the explicit resume unit: the last fully processed row
// index plus the aggregate counters at that point. It is written on a
// fixed cadence and read exactly once at resume entry.
type Checkpoint struct {
	RowIndex int
	Results  Results
}

// Job is one execution attempt of a feed sync.
type Job struct {
	ID               string
	FeedID           string
	ShopID           string
	Status           Status
	Trigger          Trigger
	IsPreview        bool
	File             FileInfo
	Results          Results
	Progress         Progress
	LastProcessedRow int
	QueueDeliveryID  string
	Error            *ErrorDetail
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Duration is the wall-clock run time, zero until the job started.
func (j Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.StartedAt)
}

// Checkpoint extracts the resume checkpoint currently persisted on the
// job record.
func (j Job) Checkpoint() Checkpoint {
	return Checkpoint{RowIndex: j.LastProcessedRow, Results: j.Results}
}
