package job

// Descriptor is the unit the durable queue carries. Manual triggers,
// the scheduler, and the resume sweep all produce this same shape.
type Descriptor struct {
	FeedID          string  `json:"feedId"`
	ShopID          string  `json:"shopId"`
	Type            Trigger `json:"type"`
	IsPreview       bool    `json:"isPreview"`
	PreviewRowLimit int     `json:"previewRowLimit,omitempty"`
	ResumeJobID     string  `json:"resumeJobId,omitempty"`
}

// IsResume reports whether this dispatch continues an interrupted job
// instead of starting a fresh one.
func (d Descriptor) IsResume() bool {
	return d.ResumeJobID != ""
}
