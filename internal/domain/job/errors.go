package job

import "errors"

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobConflict       = errors.New("a sync is already pending or processing for this feed")
	ErrNotResumable      = errors.New("job is not in interrupted status")
	ErrInvalidTransition = errors.New("invalid job status transition")
)
