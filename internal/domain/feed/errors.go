package feed

import "errors"

var (
	ErrFeedNotFound    = errors.New("feed not found")
	ErrUnknownProtocol = errors.New("unknown transport protocol")
)
