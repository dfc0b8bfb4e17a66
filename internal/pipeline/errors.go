package pipeline

import "errors"

// Error kinds surfaced to callers. Stage failures wrap one of these with
// %w so callers can match them with errors.Is while the cause stays
// available for logs.
var (
	ErrCapacityExceeded    = errors.New("queue at capacity")
	ErrPreprocessingFailed = errors.New("audio preprocessing failed")
	ErrInferenceFailed     = errors.New("inference failed")
	ErrTimedOut            = errors.New("transcription timed out")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrInternal            = errors.New("internal error")
)
