package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/fmueller/voxserve/internal/pipeline"
)

// Client-facing details are fixed strings; causes only go to the log.
const (
	msgNotReady       = "Model not loaded"
	msgBusy           = "Server busy, try again later"
	msgBadAudio       = "Audio processing failed"
	msgTimedOut       = "Transcription timed out"
	msgFailed         = "Transcription failed"
	msgInternal       = "Internal server error"
	msgNoFile         = "No audio file provided"
	msgEmptyFile      = "Uploaded file is empty"
	msgBadForm        = "Invalid multipart form"
	msgTooLarge       = "Uploaded file is too large"
	msgClientGoneAway = "Request cancelled"
)

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrCapacityExceeded):
		return http.StatusTooManyRequests, msgBusy
	case errors.Is(err, pipeline.ErrPreprocessingFailed):
		return http.StatusBadRequest, msgBadAudio
	case errors.Is(err, pipeline.ErrTimedOut):
		return http.StatusGatewayTimeout, msgTimedOut
	case errors.Is(err, pipeline.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, msgNotReady
	case errors.Is(err, pipeline.ErrInferenceFailed):
		return http.StatusInternalServerError, msgFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, msgClientGoneAway
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
