package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fmueller/voxserve/internal/whisper"
	"go.uber.org/zap"
)

// Preprocessor converts an uploaded file into the engine's input format.
type Preprocessor interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// Recognizer runs speech recognition on a converted file. The result may be
// a whisper.Hypothesis, a plain string, or anything with a text payload.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) (any, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, text string) (string, error)
}

// SilenceDetector reports whether converted audio holds no speech.
type SilenceDetector func(audioPath string) (bool, error)

type textPayload interface {
	TranscriptText() string
}

var errEmptyResult = errors.New("engine returned no result")

// extractText pulls the transcript out of whatever shape the engine
// returned.
func extractText(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", errEmptyResult
	case string:
		return strings.TrimSpace(v), nil
	case []byte:
		return strings.TrimSpace(string(v)), nil
	case whisper.Hypothesis:
		return strings.TrimSpace(v.Text), nil
	case *whisper.Hypothesis:
		if v == nil {
			return "", errEmptyResult
		}
		return strings.TrimSpace(v.Text), nil
	case []whisper.Hypothesis:
		if len(v) == 0 {
			return "", errEmptyResult
		}
		return strings.TrimSpace(v[0].Text), nil
	case textPayload:
		return strings.TrimSpace(v.TranscriptText()), nil
	case fmt.Stringer:
		return strings.TrimSpace(v.String()), nil
	default:
		return "", fmt.Errorf("unsupported engine result type %T", result)
	}
}

func (s *Service) preprocess(ctx context.Context, task *Task, log *zap.Logger) error {
	ws := task.Workspace
	if err := s.preprocessor.Convert(ctx, ws.InputPath, ws.OutputPath); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		}
		log.Warn("audio preprocessing failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPreprocessingFailed, err)
	}
	return nil
}

func (s *Service) silent(task *Task, log *zap.Logger) bool {
	if s.silence == nil {
		return false
	}

	silent, err := s.silence(task.Workspace.OutputPath)
	if err != nil {
		log.Warn("silence detection failed; continuing with inference", zap.Error(err))
		return false
	}
	if silent {
		log.Info("audio considered silent; skipping inference")
	}
	return silent
}

func (s *Service) infer(ctx context.Context, task *Task, log *zap.Logger) (string, error) {
	var result any
	err := s.limiter.Do(ctx, func() error {
		var err error
		result, err = s.recognizer.Transcribe(ctx, task.Workspace.OutputPath)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		}
		s.reporter.Capture(err, "inference failed", map[string]string{"task_id": task.ID})
		return "", fmt.Errorf("%w: %w", ErrInferenceFailed, err)
	}

	text, err := extractText(result)
	if err != nil {
		s.reporter.Capture(err, "unusable inference result", map[string]string{"task_id": task.ID})
		return "", fmt.Errorf("%w: %w", ErrInferenceFailed, err)
	}

	return s.normalize(ctx, text, log), nil
}

// normalize never fails the task: any error or panic falls back to raw.
func (s *Service) normalize(ctx context.Context, raw string, log *zap.Logger) (text string) {
	if s.normalizer == nil || raw == "" {
		return raw
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn("normalizer panicked; returning raw transcript", zap.Any("panic", r))
			text = raw
		}
	}()

	normalized, err := s.normalizer.Normalize(ctx, raw)
	if err != nil {
		log.Warn("normalization failed; returning raw transcript", zap.Error(err))
		return raw
	}
	return normalized
}
