package whisper

import (
	"context"
	"strings"
	"time"
)

// BlankAudioToken is what whisper-cli prints for audio without speech.
const BlankAudioToken = "[BLANK_AUDIO]"

// Hypothesis is the structured result of one recognition run.
type Hypothesis struct {
	Text     string
	Language string
	Segments []Segment
}

type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Engine recognizes speech in a 16 kHz mono WAV file. The result is either
// a Hypothesis or a plain string, depending on what the engine produced.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (any, error)
}

func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := stripBlank(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func stripBlank(text string) string {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, BlankAudioToken) {
		return ""
	}
	return text
}
