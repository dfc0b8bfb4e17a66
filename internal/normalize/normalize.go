// Package normalize turns spoken-form transcripts into written form.
//
// Normalizers are advisory: callers fall back to the raw text when one
// fails.
package normalize

import (
	"context"
	"fmt"
	"strings"
)

const (
	ModeNumbers = "numbers"
	ModeCommand = "command"
	ModeNone    = "none"
)

type Normalizer interface {
	Normalize(ctx context.Context, text string) (string, error)
}

// New builds the normalizer for mode. ModeNone returns a nil Normalizer.
func New(mode, command string) (Normalizer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeNumbers:
		return Numbers{}, nil
	case ModeNone:
		return nil, nil
	case ModeCommand:
		return NewCommand(command)
	default:
		return nil, fmt.Errorf("unknown normalizer %q (supported: %s, %s, %s)", mode, ModeNumbers, ModeCommand, ModeNone)
	}
}
