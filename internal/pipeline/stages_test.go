package pipeline

import (
	"testing"

	"github.com/fmueller/voxserve/internal/whisper"
	"github.com/stretchr/testify/require"
)

type payloadResult struct{ text string }

func (p payloadResult) TranscriptText() string { return p.text }

type stringerResult struct{}

func (stringerResult) String() string { return " from stringer " }

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		result  any
		want    string
		wantErr bool
	}{
		{name: "string", result: " hi there ", want: "hi there"},
		{name: "bytes", result: []byte("bytes\n"), want: "bytes"},
		{name: "hypothesis value", result: whisper.Hypothesis{Text: "value"}, want: "value"},
		{name: "hypothesis pointer", result: &whisper.Hypothesis{Text: " pointer "}, want: "pointer"},
		{name: "hypothesis list", result: []whisper.Hypothesis{{Text: "first"}, {Text: "second"}}, want: "first"},
		{name: "payload", result: payloadResult{text: "payload"}, want: "payload"},
		{name: "stringer", result: stringerResult{}, want: "from stringer"},
		{name: "nil", result: nil, wantErr: true},
		{name: "nil hypothesis", result: (*whisper.Hypothesis)(nil), wantErr: true},
		{name: "empty list", result: []whisper.Hypothesis{}, wantErr: true},
		{name: "unsupported", result: 3.14, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := extractText(tt.result)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
