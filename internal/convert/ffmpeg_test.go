package convert

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFFmpegStub installs a fake ffmpeg that records its arguments and
// copies fixture to the last argument, or fails when fixture is empty.
func writeFFmpegStub(t *testing.T, fixture string) (binary string, argsFile string) {
	t.Helper()

	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	binary = filepath.Join(dir, "ffmpeg")

	var body string
	if fixture == "" {
		body = "echo 'Invalid data found when processing input' >&2\nexit 1\n"
	} else {
		body = "for last; do :; done\ncp '" + fixture + "' \"$last\"\n"
	}
	stub := "#!/bin/sh\nset -eu\nprintf '%s\\n' \"$@\" > '" + argsFile + "'\n" + body
	require.NoError(t, os.WriteFile(binary, []byte(stub), 0o755))
	return binary, argsFile
}

func writeFixture(t *testing.T, sampleRate, channels int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	require.NoError(t, os.WriteFile(path, makePCM16WAVForTest(make([]int16, sampleRate*channels), sampleRate, channels), 0o644))
	return path
}

func TestArgsTemplate(t *testing.T) {
	t.Parallel()

	f := NewFFmpeg("", nil, nil)
	require.Equal(t, "ffmpeg", f.Binary)
	require.Equal(t, []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-i", "in.mp3",
		"-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le", "out.wav",
	}, f.Args("in.mp3", "out.wav"))
}

func TestArgsTemplateWithFilters(t *testing.T) {
	t.Parallel()

	f := NewFFmpeg("ffmpeg", []string{"highpass=f=80", " ", "dynaudnorm"}, nil)
	args := f.Args("in.mp3", "out.wav")
	require.Equal(t, []string{"-af", "highpass=f=80,dynaudnorm"}, args[7:9])
	require.Equal(t, "out.wav", args[len(args)-1])
}

func TestConvertRunsToolAndVerifiesOutput(t *testing.T) {
	t.Parallel()

	binary, argsFile := writeFFmpegStub(t, writeFixture(t, 16000, 1))
	f := NewFFmpeg(binary, []string{"highpass=f=80"}, nil)

	dir := t.TempDir()
	in := filepath.Join(dir, "input.mp3")
	out := filepath.Join(dir, "converted.wav")
	require.NoError(t, os.WriteFile(in, []byte("mp3 bytes"), 0o600))

	require.NoError(t, f.Convert(context.Background(), in, out))
	require.FileExists(t, out)

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, f.Args(in, out), args)
}

func TestConvertFailureCarriesDiagnostic(t *testing.T) {
	t.Parallel()

	binary, _ := writeFFmpegStub(t, "")
	f := NewFFmpeg(binary, nil, nil)

	dir := t.TempDir()
	err := f.Convert(context.Background(), filepath.Join(dir, "input.bin"), filepath.Join(dir, "converted.wav"))
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	require.Contains(t, toolErr.Diagnostic, "Invalid data found")
}

func TestConvertRejectsWrongOutputFormat(t *testing.T) {
	t.Parallel()

	binary, _ := writeFFmpegStub(t, writeFixture(t, 44100, 2))
	f := NewFFmpeg(binary, nil, nil)

	dir := t.TempDir()
	err := f.Convert(context.Background(), filepath.Join(dir, "input.bin"), filepath.Join(dir, "converted.wav"))

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	require.Contains(t, toolErr.Error(), "44100 Hz")
}

func TestConvertMissingBinary(t *testing.T) {
	t.Parallel()

	f := NewFFmpeg(filepath.Join(t.TempDir(), "no-ffmpeg"), nil, nil)
	require.False(t, f.Available())

	dir := t.TempDir()
	err := f.Convert(context.Background(), filepath.Join(dir, "in"), filepath.Join(dir, "out.wav"))
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
}

func TestConvertRequiresPaths(t *testing.T) {
	t.Parallel()

	require.Error(t, NewFFmpeg("", nil, nil).Convert(context.Background(), "", "out.wav"))
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16

	out := make([]byte, 0, 44+dataSize)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(4+(8+fmtChunkSize)+(8+dataSize)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, uint32(fmtChunkSize))
	out = binary.LittleEndian.AppendUint16(out, 1)
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*channels*bytesPerSample))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels*bytesPerSample))
	out = binary.LittleEndian.AppendUint16(out, 16)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}
	return out
}
