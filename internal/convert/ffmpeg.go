package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fmueller/voxserve/internal/audio"
	"go.uber.org/zap"
)

const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetBitDepth   = 16
	targetCodec      = "pcm_s16le"
)

// ToolError is returned when ffmpeg exits non-zero or produces unusable
// output. Diagnostic holds the tool's stderr for logs only.
type ToolError struct {
	Err        error
	Diagnostic string
}

func (e *ToolError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("audio conversion failed: %v", e.Err)
	}
	return fmt.Sprintf("audio conversion failed: %v (%s)", e.Err, e.Diagnostic)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

type FFmpeg struct {
	Binary  string
	Filters []string
	Logger  *zap.Logger
}

func NewFFmpeg(binary string, filters []string, logger *zap.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{Binary: binary, Filters: filters, Logger: logger}
}

func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Binary)
	return err == nil
}

// Args builds the fixed ffmpeg argument template for one conversion.
func (f *FFmpeg) Args(inputPath, outputPath string) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-i", inputPath}
	if chain := JoinFilters(f.Filters); chain != "" {
		args = append(args, "-af", chain)
	}
	return append(args,
		"-ar", strconv.Itoa(TargetSampleRate),
		"-ac", strconv.Itoa(TargetChannels),
		"-c:a", targetCodec,
		outputPath,
	)
}

// Convert resamples inputPath into a 16 kHz mono PCM WAV at outputPath and
// checks the result before returning.
func (f *FFmpeg) Convert(ctx context.Context, inputPath, outputPath string) error {
	if strings.TrimSpace(inputPath) == "" || strings.TrimSpace(outputPath) == "" {
		return errors.New("input and output paths are required")
	}

	args := f.Args(inputPath, outputPath)
	cmd := exec.CommandContext(ctx, f.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	f.log().Debug("running ffmpeg", zap.String("ffmpeg", f.Binary), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return &ToolError{Err: err, Diagnostic: strings.TrimSpace(stderr.String())}
	}

	info, err := audio.Inspect(outputPath)
	if err != nil {
		return &ToolError{Err: fmt.Errorf("inspect converted audio: %w", err), Diagnostic: strings.TrimSpace(stderr.String())}
	}
	if info.SampleRate != TargetSampleRate || info.Channels != TargetChannels || info.BitDepth != TargetBitDepth {
		return &ToolError{Err: fmt.Errorf("converted audio is %d Hz, %d channel(s), %d bit; want %d Hz mono %d bit",
			info.SampleRate, info.Channels, info.BitDepth, TargetSampleRate, TargetBitDepth)}
	}

	f.log().Debug("ffmpeg conversion finished", zap.String("output", outputPath), zap.Duration("audio_duration", info.Duration))
	return nil
}

func (f *FFmpeg) log() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}
