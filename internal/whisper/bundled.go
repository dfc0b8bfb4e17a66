package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

var _ Engine = (*BundledEngine)(nil)

type BundledEngine struct {
	Executable string
	ModelPath  string
	Language   string
	Logger     *zap.Logger
}

// NewBundledEngine locates whisper-cli, preferring an explicit path over the
// locations shipped next to the voxserve binary.
func NewBundledEngine(executable, modelPath, language string, logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file unavailable: %w", err)
	}

	engine := &BundledEngine{ModelPath: modelPath, Language: language, Logger: logger}

	if override := strings.TrimSpace(executable); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("whisper path is not executable: %w", err)
		}
		engine.Executable = override
		return engine, nil
	}

	voxserveExe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxserve executable path: %w", err)
	}

	whisperExe, err := ResolveBundledEnginePath(voxserveExe)
	if err != nil {
		return nil, err
	}

	engine.Executable = whisperExe
	return engine, nil
}

func ResolveBundledEnginePath(voxserveExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(voxserveExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	if found, err := exec.LookPath(engineBinaryName()); err == nil {
		return found, nil
	}

	return "", fmt.Errorf("whisper engine not found near %s or on PATH; expected at ../libexec/whisper/%s", voxserveExecutable, engineBinaryName())
}

func EnginePathCandidates(voxserveExecutable string) []string {
	binDir := filepath.Dir(voxserveExecutable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, normalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

// Transcribe runs whisper-cli on audioPath. Its output files are written
// next to the audio so they go away with the task directory. JSON output is
// returned as a Hypothesis; the plain text file is the fallback.
func (b *BundledEngine) Transcribe(ctx context.Context, audioPath string) (any, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, errors.New("audio path is required")
	}

	if err := ensureExecutable(b.Executable); err != nil {
		return nil, fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	outBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + "-transcript"
	args := b.Args(audioPath, outBase)

	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	b.log().Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	started := time.Now()
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return nil, fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", b.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return nil, fmt.Errorf("whisper engine crashed with an illegal CPU instruction; " +
				"your CPU may lack required instruction set extensions; " +
				"set VOXSERVE_WHISPER_PATH to a whisper-cli binary built for your CPU")
		}
		return nil, fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
	}
	b.log().Debug("whisper engine finished", zap.Duration("elapsed", time.Since(started)))

	if hyp, err := readJSONHypothesis(outBase + ".json"); err == nil {
		return hyp, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		b.log().Warn("unreadable whisper json output; falling back to text", zap.Error(err))
	}

	content, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	return stripBlank(string(content)), nil
}

func (b *BundledEngine) Args(audioPath, outBase string) []string {
	args := []string{"-m", b.ModelPath, "-f", audioPath, "-nt", "-oj", "-otxt", "-of", outBase}
	lang := strings.TrimSpace(b.Language)
	if lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	return args
}

func (b *BundledEngine) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

type jsonOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func readJSONHypothesis(path string) (*Hypothesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseJSONHypothesis(raw)
}

func parseJSONHypothesis(raw []byte) (*Hypothesis, error) {
	var out jsonOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode whisper json: %w", err)
	}

	hyp := &Hypothesis{Language: out.Result.Language}
	for _, seg := range out.Transcription {
		hyp.Segments = append(hyp.Segments, Segment{
			Start: time.Duration(seg.Offsets.From) * time.Millisecond,
			End:   time.Duration(seg.Offsets.To) * time.Millisecond,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	hyp.Text = joinSegments(hyp.Segments)
	return hyp, nil
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}

func normalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}
