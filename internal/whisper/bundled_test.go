package whisper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveBundledEnginePathFindsLibexecSibling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	engineDir := filepath.Join(root, "libexec", "whisper")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.MkdirAll(engineDir, 0o755))

	voxserve := filepath.Join(binDir, "voxserve")
	require.NoError(t, os.WriteFile(voxserve, []byte(""), 0o755))

	enginePath := filepath.Join(engineDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveBundledEnginePath(voxserve)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveBundledEnginePathMissing(t *testing.T) {
	voxserve := filepath.Join(t.TempDir(), "bin", "voxserve")
	require.NoError(t, os.MkdirAll(filepath.Dir(voxserve), 0o755))
	require.NoError(t, os.WriteFile(voxserve, []byte(""), 0o755))

	t.Setenv("PATH", t.TempDir())

	_, err := ResolveBundledEnginePath(voxserve)
	require.Error(t, err)
	require.Contains(t, err.Error(), "whisper engine not found")
}

func TestResolveBundledEnginePathFindsPackagingPathForLocalDev(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	voxserve := filepath.Join(root, "voxserve")
	require.NoError(t, os.WriteFile(voxserve, []byte(""), 0o755))

	targetDir := filepath.Join(root, "packaging", "whisper", fmt.Sprintf("%s_%s", runtime.GOOS, normalizeArch(runtime.GOARCH)))
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	enginePath := filepath.Join(targetDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveBundledEnginePath(voxserve)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestIsMissingSharedLibraryError(t *testing.T) {
	t.Parallel()

	require.True(t, isMissingSharedLibraryError("error while loading shared libraries: libwhisper.so.1: cannot open shared object file"))
	require.True(t, isMissingSharedLibraryError("dyld: Library not loaded: @rpath/libwhisper.dylib"))
	require.False(t, isMissingSharedLibraryError("some other runtime error"))
}

func TestIsIllegalInstructionError(t *testing.T) {
	t.Parallel()

	require.True(t, isIllegalInstructionError("signal: illegal instruction (core dumped)"))
	require.True(t, isIllegalInstructionError("signal: illegal instruction"))
	require.False(t, isIllegalInstructionError("some other runtime error"))
	require.False(t, isIllegalInstructionError(""))
}

func writeEngineStub(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), engineBinaryName())
	stub := "#!/bin/sh\nset -eu\nout=''\nprev=''\nfor arg; do\n  if [ \"$prev\" = '-of' ]; then out=\"$arg\"; fi\n  prev=\"$arg\"\ndone\n" + script
	require.NoError(t, os.WriteFile(path, []byte(stub), 0o755))
	return path
}

func newStubEngine(t *testing.T, script string) *BundledEngine {
	t.Helper()

	model := filepath.Join(t.TempDir(), "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))

	engine, err := NewBundledEngine(writeEngineStub(t, script), model, "en", nil)
	require.NoError(t, err)
	return engine
}

func TestTranscribeReturnsHypothesisFromJSON(t *testing.T) {
	t.Parallel()

	engine := newStubEngine(t, `printf '%s' '{"result":{"language":"en"},"transcription":[{"offsets":{"from":0,"to":900},"text":" hello"},{"offsets":{"from":900,"to":1800},"text":" world "}]}' > "$out.json"
echo 'hello world' > "$out.txt"
`)

	audio := filepath.Join(t.TempDir(), "converted.wav")
	result, err := engine.Transcribe(context.Background(), audio)
	require.NoError(t, err)

	hyp, ok := result.(*Hypothesis)
	require.True(t, ok, "expected *Hypothesis, got %T", result)
	require.Equal(t, "hello world", hyp.Text)
	require.Equal(t, "en", hyp.Language)
	require.Len(t, hyp.Segments, 2)
	require.Equal(t, "world", hyp.Segments[1].Text)
	require.FileExists(t, filepath.Join(filepath.Dir(audio), "converted-transcript.json"))
}

func TestTranscribeFallsBackToPlainText(t *testing.T) {
	t.Parallel()

	engine := newStubEngine(t, `echo '  plain words ' > "$out.txt"
`)

	result, err := engine.Transcribe(context.Background(), filepath.Join(t.TempDir(), "converted.wav"))
	require.NoError(t, err)
	require.Equal(t, "plain words", result)
}

func TestTranscribeSurfacesEngineFailure(t *testing.T) {
	t.Parallel()

	engine := newStubEngine(t, `echo 'failed to load model' >&2
exit 3
`)

	_, err := engine.Transcribe(context.Background(), filepath.Join(t.TempDir(), "converted.wav"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load model")
}

func TestTranscribeRequiresAudioPath(t *testing.T) {
	t.Parallel()

	engine := newStubEngine(t, "exit 0\n")
	_, err := engine.Transcribe(context.Background(), " ")
	require.Error(t, err)
}

func TestNewBundledEngineRequiresModel(t *testing.T) {
	t.Parallel()

	_, err := NewBundledEngine(writeEngineStub(t, "exit 0\n"), "", "auto", nil)
	require.Error(t, err)

	_, err = NewBundledEngine(writeEngineStub(t, "exit 0\n"), filepath.Join(t.TempDir(), "missing.bin"), "auto", nil)
	require.Error(t, err)
}

func TestArgsAddsLanguageOnlyWhenSet(t *testing.T) {
	t.Parallel()

	engine := &BundledEngine{ModelPath: "m.bin", Language: "auto"}
	require.Equal(t, []string{"-m", "m.bin", "-f", "a.wav", "-nt", "-oj", "-otxt", "-of", "base"}, engine.Args("a.wav", "base"))

	engine.Language = "de"
	args := engine.Args("a.wav", "base")
	require.Equal(t, []string{"-l", "de"}, args[len(args)-2:])
}

func TestParseJSONHypothesisRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := parseJSONHypothesis([]byte("{not json"))
	require.Error(t, err)
}

func TestTranscribeDropsBlankAudioToken(t *testing.T) {
	t.Parallel()

	engine := newStubEngine(t, `printf '%s' '{"transcription":[{"offsets":{"from":0,"to":1000},"text":" [BLANK_AUDIO]"}]}' > "$out.json"
`)
	result, err := engine.Transcribe(context.Background(), filepath.Join(t.TempDir(), "converted.wav"))
	require.NoError(t, err)
	require.Empty(t, result.(*Hypothesis).Text)

	engine = newStubEngine(t, `echo '[BLANK_AUDIO]' > "$out.txt"
`)
	result, err = engine.Transcribe(context.Background(), filepath.Join(t.TempDir(), "converted.wav"))
	require.NoError(t, err)
	require.Equal(t, "", result)
}
