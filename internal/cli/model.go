package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fmueller/voxserve/internal/download"
	"github.com/fmueller/voxserve/internal/version"
	"github.com/fmueller/voxserve/internal/whisper"
	"go.uber.org/zap"
)

func (a *appState) resolveModel() (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}
	return whisper.ResolveModel(a.cfg.Model, modelDir)
}

// installModel fetches a named model into its resolved path and verifies
// it against the pinned or published checksum.
func (a *appState) installModel(ctx context.Context, model whisper.ResolvedModel, expectedSHA256 string) error {
	a.log().Info("downloading model", zap.String("model", model.Name), zap.String("destination", model.Path))

	err := download.DownloadFile(ctx, download.Options{
		URL:            model.URL,
		Destination:    model.Path,
		ExpectedSHA256: expectedSHA256,
		ChecksumURL:    model.SHA256URL,
		UserAgent:      version.Name + "/" + version.Resolve(),
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	})
	if err != nil {
		return fmt.Errorf("download model %q: %w", model.Name, err)
	}
	return nil
}

// ensureModelAvailable is the serve path: a missing named model is either
// downloaded or reported, depending on auto_download.
func (a *appState) ensureModelAvailable(ctx context.Context) (whisper.ResolvedModel, error) {
	resolved, err := a.resolveModel()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}
	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.cfg.AutoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `voxserve setup --model %s` or set auto_download: true", resolved.Name, resolved.Path, resolved.Name)
	}
	if err := a.installModel(ctx, resolved, resolved.SHA256); err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved.NeedsDownload = false
	return resolved, nil
}

// checksumFor returns the pinned checksum, or fetches the published one
// when the registry carries only a checksum URL.
func checksumFor(ctx context.Context, model whisper.ResolvedModel) (string, error) {
	if model.SHA256 != "" || model.SHA256URL == "" {
		return model.SHA256, nil
	}
	sum, err := download.ResolveExpectedChecksum(ctx, model.SHA256URL, filepath.Base(model.Path), nil)
	if err != nil {
		return "", fmt.Errorf("resolve checksum for model %s: %w", model.Name, err)
	}
	return sum, nil
}
