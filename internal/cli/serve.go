package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fmueller/voxserve/internal/audio"
	"github.com/fmueller/voxserve/internal/convert"
	"github.com/fmueller/voxserve/internal/logging"
	"github.com/fmueller/voxserve/internal/normalize"
	"github.com/fmueller/voxserve/internal/pipeline"
	"github.com/fmueller/voxserve/internal/platform"
	"github.com/fmueller/voxserve/internal/reporting"
	"github.com/fmueller/voxserve/internal/scratch"
	"github.com/fmueller/voxserve/internal/server"
	"github.com/fmueller/voxserve/internal/version"
	"github.com/fmueller/voxserve/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownGrace = 30 * time.Second

// backend is what serve needs from a started pipeline.
type backend interface {
	server.Backend
	Stop(ctx context.Context) error
}

type startResult struct {
	backend backend
	model   string
	err     error
}

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription HTTP server (default)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runServe(cmd.Context())
		},
	}

	bindConfigFlag(cmd, app)
	bindLoggingFlags(cmd, app)
	bindListenFlag(cmd, app)

	return cmd
}

// runServe listens immediately and answers health checks with "loading"
// while the model is resolved in the background. It returns after SIGINT,
// SIGTERM or ctx cancellation once in-flight work has drained.
func (a *appState) runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log := a.log()
	reporter, err := reporting.New(reporting.Options{DSN: a.cfg.SentryDSN, Release: version.Release()}, log)
	if err != nil {
		return fmt.Errorf("initialize error reporting: %w", err)
	}
	defer reporter.Flush(2 * time.Second)

	srv := server.New(server.Options{MaxUploadBytes: a.cfg.MaxUploadBytes(), Logger: log})
	ln, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Listen, err)
	}

	httpServer := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logging.StdLogger(log),
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(ln) }()

	addr := ln.Addr().String()
	log.Info("listening", zap.String("addr", addr), zap.String("version", version.Resolve()))
	if a.onListen != nil {
		a.onListen(addr)
	}

	startCtx, cancelStart := context.WithCancel(ctx)
	defer cancelStart()
	started := make(chan startResult, 1)
	go func() {
		b, model, err := a.startFn(startCtx, reporter)
		started <- startResult{backend: b, model: model, err: err}
	}()

	var (
		running backend
		runErr  error
	)
loop:
	for {
		select {
		case res := <-started:
			started = nil
			if res.err != nil {
				if ctx.Err() == nil {
					reporter.Capture(res.err, "startup failed", nil)
					runErr = fmt.Errorf("startup: %w", res.err)
				}
				break loop
			}
			running = res.backend
			srv.SetBackend(running, res.model)
			log.Info("ready", zap.String("model", res.model))
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				runErr = fmt.Errorf("http server: %w", err)
			}
			break loop
		case <-ctx.Done():
			log.Info("shutting down")
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if started != nil {
		cancelStart()
		select {
		case res := <-started:
			running = res.backend
		case <-shutdownCtx.Done():
		}
	}
	srv.SetBackend(nil, "")

	// Stopping the pipeline first fails queued tasks, which lets their
	// handlers return so the HTTP shutdown below does not wait on them.
	if running != nil {
		if err := running.Stop(shutdownCtx); err != nil {
			log.Warn("pipeline did not stop cleanly", zap.Error(err))
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server did not shut down cleanly", zap.Error(err))
	}

	return runErr
}

// startPipeline resolves the model, wires the stages and starts the
// workers.
func (a *appState) startPipeline(ctx context.Context, reporter *reporting.Reporter) (backend, string, error) {
	log := a.log()
	cfg := a.cfg

	model, err := a.ensureModelAvailable(ctx)
	if err != nil {
		return nil, "", err
	}

	engine, err := whisper.NewBundledEngine(cfg.WhisperPath, model.Path, cfg.Language, log)
	if err != nil {
		return nil, "", err
	}

	ffmpeg := convert.NewFFmpeg(cfg.FFmpegPath, convert.ParseFilters(cfg.FilterChain()), log)
	if !ffmpeg.Available() {
		return nil, "", fmt.Errorf("ffmpeg not found (looked for %q); install ffmpeg or set ffmpeg_path", ffmpeg.Binary)
	}

	normalizer, err := normalize.New(cfg.Normalizer, cfg.NormalizerCommand)
	if err != nil {
		return nil, "", err
	}

	scratchDir, err := platform.ResolveScratchDir(cfg.ScratchDir)
	if err != nil {
		return nil, "", err
	}
	workspaces, err := scratch.NewManager(scratchDir, log)
	if err != nil {
		return nil, "", err
	}
	if purged, err := workspaces.Purge(); err != nil {
		log.Warn("failed to purge stale scratch directories", zap.String("dir", scratchDir), zap.Error(err))
	} else if purged > 0 {
		log.Info("purged stale scratch directories", zap.Int("count", purged), zap.String("dir", scratchDir))
	}

	opts := pipeline.Options{
		QueueCapacity:        cfg.QueueCapacity,
		InferenceConcurrency: cfg.InferenceConcurrency,
		Workers:              cfg.Workers,
		RequestTimeout:       cfg.RequestTimeout(),
		Scratch:              workspaces,
		Preprocessor:         ffmpeg,
		Recognizer:           engine,
		Reporter:             reporter,
		Logger:               log,
	}
	if normalizer != nil {
		opts.Normalizer = normalizer
	}
	if cfg.SilenceGate {
		threshold := cfg.SilenceThresholdDBFS
		opts.Silence = func(path string) (bool, error) {
			silent, _, err := audio.IsSilentWAV(path, threshold)
			return silent, err
		}
	}

	svc, err := pipeline.New(opts)
	if err != nil {
		return nil, "", err
	}
	if err := svc.Start(); err != nil {
		return nil, "", err
	}
	return svc, model.Name, nil
}
