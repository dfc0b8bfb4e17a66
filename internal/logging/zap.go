// Package logging builds the process logger.
package logging

import (
	"io"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "voxserve"

type Options struct {
	Verbose bool
	// JSON selects one object per line with ISO8601 timestamps, for log
	// shippers. Otherwise lines are colored console text without times.
	JSON bool
	// Output defaults to stderr.
	Output io.Writer
}

func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var (
		encoder zapcore.Encoder
		options []zap.Option
	)
	if opts.JSON {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
		options = append(options, zap.Fields(zap.String("service", serviceName)))
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = ""
		encCfg.CallerKey = ""
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	if opts.Verbose {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	options = append(options, zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(os.Stderr))))

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)
	return zap.New(core, options...), nil
}

// StdLogger adapts logger for APIs that want a *log.Logger, such as
// http.Server.ErrorLog.
func StdLogger(logger *zap.Logger) *log.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	std, err := zap.NewStdLogAt(logger, zapcore.WarnLevel)
	if err != nil {
		return zap.NewStdLog(logger)
	}
	return std
}
