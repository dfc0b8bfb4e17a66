// Package reporting forwards unexpected failures to Sentry.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const moduleName = "voxserve"

// Reporter logs an error and, when a Sentry hub is configured, captures it
// with its fields attached. Methods are safe on a nil *Reporter.
type Reporter struct {
	hub    *sentry.Hub
	logger *zap.Logger
}

type Options struct {
	DSN       string
	Release   string
	Debug     bool
	Transport sentry.Transport
}

func New(opts Options, logger *zap.Logger) (*Reporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.TrimSpace(opts.DSN) == "" {
		return &Reporter{logger: logger}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              opts.DSN,
		AttachStacktrace: true,
		Release:          opts.Release,
		Debug:            opts.Debug,
		Transport:        opts.Transport,
	})
	if err != nil {
		return nil, err
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("module", moduleName)
	})

	logger.Info("error reporting enabled", zap.String("release", opts.Release))
	return &Reporter{hub: hub, logger: logger}, nil
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

func (r *Reporter) Capture(err error, message string, fields map[string]string) {
	if err == nil || r == nil {
		return
	}

	zapFields := make([]zap.Field, 0, len(fields)+1)
	for k, v := range fields {
		zapFields = append(zapFields, zap.String(k, v))
	}
	zapFields = append(zapFields, zap.Error(err))
	r.logger.Error(message, zapFields...)

	if r.hub == nil {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("context", message)
		for k, v := range fields {
			scope.SetTag(k, v)
		}
		r.hub.CaptureException(err)
	})
}

// CapturePanic records a recovered panic value together with its stack.
func (r *Reporter) CapturePanic(recovered any, stack []byte, fields map[string]string) {
	if r == nil {
		return
	}

	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}

	zapFields := make([]zap.Field, 0, len(fields)+2)
	for k, v := range fields {
		zapFields = append(zapFields, zap.String(k, v))
	}
	zapFields = append(zapFields, zap.Any("panic", recovered), zap.ByteString("stack", stack))
	r.logger.Error("recovered panic", zapFields...)

	if r.hub == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range fields {
			scope.SetTag(k, v)
		}
		scope.SetExtra("stack", string(stack))
		r.hub.Recover(err)
	})
}

func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}
