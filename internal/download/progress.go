package download

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type progress interface {
	Write(p []byte) (int, error)
	Finish()
}

// newProgress draws a bar when stderr is a terminal. Otherwise, as under a
// service manager, it logs every tenth of the download instead.
func newProgress(disabled bool, total int64, name string, logger *zap.Logger) progress {
	if disabled || total <= 0 {
		return nopProgress{}
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return &barProgress{bar: progressbar.NewOptions64(
			total,
			progressbar.OptionSetDescription("downloading "+name),
			progressbar.OptionSetWidth(20),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)}
	}
	return &logProgress{total: total, name: name, logger: logger}
}

type nopProgress struct{}

func (nopProgress) Write(p []byte) (int, error) { return len(p), nil }
func (nopProgress) Finish()                     {}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (b *barProgress) Write(p []byte) (int, error) {
	return b.bar.Write(p)
}

func (b *barProgress) Finish() {
	_ = b.bar.Finish()
}

type logProgress struct {
	total   int64
	written int64
	decile  int64
	name    string
	logger  *zap.Logger
}

func (l *logProgress) Write(p []byte) (int, error) {
	l.written += int64(len(p))
	if d := l.written * 10 / l.total; d > l.decile && d < 10 {
		l.decile = d
		l.logger.Info("download progress",
			zap.String("file", l.name),
			zap.Int64("percent", d*10),
			zap.Int64("bytes", l.written),
			zap.Int64("total", l.total),
		)
	}
	return len(p), nil
}

func (l *logProgress) Finish() {
	l.logger.Info("download complete", zap.String("file", l.name), zap.Int64("bytes", l.written))
}
