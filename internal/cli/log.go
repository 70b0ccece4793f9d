package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/workbookdeps/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Analyzed 3 workbooks (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// logHooks reports pipeline phases and diagnostics at debug level. It is
// installed for --verbose runs.
type logHooks struct {
	logger *log.Logger
}

func (h logHooks) OnPhaseStart(_ context.Context, workbook string, phase observability.Phase) {
	h.logger.Debug("phase started", "workbook", workbook, "phase", phase)
}

func (h logHooks) OnPhaseComplete(_ context.Context, workbook string, phase observability.Phase, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("phase failed", "workbook", workbook, "phase", phase, "err", err)
		return
	}
	h.logger.Debug("phase done", "workbook", workbook, "phase", phase, "duration", d.Round(time.Microsecond))
}

func (h logHooks) OnDiagnostic(_ context.Context, workbook, kind string) {
	h.logger.Debug("diagnostic", "workbook", workbook, "kind", kind)
}

func (h logHooks) OnCacheHit(_ context.Context, key string) {
	h.logger.Debug("cache hit", "key", shortKey(key))
}

func (h logHooks) OnCacheMiss(_ context.Context, key string) {
	h.logger.Debug("cache miss", "key", shortKey(key))
}

func (h logHooks) OnCacheSet(_ context.Context, key string, size int) {
	h.logger.Debug("cache set", "key", shortKey(key), "bytes", size)
}

// installLogHooks routes pipeline and cache hooks to the logger.
func installLogHooks(l *log.Logger) {
	h := logHooks{logger: l}
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
}

func shortKey(key string) string {
	if len(key) > 16 {
		return key[:16]
	}
	return key
}
