package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
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
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created,
// rounded to the millisecond. Example output: "Repacked 3 packages (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, p.elapsed())
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// failed logs msg as an error along with the elapsed time.
func (p *progress) failed(msg string) {
	p.logger.Errorf("%s (%s)", msg, p.elapsed())
}
