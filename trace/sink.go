// Package trace implements the three opt-in diagnostic channels: graph,
// projection, and runtime. Each is an independent switch on a Sink; a
// switch left off never touches its slog.Logger at all.
package trace

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink owns the three trace switches plus the underlying log/slog handler
// they write through. The zero value has all three switches off.
type Sink struct {
	Graphs      bool
	Projections bool
	Runtime     bool

	logger *slog.Logger
}

var (
	initOnce sync.Once
	root     *slog.Logger
)

// NewSink constructs a Sink writing to logFile if non-empty (rotated via
// lumberjack) or, when empty, to stdout — colorized when stdout is a
// terminal, plain otherwise. Logger initialization happens exactly once
// per process regardless of how many Sinks are constructed: this is
// mandatory because backends may call into tracing at import time, so a
// second NewSink call reuses the first handler rather than reopening the
// log file.
func NewSink(logFile string) *Sink {
	initOnce.Do(func() {
		root = slog.New(newHandler(logFile))
	})
	return &Sink{logger: root}
}

func newHandler(logFile string) slog.Handler {
	var w io.Writer
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		return slog.NewTextHandler(w, nil)
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		w = colorable.NewColorableStdout()
	} else {
		w = os.Stdout
	}
	return slog.NewTextHandler(w, nil)
}

// Graph emits line under the "graph" channel if Graphs tracing is on.
func (s *Sink) Graph(line string) {
	if s == nil || !s.Graphs {
		return
	}
	s.logger.Info(colorize(color.FgCyan, line), "channel", "graph")
}

// Projection emits line under the "projection" channel if Projections
// tracing is on.
func (s *Sink) Projection(line string) {
	if s == nil || !s.Projections {
		return
	}
	s.logger.Info(colorize(color.FgYellow, line), "channel", "projection")
}

// RuntimeLine emits line under the "runtime" channel if Runtime tracing
// is on. Named RuntimeLine, not Runtime, so it doesn't collide with the
// Runtime bool switch field.
func (s *Sink) RuntimeLine(line string) {
	if s == nil || !s.Runtime {
		return
	}
	s.logger.Info(colorize(color.FgGreen, line), "channel", "runtime")
}

func colorize(c color.Attribute, s string) string {
	return color.New(c).Sprint(s)
}
