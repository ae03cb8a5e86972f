// Package logger configures the process-wide structured logger.
//
// Direct adaptation of hector's pkg/logger: level parsing, a colorized
// text handler for terminals, and a filtering handler that suppresses
// third-party library logs unless the level is debug.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

var defaultLogger *slog.Logger

const modulePackagePrefix = "github.com/KhaineVulpana/loco-core"

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn, error. Anything else defaults to warn.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// filteringHandler suppresses third-party logs unless level is debug.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || h.isOwnPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isOwnPackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), modulePackagePrefix) || strings.Contains(file, "loco-core/")
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// coloredHandler formats records as "LEVEL message key=value ..." with
// ANSI color on the level token, for interactive terminal output.
type coloredHandler struct {
	next   slog.Handler
	writer io.Writer
}

func (h *coloredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *coloredHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder
	buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	buf.WriteString(levelColor(record.Level))
	buf.WriteString(strings.ToUpper(record.Level.String()))
	buf.WriteString("\033[0m ")
	buf.WriteString(record.Message)
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")
	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *coloredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &coloredHandler{next: h.next.WithAttrs(attrs), writer: h.writer}
}

func (h *coloredHandler) WithGroup(name string) slog.Handler {
	return &coloredHandler{next: h.next.WithGroup(name), writer: h.writer}
}

// Init installs the process-wide slog default logger at the given level,
// writing to output. Terminal output gets ANSI coloring; non-terminal
// output uses the plain text handler.
func Init(level slog.Level, output *os.File) *slog.Logger {
	base := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})

	var handler slog.Handler = base
	if isTerminal(output) {
		handler = &coloredHandler{next: base, writer: output}
	}

	defaultLogger = slog.New(&filteringHandler{handler: handler, minLevel: level})
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// Get returns the process-wide logger, initializing a default (info level,
// stderr) one on first use.
func Get() *slog.Logger {
	if defaultLogger == nil {
		return Init(slog.LevelInfo, os.Stderr)
	}
	return defaultLogger
}
