package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

var Levels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

type Logger struct {
	json bool
	sl   *slog.Logger
}

// New writes JSON lines when jsonOutput is set and colored text otherwise.
// An unknown level falls back to INFO.
func New(w io.Writer, jsonOutput bool, level string) *Logger {
	lvl, ok := ParseLevel(level)
	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		h = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.TimeOnly,
			NoColor:    os.Getenv("NO_COLOR") != "",
		})
	}
	l := &Logger{json: jsonOutput, sl: slog.New(h)}
	if !ok && level != "" {
		l.Warn("invalid log level, using default", map[string]any{"input_log_level": level, "default_log_level": lvl.String()})
	}
	return l
}

// ParseLevel maps DEBUG, INFO, WARN or ERROR in any case to a level.
func ParseLevel(s string) (slog.Level, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, lvl := range Levels {
		if lvl.String() == s {
			return lvl, true
		}
	}
	return slog.LevelInfo, false
}

func (l *Logger) log(level slog.Level, msg string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.sl.LogAttrs(context.Background(), level, msg, attrs...)
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(slog.LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log(slog.LevelError, msg, fields) }

// JSONEnabled reports whether this logger is configured to emit JSON output.
func (l *Logger) JSONEnabled() bool { return l.json }

// Slog exposes the underlying logger for libraries that take a *slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.sl }
