// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger builds a logger from [LogConfig].
//
// When a log file is configured, entries are written to a size-rotated file through lumberjack
// and, unless fileOnly is set, mirrored to w. The returned closer releases the file handle.
func NewFileLogger(w io.Writer, cfg LogConfig, fileOnly bool) (*log.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	out := w
	if out == nil {
		out = os.Stderr
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   ExpandPath(cfg.File),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		closer = rotator
		if fileOnly {
			out = rotator
		} else {
			out = io.MultiWriter(out, rotator)
		}
	} else if fileOnly {
		out = io.Discard
	}

	logger := NewLogger(out)
	if lvl, err := log.ParseLevel(cfg.Level); err == nil {
		SetLogLevel(logger, lvl)
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// ExpandPath replaces a leading "~" with the current user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
