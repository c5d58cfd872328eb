package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/EiDHindY/vaulture/internal/filex"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 1
	maxLogBackups = 5
)

// Options selects where and how much to log.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Path is the log file. Empty logs text to Console.
	Path string
	// Console receives human-readable output when Path is empty.
	Console io.Writer
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// New builds a logger per opts. File output is JSON, rotated at 1 MiB with
// five backups, created 0600 inside a 0700 directory. The returned closer
// releases the file.
func New(opts Options) (*SlogLogger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	hopts := &slog.HandlerOptions{Level: level, ReplaceAttr: RedactAttr}

	if opts.Path == "" {
		w := opts.Console
		if w == nil {
			w = os.Stderr
		}
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, hopts))), nopCloser{}, nil
	}

	if err := filex.EnsureParentDir(opts.Path); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	rot := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
	}
	return NewSlogLogger(slog.New(slog.NewJSONHandler(rot, hopts))), rot, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
