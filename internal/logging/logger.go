package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// File names inside the log directory.
const (
	AutomationFile = "automation.log"
	ErrorFile      = "errors.log"
)

// Rotation limits for both log files.
const (
	maxSizeMB  = 5
	maxBackups = 5
)

// Options tune the logger.
type Options struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Console receives the human readable stream. Nil disables it.
	Console io.Writer
	// NoColor disables ANSI colours on the console stream.
	NoColor bool
}

// Logger fans one zerolog stream out to the console, the rotating
// automation.log and the error-only errors.log so users can inspect failures
// after the run is over.
type Logger struct {
	zerolog.Logger
	files []*lumberjack.Logger
}

// New creates (or reuses) the log files under logDir.
func New(logDir string, opts Options) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	automation := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, AutomationFile),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	errorsOnly := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, ErrorFile),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	writers := []io.Writer{
		automation,
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: errorsOnly},
			Level:  zerolog.ErrorLevel,
		},
	}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			NoColor:    opts.NoColor,
			TimeFormat: time.TimeOnly,
		})
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()
	return &Logger{Logger: logger, files: []*lumberjack.Logger{automation, errorsOnly}}, nil
}

// Close releases the file handles.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.files = nil
	return errors.Join(errs...)
}

// ParseLevel maps the configured level name to a zerolog level, falling back
// to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
