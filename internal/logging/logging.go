// Package logging provides the process-wide slog loggers used by callctl services.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu                  sync.RWMutex
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	levelVar            = new(slog.LevelVar)
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// replaceLevel renders the custom TRACE and FATAL levels by name.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

func handlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       levelVar,
		ReplaceAttr: replaceLevel,
	}
}

// Init initializes the logging system with structured and human-readable loggers.
// Structured logs go to stdout as JSON, human-readable logs go to stderr as text.
func Init() {
	SetOutput(os.Stdout, os.Stderr)
}

// SetLevel sets the minimum logging level for both loggers. Safe to call at any time.
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// ParseLevel converts a configured level name into a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// SetOutput redirects both loggers and installs the structured one as slog's default.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	mu.Lock()
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, handlerOptions()))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, handlerOptions()))
	logger := structuredLogger
	mu.Unlock()

	slog.SetDefault(logger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	base := Structured()
	if base == nil {
		return nil
	}
	return base.With("service", serviceName)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// FileOptions controls rotation of a file logger.
type FileOptions struct {
	MaxSizeMB  int // rotate after this many megabytes
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileLogger creates a JSON logger writing to filePath with lumberjack rotation.
// It returns the logger and a function closing the underlying writer.
func NewFileLogger(filePath, serviceName string, level slog.Level, opts FileOptions) (*slog.Logger, func() error, error) {
	logWriter, err := NewRotatingWriter(filePath, opts)
	if err != nil {
		return nil, nil, err
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	})

	logger := slog.New(fileHandler).With("service", serviceName)
	return logger, logWriter.Close, nil
}

// NewRotatingWriter returns a lumberjack writer for filePath, creating its directory.
func NewRotatingWriter(filePath string, opts FileOptions) (io.WriteCloser, error) {
	// lumberjack doesn't create directories
	if logDir := filepath.Dir(filePath); logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 100
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 28
	}

	return &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}
