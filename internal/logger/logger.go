// Package logger provides a simple logging interface for dockhand components.
// Packages log through the Logger interface so they stay decoupled from the
// zap backend; the terminal belongs to the TUI, so real output goes to a file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugEnv forces debug logging when set to any non-empty value.
const DebugEnv = "DOCKHAND_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Options configures the zap-backed logger.
type Options struct {
	File  string // destination path; empty means DefaultFile() when debugging, else discard
	Level string // debug, info, warn, error
}

// zapLogger adapts a sugared zap logger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// FromZap wraps an existing zap logger, naming it when name is non-empty.
func FromZap(z *zap.Logger, name string) Logger {
	if name != "" {
		z = z.Named(name)
	}
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Debug(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *zapLogger) Info(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *zapLogger) Warn(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *zapLogger) Error(format string, args ...interface{}) { l.s.Errorf(format, args...) }

// New builds the process logger. The returned close func flushes and
// closes the log file; it is safe to call when logging is disabled.
func New(opts Options) (*zap.Logger, func() error, error) {
	debug := os.Getenv(DebugEnv) != ""
	path := opts.File
	if path == "" && debug {
		path = DefaultFile()
	}
	if path == "" {
		return zap.NewNop(), func() error { return nil }, nil
	}

	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		level = zapcore.DebugLevel
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level)
	z := zap.New(core)

	closeFn := func() error {
		_ = z.Sync()
		return f.Close()
	}
	return z, closeFn, nil
}

// DefaultFile is where debug logs land when no file is configured.
func DefaultFile() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "dockhand.log")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "dockhand", "dockhand.log")
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return lvl, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing. It is safe for use from
// the ingestor and loop goroutines at the same time.
type BufferLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) add(level, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args) }

// Messages returns a copy of everything logged so far.
func (l *BufferLogger) Messages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	for _, m := range l.Messages() {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Contains reports whether any message contains substr.
func (l *BufferLogger) Contains(substr string) bool {
	for _, m := range l.Messages() {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = Noop()
)

// Default returns the process-wide logger. Until the CLI installs one it
// discards everything.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the process-wide logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// OrDefault returns l, or Default() when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}
