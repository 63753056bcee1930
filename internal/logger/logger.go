// Package logger builds the process logger: JSON lines appended to a file on disk, plus a
// bounded in-memory copy of recent lines that the viewer console draws.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFilePath is the default log file, relative to the working directory.
const LogFilePath = "logs/hlod.txt"

// DefaultMaxLines is how many recent lines Lines keeps by default.
const DefaultMaxLines = 500

// Options configures New. Zero values pick the defaults.
type Options struct {
	// Path of the JSON log file. "-" disables the file.
	Path string
	// Level is a zap level name such as "debug" or "warn".
	Level    string
	MaxLines int
	// Echo, when set, also receives every console line (e.g. os.Stderr for command line tools).
	Echo io.Writer
}

// Logger is a zap logger whose recent entries stay readable as console lines.
type Logger struct {
	*zap.Logger
	ring *ring
	file *os.File
}

// New opens the log file (creating its directory) and returns the logger.
func New(opts Options) (*Logger, error) {
	if opts.Path == "" {
		opts.Path = LogFilePath
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
	}

	l := &Logger{ring: &ring{max: opts.MaxLines}}
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.TimeKey = "T"
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	var console zapcore.WriteSyncer = zapcore.AddSync(l.ring)
	if opts.Echo != nil {
		console = zapcore.NewMultiWriteSyncer(console, zapcore.Lock(zapcore.AddSync(opts.Echo)))
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), console, level),
	}

	if opts.Path != "-" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		l.file = f
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			level,
		))
	}
	l.Logger = zap.New(zapcore.NewTee(cores...))
	return l, nil
}

// Log records a line typed by the user.
func (l *Logger) Log(line string) {
	l.Info(line, zap.String("source", "console"))
}

// Lines returns a copy of the recent lines, oldest first.
func (l *Logger) Lines() []string {
	return l.ring.lines()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ring keeps the last max lines written to it.
type ring struct {
	mu    sync.Mutex
	max   int
	buf   []string
	start int
}

func (r *ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if len(r.buf) < r.max {
			r.buf = append(r.buf, line)
			continue
		}
		r.buf[r.start] = line
		r.start = (r.start + 1) % r.max
	}
	return len(p), nil
}

func (r *ring) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.buf))
	out = append(out, r.buf[r.start:]...)
	return append(out, r.buf[:r.start]...)
}
