// Package logging configures the process-wide structured logger. It mirrors
// the teacher's rotating-file-plus-stderr slog setup, adapted to indiseek's
// single long-running daemon process rather than a TUI/CLI hybrid.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config controls where and how log records are written.
type Config struct {
	Level         string // debug, info, warn, error
	FilePath      string // empty disables file logging
	MaxSizeMB     int
	MaxFiles      int
	WriteToStderr bool
}

// DefaultConfig returns the configuration used when no environment override
// is present: info level, stderr only.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		WriteToStderr: true,
		MaxSizeMB:     50,
		MaxFiles:      5,
	}
}

// Setup builds a *slog.Logger per cfg and installs it as the default
// logger. The returned close func flushes and releases the rotating file
// handle and must be called before process exit.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var writers []io.Writer
	closeFn := func() {}

	if cfg.WriteToStderr || cfg.FilePath == "" {
		writers = append(writers, os.Stderr)
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		rw := newRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		writers = append(writers, rw)
		closeFn = func() { rw.Close() }
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// SetupDefault installs the default configuration and discards the close
// func; used by tests and one-off tools that don't need file rotation.
func SetupDefault() *slog.Logger {
	logger, _, err := Setup(DefaultConfig())
	if err != nil {
		// DefaultConfig always parses; unreachable in practice.
		return slog.Default()
	}
	return logger
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}

// rotatingWriter is a size-bounded, count-bounded log file writer. Rotation
// renames the current file to a numbered suffix and starts a fresh one;
// files beyond maxFiles are removed oldest-first.
type rotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxFiles   int
	file       *os.File
	written    int64
}

func newRotatingWriter(path string, maxSizeMB, maxFiles int) *rotatingWriter {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	if maxFiles <= 0 {
		maxFiles = 5
	}
	w := &rotatingWriter{
		path:     path,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
	}
	w.openCurrent()
	return w
}

func (w *rotatingWriter) openCurrent() {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		w.file = nil
		return
	}
	if fi, err := f.Stat(); err == nil {
		w.written = fi.Size()
	}
	w.file = f
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		w.openCurrent()
		if w.file == nil {
			return len(p), nil
		}
	}
	if w.written+int64(len(p)) > w.maxBytes {
		w.rotate()
	}
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *rotatingWriter) rotate() {
	w.file.Close()
	for i := w.maxFiles - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", w.path, i)
		dst := fmt.Sprintf("%s.%d", w.path, i+1)
		if i+1 > w.maxFiles {
			os.Remove(src)
			continue
		}
		os.Rename(src, dst)
	}
	os.Rename(w.path, fmt.Sprintf("%s.1", w.path))
	w.written = 0
	w.openCurrent()
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
