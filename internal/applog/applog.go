package applog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB = 5
	maxBackups    = 2
	maxValueLen   = 200
	truncSuffix   = "…"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
	closer io.Closer
)

// Init opens the rotated log file in dir. Call once at startup.
// Safe to skip: all log calls are no-ops until it runs.
func Init(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "tabnav.log"),
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxBackups,
	}
	SetOutput(w)

	mu.Lock()
	closer = w
	mu.Unlock()
	return nil
}

// SetOutput routes log lines to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindString {
				a.Value = slog.StringValue(clip(a.Value.String()))
			}
			return a
		},
	})
	mu.Lock()
	logger = slog.New(h)
	mu.Unlock()
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
		closer = nil
	}
	logger = nil
}

// Info logs a structured event line.
//
//	applog.Info("ws.connected", "remote", addr)
//	applog.Info("popup.rendered", "groups", 5, "tabs", 42)
func Info(event string, kv ...any) {
	if l := current(); l != nil {
		l.Info(event, kv...)
	}
}

// Error logs an event with an error.
//
//	applog.Error("host.remove", err, "tab", 12)
func Error(event string, err error, kv ...any) {
	if l := current(); l != nil {
		l.Error(event, append([]any{"err", errString(err)}, kv...)...)
	}
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func clip(s string) string {
	if len(s) > maxValueLen {
		return s[:maxValueLen] + truncSuffix
	}
	return s
}
