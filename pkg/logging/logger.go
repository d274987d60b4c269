package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"downshot/pkg/config"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Init initializes the logging system based on configuration. Warnings and
// errors are also copied into journal when it is non-nil.
// It returns a cleanup function to close log files.
func Init(cfg *config.LogConfig, journal *Journal) (func(), error) {
	// Keep the previous run's logs as .old
	rotatePaths(cfg.Server.Path, cfg.Requests.Path)

	var closers []io.Closer

	// 1. Server Logger (Stdout + File + Journal)
	serverHandler, file1, err := setupHandler(cfg.Server.Path, cfg.Server.Level, os.Stdout, journal)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	closers = append(closers, file1)
	slog.SetDefault(slog.New(serverHandler))

	// 2. Requests Logger (File Only)
	requestHandler, file2, err := setupHandler(cfg.Requests.Path, cfg.Requests.Level, nil, nil)
	if err != nil {
		file1.Close()
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}
	closers = append(closers, file2)
	RequestLogger = slog.New(requestHandler)

	return func() {
		for _, c := range closers {
			c.Close()
		}
	}, nil
}

// ParseLevel maps a config level name to a slog level, defaulting to INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupHandler(path, levelStr string, console io.Writer, journal *Journal) (handler slog.Handler, file *os.File, err error) {
	level := ParseLevel(levelStr)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}

	// Append mode; rotation happens in Init.
	file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	fileHandler := slog.NewTextHandler(file, opts)

	handlers := []slog.Handler{fileHandler}
	if console != nil {
		// Console never goes below INFO.
		handlers = append(handlers, slog.NewTextHandler(console, &slog.HandlerOptions{
			Level: max(level, slog.LevelInfo),
		}))
	}
	if journal != nil {
		handlers = append(handlers, slog.NewTextHandler(journal, &slog.HandlerOptions{
			Level:       slog.LevelWarn,
			ReplaceAttr: dropTime,
		}))
	}
	if len(handlers) == 1 {
		return fileHandler, file, nil
	}
	return &multiHandler{handlers: handlers}, file, nil
}

// dropTime strips the timestamp; journal entries carry their own.
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// rotatePaths renames existing log files to .old so each run starts fresh
// while keeping the previous run.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			oldPath := p + ".old"
			_ = os.Remove(oldPath)
			_ = os.Rename(p, oldPath)
		}
	}
}
