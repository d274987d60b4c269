package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"downshot/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// A previous run's log gets rotated.
	if err := os.WriteFile(serverLog, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server: config.LogSettings{
			Path:  serverLog,
			Level: "DEBUG",
		},
		Requests: config.LogSettings{
			Path:  requestLog,
			Level: "INFO",
		},
	}

	prev := slog.Default()
	defer slog.SetDefault(prev)

	journal := NewJournal(10)
	cleanup, err := Init(cfg, journal)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}
	old, err := os.ReadFile(serverLog + ".old")
	if err != nil || string(old) != "previous run\n" {
		t.Errorf("expected rotated log, got %q (%v)", old, err)
	}
	if RequestLogger == nil {
		t.Error("RequestLogger was not initialized")
	}

	slog.Info("routine line")
	slog.Warn("vehicle link lost", "component", "vehicle")

	lines := journal.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected only the warning in the journal, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0].Message, "vehicle link lost") || strings.Contains(lines[0].Message, "time=") {
		t.Errorf("unexpected journal line: %q", lines[0].Message)
	}

	data, err := os.ReadFile(serverLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "routine line") {
		t.Error("server log missing INFO line")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
