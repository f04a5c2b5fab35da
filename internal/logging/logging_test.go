package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFileName(t *testing.T) {
	day := time.Date(2024, 3, 9, 17, 0, 0, 0, time.UTC)
	if got := FileName(day); got != "dwhctl-2024-03-09.log" {
		t.Errorf("FileName = %q", got)
	}
}

func TestSetup_WritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, closeLog, err := Setup("warn", dir, &console)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("cluster already exists", "cluster", "test-cluster")
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.Contains(console.String(), "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(console.String(), "cluster=test-cluster") {
		t.Errorf("console output = %q", console.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "cluster already exists") {
		t.Errorf("log file = %q", string(data))
	}
}

func TestSetup_NoConsole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger, closeLog, err := Setup("info", dir, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer closeLog()
	logger.Info("ok")

	if _, err := os.Stat(filepath.Join(dir, FileName(time.Now()))); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
