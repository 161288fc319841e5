package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loudscan/internal/config"
	"loudscan/internal/logging"
)

func newFileLogger(t *testing.T, format, level string) (*slog.Logger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:           format,
		Level:            level,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, logPath
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}

	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "loudscan.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected log file to contain message, got %q", content)
	}
}

func TestConsoleHandlerLiftsComponent(t *testing.T) {
	logger, logPath := newFileLogger(t, "console", "info")

	component := logging.NewComponentLogger(logger, "measure")
	component.Info("file measured", logging.String(logging.FieldKey, "track01"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO measure: file measured") {
		t.Fatalf("expected component prefix in %q", line)
	}
	if !strings.Contains(line, "key=track01") {
		t.Fatalf("expected key attribute in %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not appear as attribute in %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	logger, logPath := newFileLogger(t, "console", "info")

	logger.Info("snapshot failed", logging.String("reason", "disk full"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `reason="disk full"`) {
		t.Fatalf("expected quoted value in %q", content)
	}
}

func TestConsoleHandlerOmitsCallerForInfo(t *testing.T) {
	logger, logPath := newFileLogger(t, "console", "info")

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestJSONHandlerUsesStableKeys(t *testing.T) {
	logger, logPath := newFileLogger(t, "json", "info")

	logger.Warn("snapshot skipped", logging.Int("index", 7))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("unmarshal log line %q: %v", content, err)
	}
	if payload["msg"] != "snapshot skipped" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["level"] != "warn" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatal("expected ts key in JSON output")
	}
	if payload["index"] != float64(7) {
		t.Fatalf("unexpected index attr: %v", payload["index"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, logPath := newFileLogger(t, "console", "warn")

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	logger.Info("hidden")
	logger.Warn("visible")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") {
		t.Fatalf("info line should have been filtered, got %q", content)
	}
	if !strings.Contains(string(content), "visible") {
		t.Fatalf("warn line missing from %q", content)
	}
}

func TestNewNopDiscardsEverything(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("no-op logger should report disabled for all levels")
	}
	logger.Error("goes nowhere", logging.Error(os.ErrNotExist))
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "cache")
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("safe on nil base")
}
