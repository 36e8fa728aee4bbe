package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in log directory", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelDebug)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		logPath := filepath.Join(dir, "debug.log")
		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("writes to stderr when logDir is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if logger.file != nil {
			t.Error("expected file to be nil when logDir is empty")
		}
	})

	t.Run("defaults to INFO level for invalid level string", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, "invalid")
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		// Logger should have been created successfully
		if logger.logger == nil {
			t.Error("expected logger to be created")
		}
	})
}

func TestLogLevels(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	// Log at all levels
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	logger.Close()

	// Read and verify log file
	logPath := filepath.Join(dir, "debug.log")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}

	// Verify each log line is valid JSON with expected fields
	expectedLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	expectedMsgs := []string{"debug message", "info message", "warn message", "error message"}

	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
			continue
		}

		if entry["level"] != expectedLevels[i] {
			t.Errorf("line %d: expected level %s, got %v", i, expectedLevels[i], entry["level"])
		}
		if entry["msg"] != expectedMsgs[i] {
			t.Errorf("line %d: expected msg %s, got %v", i, expectedMsgs[i], entry["msg"])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: expected key=value, got key=%v", i, entry["key"])
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	// Create logger at WARN level - should filter out DEBUG and INFO
	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	logger.Close()

	logPath := filepath.Join(dir, "debug.log")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")

	// Should only have WARN and ERROR
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines (WARN and ERROR only), got %d: %s", len(lines), string(content))
	}
}

func TestContextPropagation(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	// Create child logger with context
	childLogger := logger.WithComponent("registry").WithAgent("builder-core").WithTask("crates/core")

	childLogger.Info("test message", "extra", "data")

	logger.Close()

	logPath := filepath.Join(dir, "debug.log")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry["component"] != "registry" {
		t.Errorf("expected component=registry, got %v", entry["component"])
	}
	if entry["agent_id"] != "builder-core" {
		t.Errorf("expected agent_id=builder-core, got %v", entry["agent_id"])
	}
	if entry["task"] != "crates/core" {
		t.Errorf("expected task=crates/core, got %v", entry["task"])
	}
	if entry["extra"] != "data" {
		t.Errorf("expected extra=data, got %v", entry["extra"])
	}
}

func TestChildLoggerDoesNotMutateParent(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithAgent("builder-core")

	// Parent logs without the agent attribute, child with it
	logger.Info("parent message")
	child.Info("child message")

	logger.Close()

	logPath := filepath.Join(dir, "debug.log")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var parentEntry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &parentEntry); err != nil {
		t.Fatalf("failed to parse parent entry: %v", err)
	}
	if _, ok := parentEntry["agent_id"]; ok {
		t.Error("parent logger has agent_id attribute, child leaked into parent")
	}

	var childEntry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &childEntry); err != nil {
		t.Fatalf("failed to parse child entry: %v", err)
	}
	if childEntry["agent_id"] != "builder-core" {
		t.Errorf("expected child agent_id=builder-core, got %v", childEntry["agent_id"])
	}
}

func TestWith(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.With("branch", "agent/x", "attempt", 2)
	child.Info("spawning")

	logger.Close()

	logPath := filepath.Join(dir, "debug.log")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry["branch"] != "agent/x" {
		t.Errorf("expected branch=agent/x, got %v", entry["branch"])
	}
	// JSON numbers decode as float64
	if entry["attempt"] != float64(2) {
		t.Errorf("expected attempt=2, got %v", entry["attempt"])
	}
}

func TestWithEmptyArgs(t *testing.T) {
	logger := NopLogger()
	if got := logger.With(); got != logger {
		t.Error("With() with no args should return the same logger")
	}
}

func TestClose(t *testing.T) {
	t.Run("close with file", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		if err := logger.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Second close is a no-op
		if err := logger.Close(); err != nil {
			t.Errorf("second Close failed: %v", err)
		}
	})

	t.Run("close without file", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		if err := logger.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	// Should not panic
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	logger.WithAgent("x").Info("child")

	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"Info", LevelInfo},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	if len(levels) != 4 {
		t.Fatalf("expected 4 levels, got %d", len(levels))
	}
}
