package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newQuiet(level LogLevel, dir string, size int) *Logger {
	l := New(level, dir, size)
	l.SetConsoleOutput(false)
	return l
}

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	logger := newQuiet(INFO, "", 100)
	defer logger.Close()

	logger.Error("error message")
	logger.Warn("warn message")
	logger.Info("info message")
	logger.Debug("debug message") // Should not appear
	logger.Trace("trace message") // Should not appear

	buffer := logger.GetBuffer()
	if len(buffer) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(buffer))
	}
	if buffer[0].Level != ERROR || buffer[0].Message != "error message" {
		t.Errorf("first entry should be ERROR, got %v", buffer[0])
	}
	if buffer[2].Level != INFO || buffer[2].Message != "info message" {
		t.Errorf("third entry should be INFO, got %v", buffer[2])
	}
}

func TestLoggerContext(t *testing.T) {
	t.Parallel()

	logger := newQuiet(INFO, "", 100)
	logger.Info("probe accepted", "host", "10.0.0.5", "attempts", 3)

	buffer := logger.GetBuffer()
	if len(buffer) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(buffer))
	}
	if buffer[0].Context["host"] != "10.0.0.5" {
		t.Errorf("expected host context, got %v", buffer[0].Context["host"])
	}
	if buffer[0].Context["attempts"] != 3 {
		t.Errorf("expected attempts=3, got %v", buffer[0].Context["attempts"])
	}
}

func TestLoggerSetLevel(t *testing.T) {
	t.Parallel()

	logger := newQuiet(INFO, "", 100)
	logger.Debug("debug1")
	if logger.Enabled(DEBUG) {
		t.Error("DEBUG should be disabled at INFO")
	}

	logger.SetLevel(DEBUG)
	logger.Debug("debug2")

	buffer := logger.GetBuffer()
	if len(buffer) != 1 || buffer[0].Message != "debug2" {
		t.Errorf("expected only debug2, got %v", buffer)
	}
}

func TestLoggerCircularBuffer(t *testing.T) {
	t.Parallel()

	logger := newQuiet(INFO, "", 5)
	for i := 0; i < 10; i++ {
		logger.Info("message", "num", i)
	}

	buffer := logger.GetBuffer()
	if len(buffer) != 5 {
		t.Fatalf("expected buffer size 5, got %d", len(buffer))
	}
	if buffer[0].Context["num"] != 5 {
		t.Errorf("expected oldest entry to be num=5, got %v", buffer[0].Context["num"])
	}
	if buffer[4].Context["num"] != 9 {
		t.Errorf("expected newest entry to be num=9, got %v", buffer[4].Context["num"])
	}
}

func TestLoggerConsoleWriter(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger := New(INFO, "", 10)
	logger.SetConsoleWriter(&out)
	logger.Warn("no document", "host", "printer-7")

	line := out.String()
	if !strings.Contains(line, "[WARN] no document host=printer-7") {
		t.Errorf("unexpected console line: %q", line)
	}
}

func TestLoggerFileOutput(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := newQuiet(INFO, tmpDir, 100)
	logger.Info("test message", "key", "value")
	logger.Close()

	content, err := os.ReadFile(filepath.Join(tmpDir, "pagecount.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "[INFO]") {
		t.Errorf("log file should contain [INFO], got: %s", contentStr)
	}
	if !strings.Contains(contentStr, "key=value") {
		t.Errorf("log file should contain 'key=value', got: %s", contentStr)
	}
}

func TestLoggerNoFileWhenDirEmpty(t *testing.T) {
	t.Parallel()

	logger := newQuiet(INFO, "", 10)
	logger.Info("memory only")
	if logger.currentFile != nil {
		t.Error("no log file should be opened without a log directory")
	}
}

func TestLoggerRotation(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := newQuiet(INFO, tmpDir, 100)

	logger.Info("first message")
	logger.mu.Lock()
	logger.rotate()
	logger.mu.Unlock()
	logger.Info("second message")
	logger.Close()

	rotated, err := filepath.Glob(filepath.Join(tmpDir, "pagecount_*.log"))
	if err != nil {
		t.Fatalf("failed to list log files: %v", err)
	}
	if len(rotated) != 1 {
		t.Errorf("expected 1 rotated file, got %v", rotated)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "pagecount.log")); err != nil {
		t.Errorf("expected a fresh current log file: %v", err)
	}
}

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"ERROR", ERROR},
		{"warn", WARN},
		{"INFO", INFO},
		{"debug", DEBUG},
		{"TRACE", TRACE},
		{"invalid", INFO},
	}

	for _, tt := range tests {
		if result := LevelFromString(tt.input); result != tt.expected {
			t.Errorf("LevelFromString(%q) = %v, expected %v", tt.input, result, tt.expected)
		}
	}
}

func TestLoggerConcurrency(t *testing.T) {
	t.Parallel()

	logger := newQuiet(INFO, "", 1000)
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 100; j++ {
				logger.Info("concurrent message", "goroutine", id, "iteration", j)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if got := len(logger.GetBuffer()); got != 1000 {
		t.Errorf("expected 1000 entries in buffer, got %d", got)
	}
}

func TestFormatLogEntrySortsContext(t *testing.T) {
	t.Parallel()

	entry := LogEntry{
		Timestamp: time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC),
		Level:     INFO,
		Message:   "test message",
		Context: map[string]interface{}{
			"zeta":  1,
			"alpha": "a",
		},
	}

	formatted := formatLogEntry(entry)
	want := "2025-11-01T12:00:00+00:00 [INFO] test message alpha=a zeta=1"
	if formatted != want {
		t.Errorf("formatLogEntry() = %q, want %q", formatted, want)
	}
}
