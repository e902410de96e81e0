// Package logging includes tests for the zap logger helpers.
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConsoleOnly(t *testing.T) {
	t.Parallel()

	logger, err := New("", false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("console logger ready")
}

func TestNewWritesLogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "job.log")
	logger, err := New(path, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("first event")
	logger.Info("second event")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %q", len(lines), string(data))
	}
	for _, line := range lines {
		if !strings.Contains(line, `"ts"`) || !strings.Contains(line, `"msg"`) {
			t.Errorf("log line missing structured fields: %s", line)
		}
	}
}

func TestNewQuietWithoutFileIsNop(t *testing.T) {
	t.Parallel()

	logger, err := New("", true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("dropped")
}
