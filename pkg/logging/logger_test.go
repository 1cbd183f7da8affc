package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// setupTestDir points the logger at a temporary directory and resets global state
func setupTestDir(t *testing.T) (cleanup func()) {
	t.Helper()

	tempDir := t.TempDir()

	origLogDir := logDir
	origInitErr := initErr
	origSessionID := sessionID

	logDir = tempDir
	initErr = nil
	initOnce = sync.Once{}
	sessionID = ""
	sessionIDOnce = sync.Once{}

	return func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = sync.Once{}
		sessionID = origSessionID
		sessionIDOnce = sync.Once{}
	}
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Log line is not JSON: %q", line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.SessionID() == "" {
		t.Error("Expected non-empty session ID")
	}
	if logger.LogPath() == "" {
		t.Error("Expected non-empty log path")
	}
	if _, err := os.Stat(logger.LogPath()); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.LogPath())
	}
}

func TestComponentLogging(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Component("channel").Info("connected", zap.String("url", "ws://localhost:8080/ws"))
	logger.Component("dispatch").Debug("dispatching", zap.String("action", "CLICK"))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readEntries(t, logger.LogPath())
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	if entries[0]["component"] != "channel" || entries[0]["msg"] != "connected" {
		t.Errorf("Unexpected first entry: %v", entries[0])
	}
	if entries[1]["component"] != "dispatch" || entries[1]["level"] != "debug" {
		t.Errorf("Unexpected second entry: %v", entries[1])
	}
	for _, e := range entries {
		if e["session_id"] != logger.SessionID() {
			t.Errorf("Entry missing session id: %v", e)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("warn")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	log := logger.Component("test")
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	_ = logger.Close()

	entries := readEntries(t, logger.LogPath())
	if len(entries) != 1 || entries[0]["msg"] != "shown" {
		t.Errorf("Expected only the warning, got %v", entries)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"debug", "debug"},
		{"warn", "warn"},
		{"error", "error"},
		{"info", "info"},
		{"verbose", "info"},
		{"", "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name).String(); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestGetSessionID(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	id1 := GetSessionID()
	id2 := GetSessionID()

	if id1 != id2 {
		t.Errorf("Expected consistent session ID, got %q and %q", id1, id2)
	}
	if id1 == "" {
		t.Error("Expected non-empty session ID")
	}
}

func TestGetLogDirectory(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	dir, err := GetLogDirectory()
	if err != nil {
		t.Fatalf("Failed to get log directory: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Log directory does not exist or is not a directory: %s", dir)
	}
}

func TestLoggerClose(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("info")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestLogPathFormat(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("info")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	fileName := filepath.Base(logger.LogPath())
	if !strings.HasSuffix(fileName, "-tabwire.log") {
		t.Errorf("Expected log file to end with '-tabwire.log', got %q", fileName)
	}

	sessionPart := strings.TrimSuffix(fileName, "-tabwire.log")
	if sessionPart != logger.SessionID() {
		t.Errorf("Expected file name to start with session id %q, got %q", logger.SessionID(), sessionPart)
	}
}

func TestFallbackLogger(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	// A regular file where the directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	logDir = filepath.Join(blocker, "logs")

	logger, err := NewLogger("info")
	if err == nil {
		t.Fatal("Expected an error in fallback mode")
	}
	if logger == nil {
		t.Fatal("Expected a usable fallback logger")
	}
	if logger.LogPath() != "" {
		t.Errorf("Fallback logger should have no log path, got %q", logger.LogPath())
	}
	logger.Component("test").Info("still works")
	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("Expected a no-op logger")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("Expected the given logger back")
	}
}
