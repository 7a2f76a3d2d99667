package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "imsmd.log")
	var console bytes.Buffer

	logger, err := New(Options{
		Path:    path,
		Account: "work",
		Backend: "loopback",
		Level:   zapcore.InfoLevel,
		Console: zapcore.AddSync(&console),
	})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("channel opened")
	_ = logger.Sync()

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("got %d log lines, want 1 (debug must be filtered)", len(entries))
	}
	entry := entries[0]
	if entry["msg"] != "channel opened" || entry["account"] != "work" || entry["backend"] != "loopback" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("entry has no ts field")
	}
	if !bytes.Contains(console.Bytes(), []byte("INFO")) || !bytes.Contains(console.Bytes(), []byte("channel opened")) {
		t.Errorf("console output = %q", console.String())
	}
}

func TestLoggerWithoutConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imsmd.log")
	logger, err := New(Options{Path: path, Account: "main", Level: zapcore.DebugLevel})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("roster pushed")
	_ = logger.Sync()

	if entries := readEntries(t, path); len(entries) != 1 || entries[0]["msg"] != "roster pushed" {
		t.Errorf("entries = %v", entries)
	}
}
