package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ucifleet/ucifleet/pkg/uci"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "leaf1-ny", "fleet.apply")

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Device != "leaf1-ny" {
		t.Errorf("Device = %q, want %q", event.Device, "leaf1-ny")
	}
	if event.Operation != "fleet.apply" {
		t.Errorf("Operation = %q, want %q", event.Operation, "fleet.apply")
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEvent_Chaining(t *testing.T) {
	cmds := []uci.Command{uci.NewSet("network.lan.proto", "static")}

	event := NewEvent("alice", "leaf1-ny", "fleet.apply").
		WithCommands(cmds).
		WithSuccess().
		WithDuration(time.Second).
		WithDryRun(false)

	if len(event.Commands) != 1 {
		t.Errorf("Expected 1 command, got %d", len(event.Commands))
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
	if event.DryRun {
		t.Error("DryRun should be false")
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("alice", "leaf1-ny", "fleet.apply").
		WithError(errors.New("test error"))

	if event.Success {
		t.Error("Success should be false")
	}
	if event.Error != "test error" {
		t.Errorf("Error = %q", event.Error)
	}

	event2 := NewEvent("alice", "leaf1-ny", "test").WithError(nil)
	if event2.Success {
		t.Error("Success should be false even with nil error")
	}
	if event2.Error != "" {
		t.Errorf("Error should be empty with nil error, got %q", event2.Error)
	}
}

func TestFileLogger_Basic(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	event := NewEvent("alice", "leaf1-ny", "fleet.apply").WithSuccess()
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].User != "alice" || events[0].Device != "leaf1-ny" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	events := []*Event{
		NewEvent("alice", "leaf1-ny", "fleet.apply").WithSuccess(),
		NewEvent("bob", "leaf1-ny", "preview").WithSuccess(),
		NewEvent("alice", "spine1-ny", "fleet.apply").WithError(errors.New("failed")),
		NewEvent("charlie", "leaf2-ny", "fleet.apply").WithSuccess(),
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	t.Run("filter by user", func(t *testing.T) {
		results, _ := logger.Query(Filter{User: "alice"})
		if len(results) != 2 {
			t.Errorf("Expected 2 events for alice, got %d", len(results))
		}
	})
	t.Run("filter by device", func(t *testing.T) {
		results, _ := logger.Query(Filter{Device: "leaf1-ny"})
		if len(results) != 2 {
			t.Errorf("Expected 2 events for leaf1-ny, got %d", len(results))
		}
	})
	t.Run("filter by operation", func(t *testing.T) {
		results, _ := logger.Query(Filter{Operation: "fleet.apply"})
		if len(results) != 3 {
			t.Errorf("Expected 3 fleet.apply events, got %d", len(results))
		}
	})
	t.Run("filter success only", func(t *testing.T) {
		results, _ := logger.Query(Filter{SuccessOnly: true})
		if len(results) != 3 {
			t.Errorf("Expected 3 successful events, got %d", len(results))
		}
	})
	t.Run("filter failure only", func(t *testing.T) {
		results, _ := logger.Query(Filter{FailureOnly: true})
		if len(results) != 1 {
			t.Errorf("Expected 1 failed event, got %d", len(results))
		}
	})
	t.Run("filter with limit", func(t *testing.T) {
		results, _ := logger.Query(Filter{Limit: 2})
		if len(results) != 2 {
			t.Errorf("Expected 2 events with limit, got %d", len(results))
		}
	})
	t.Run("filter with offset", func(t *testing.T) {
		results, _ := logger.Query(Filter{Offset: 2})
		if len(results) != 2 {
			t.Errorf("Expected 2 events with offset, got %d", len(results))
		}
	})
}

func TestFileLogger_QueryTimeFilter(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Log(NewEvent("alice", "leaf1-ny", "test").WithSuccess())

	results, _ := logger.Query(Filter{
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	})
	if len(results) != 1 {
		t.Errorf("Expected 1 event in time range, got %d", len(results))
	}

	results, _ = logger.Query(Filter{StartTime: time.Now().Add(time.Hour)})
	if len(results) != 0 {
		t.Errorf("Expected 0 events outside time range, got %d", len(results))
	}
}

func TestFileLogger_NonExistentFile(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "nonexistent", "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger should create directories: %v", err)
	}
	defer logger.Close()
}

func TestFileLogger_QueryNonExistent(t *testing.T) {
	tmpDir := t.TempDir()
	logger, _ := NewFileLogger(filepath.Join(tmpDir, "other.log"), RotationConfig{})
	defer logger.Close()

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Errorf("Query on non-existent should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 events, got %d", len(results))
	}
}

func TestDefaultLogger(t *testing.T) {
	SetDefaultLogger(nil)

	if err := Log(NewEvent("test", "test", "test")); err != nil {
		t.Errorf("Log with nil default should not error: %v", err)
	}
	results, err := Query(Filter{})
	if err != nil {
		t.Errorf("Query with nil default should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}

	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	SetDefaultLogger(logger)
	if err := Log(NewEvent("alice", "leaf1", "test").WithSuccess()); err != nil {
		t.Errorf("Log failed: %v", err)
	}
	results, err = Query(Filter{})
	if err != nil {
		t.Errorf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}

	SetDefaultLogger(nil)
}

func TestEventTypes(t *testing.T) {
	types := []EventType{
		EventTypeConnect,
		EventTypeDisconnect,
		EventTypePreview,
		EventTypeApply,
		EventTypeRollback,
		EventTypeCommit,
	}
	for _, et := range types {
		if et == "" {
			t.Error("EventType should not be empty")
		}
	}
}

func TestFileLogger_LogRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{MaxSize: 100, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 5; i++ {
		event := NewEvent("alice", "leaf1-ny", "fleet.apply").WithSuccess()
		if err := logger.Log(event); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(tmpDir, "audit.log.*"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("Expected rotation to create backup files")
	}
}

func TestFileLogger_RotationWithCleanup(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{MaxSize: 50, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 10; i++ {
		if err := logger.Log(NewEvent("alice", "leaf1-ny", "test")); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(tmpDir, "audit.log.*"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) > 2 {
		t.Errorf("Expected at most 2 backup files, got %d", len(matches))
	}
}

func TestFileLogger_NewFileLoggerOpenError(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")
	if err := os.Mkdir(logPath, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	_, err := NewFileLogger(logPath, RotationConfig{})
	if err == nil {
		t.Error("NewFileLogger should fail when log path is a directory")
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	content := `{"user":"alice","device":"leaf1","operation":"test","success":true}
invalid json line
{"user":"bob","device":"leaf2","operation":"test","success":true}
`
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}

	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events (skipping malformed), got %d", len(results))
	}
}

func TestFileLogger_CloseNilFile(t *testing.T) {
	logger := &FileLogger{path: "/tmp/test.log", file: nil}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() with nil file should not error: %v", err)
	}
}
