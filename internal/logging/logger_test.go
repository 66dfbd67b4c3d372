// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// =====================================================
// Logger Creation and Initialization Tests
// =====================================================

// TestInit verifies logger initialization.
func TestInit(t *testing.T) {
	var buf bytes.Buffer
	global = nil
	once = *new(sync.Once)
	Init(&buf, LevelInfo)

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil after Init()")
	}

	if logger.out != &buf {
		t.Error("Init() did not set output writer correctly")
	}

	if logger.minLevel != LevelInfo {
		t.Errorf("minLevel = %v, want LevelInfo", logger.minLevel)
	}
}

// TestInit_idempotent verifies Init is idempotent.
func TestInit_idempotent(t *testing.T) {
	// Reset global logger for this test
	global = nil
	once = *new(sync.Once)

	var buf1 bytes.Buffer
	Init(&buf1, LevelInfo)

	firstLogger := Get()

	// Second init with different parameters should be ignored
	var buf2 bytes.Buffer
	Init(&buf2, LevelDebug)

	logger := Get()
	if logger != firstLogger {
		t.Error("Second Init() should be ignored, different logger returned")
	}

	if logger.out != &buf1 {
		t.Error("Second Init() should be ignored, output writer changed")
	}
}

// TestGet_default verifies default logger creation.
func TestGet_default(t *testing.T) {
	global = nil
	once = *new(sync.Once)

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil without Init()")
	}

	if logger.out != os.Stdout {
		t.Error("Get() should default to os.Stdout")
	}

	if logger.minLevel != LevelInfo {
		t.Errorf("minLevel = %v, want LevelInfo", logger.minLevel)
	}
}

// =====================================================
// Log Level Tests
// =====================================================

// TestParseLevel verifies level parsing from configuration strings.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" error ", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// TestLogLevel_shouldLog verifies log level filtering.
func TestLogLevel_shouldLog(t *testing.T) {
	tests := []struct {
		name     string
		minLevel LogLevel
		logLevel LogLevel
		expected bool
	}{
		{"debug logs at debug", LevelDebug, LevelDebug, true},
		{"debug logs at info", LevelInfo, LevelDebug, false},
		{"info logs at info", LevelInfo, LevelInfo, true},
		{"info logs at warn", LevelWarn, LevelInfo, false},
		{"warn logs at error", LevelError, LevelWarn, false},
		{"error logs at error", LevelError, LevelError, true},
		{"error logs at debug", LevelDebug, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &Logger{minLevel: tt.minLevel}
			result := logger.shouldLog(tt.logLevel)
			if result != tt.expected {
				t.Errorf("shouldLog(%v) at minLevel %v = %v, want %v",
					tt.logLevel, tt.minLevel, result, tt.expected)
			}
		})
	}
}

// =====================================================
// Logging Tests
// =====================================================

// TestLogger_Debug verifies debug logging.
func TestLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelDebug}

	logger.Debug("test message", map[string]interface{}{"key": "value"})

	output := buf.String()
	if output == "" {
		t.Error("Debug() produced no output")
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.Level != "DEBUG" {
		t.Errorf("Level = %q, want 'DEBUG'", entry.Level)
	}

	if entry.Message != "test message" {
		t.Errorf("Message = %q, want 'test message'", entry.Message)
	}

	if entry.Context["key"] != "value" {
		t.Errorf("Context['key'] = %v, want 'value'", entry.Context["key"])
	}
}

// TestLogger_Error verifies error logging.
func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelInfo}

	testErr := io.ErrUnexpectedEOF
	logger.Error("error occurred", testErr)

	output := strings.TrimSpace(buf.String())
	var entry LogEntry
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.Level != "ERROR" {
		t.Errorf("Level = %q, want 'ERROR'", entry.Level)
	}

	if !strings.Contains(entry.Error, testErr.Error()) {
		t.Errorf("Error field should contain error details, got: %s", entry.Error)
	}
}

// TestLogger_ErrorWithCode verifies error logging with code.
func TestLogger_ErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelInfo}

	testErr := io.ErrUnexpectedEOF
	logger.ErrorWithCode("persist failed", "HISTORY_PERSIST_FAILED", testErr, map[string]interface{}{"key": "@scanHistory_guest"})

	output := strings.TrimSpace(buf.String())
	var entry LogEntry
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.Context["error_code"] != "HISTORY_PERSIST_FAILED" {
		t.Errorf("error_code = %v, want 'HISTORY_PERSIST_FAILED'", entry.Context["error_code"])
	}

	if entry.Context["key"] != "@scanHistory_guest" {
		t.Errorf("key = %v, want '@scanHistory_guest'", entry.Context["key"])
	}
}

// TestLogger_ErrorWithCode_doesNotMutateCallerMap verifies the caller's context
// map is left untouched.
func TestLogger_ErrorWithCode_doesNotMutateCallerMap(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelInfo}

	callerCtx := map[string]interface{}{"field": "email"}
	logger.ErrorWithCode("error occurred", "ERR001", io.ErrUnexpectedEOF, callerCtx)

	if _, ok := callerCtx["error_code"]; ok {
		t.Error("caller context map should not gain an error_code entry")
	}
}

// TestLogger_WithComponent verifies component stamping.
func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := (&Logger{out: &buf, minLevel: LevelInfo}).WithComponent("history")

	logger.Info("loaded")

	output := strings.TrimSpace(buf.String())
	var entry LogEntry
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.Component != "history" {
		t.Errorf("Component = %q, want 'history'", entry.Component)
	}
}

// =====================================================
// Log Level Filtering Tests
// =====================================================

// TestLogger_filtering verifies minimum level filtering.
func TestLogger_filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelWarn}

	// Below minimum level
	logger.Debug("debug message")
	logger.Info("info message")

	logger.Warn("warn message")
	logger.Error("error message", nil)

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")

	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}

	var entry LogEntry
	json.Unmarshal([]byte(lines[0]), &entry)
	if entry.Level != "WARN" {
		t.Errorf("First log level = %q, want 'WARN'", entry.Level)
	}

	json.Unmarshal([]byte(lines[1]), &entry)
	if entry.Level != "ERROR" {
		t.Errorf("Second log level = %q, want 'ERROR'", entry.Level)
	}
}

// =====================================================
// Context Handling Tests
// =====================================================

// TestMergeContext_single verifies single context handling.
func TestMergeContext_single(t *testing.T) {
	ctx := mergeContext(map[string]interface{}{"key1": "value1"})

	if ctx == nil {
		t.Fatal("mergeContext() returned nil for single context")
	}

	if ctx["key1"] != "value1" {
		t.Errorf("ctx['key1'] = %v, want 'value1'", ctx["key1"])
	}
}

// TestMergeContext_multiple verifies context merging.
func TestMergeContext_multiple(t *testing.T) {
	ctx := mergeContext(
		map[string]interface{}{"key1": "value1"},
		map[string]interface{}{"key2": "value2"},
		map[string]interface{}{"key1": "overridden"},
	)

	if ctx["key1"] != "overridden" {
		t.Errorf("ctx['key1'] = %v, want 'overridden'", ctx["key1"])
	}

	if ctx["key2"] != "value2" {
		t.Errorf("ctx['key2'] = %v, want 'value2'", ctx["key2"])
	}
}

// TestMergeContext_none verifies no context returns nil.
func TestMergeContext_none(t *testing.T) {
	if ctx := mergeContext(); ctx != nil {
		t.Errorf("mergeContext() with no arguments should return nil, got %v", ctx)
	}
}

// =====================================================
// JSON Output Tests
// =====================================================

// TestLogger_jsonFormat verifies JSON output format.
func TestLogger_jsonFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelInfo}

	logger.Info("test message", map[string]interface{}{
		"string": "value",
		"number": 42,
		"bool":   true,
	})

	output := strings.TrimSpace(buf.String())

	var entry LogEntry
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v\nOutput: %s", err, output)
	}

	if entry.Timestamp == "" {
		t.Error("Timestamp should not be empty")
	}

	if _, err := time.Parse(time.RFC3339, entry.Timestamp); err != nil {
		t.Errorf("Timestamp is not valid RFC3339: %v", err)
	}

	if entry.Context["string"] != "value" {
		t.Errorf("Context['string'] = %v, want 'value'", entry.Context["string"])
	}

	if entry.Context["number"] != float64(42) {
		t.Errorf("Context['number'] = %v, want 42", entry.Context["number"])
	}

	if entry.Context["bool"] != true {
		t.Errorf("Context['bool'] = %v, want true", entry.Context["bool"])
	}
}

// =====================================================
// Thread Safety Tests
// =====================================================

// TestLogger_concurrentLogging verifies concurrent logging is safe.
func TestLogger_concurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelInfo}

	var wg sync.WaitGroup
	iterations := 100

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				logger.Info("message", map[string]interface{}{"goroutine": id})
			}
		}(i)
	}

	wg.Wait()

	output := strings.TrimSpace(buf.String())
	lines := strings.Split(output, "\n")

	expectedLines := 10 * iterations
	if len(lines) != expectedLines {
		t.Errorf("Expected %d log lines, got %d", expectedLines, len(lines))
	}

	for i, line := range lines {
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("Line %d is not valid JSON: %v", i, err)
		}
	}
}

// =====================================================
// Edge Cases Tests
// =====================================================

// TestLogger_nilContext verifies nil context is handled.
func TestLogger_nilContext(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelInfo}

	logger.Info("message")

	var entry LogEntry
	output := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.Context != nil {
		t.Error("Context should be omitted when nil")
	}
}

// TestLogger_emptyMessage verifies empty message is logged.
func TestLogger_emptyMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{out: &buf, minLevel: LevelInfo}

	logger.Info("")

	output := strings.TrimSpace(buf.String())
	if output == "" {
		t.Error("Empty message should still be logged")
	}
}

// TestLogger_writeError verifies write errors are handled gracefully.
func TestLogger_writeError(t *testing.T) {
	failWriter := &failingWriter{}
	logger := &Logger{out: failWriter, minLevel: LevelInfo}

	// Should not panic, just fail silently
	logger.Info("test message")
}

// failingWriter is a test helper that always fails to write.
type failingWriter struct{}

func (w *failingWriter) Write(p []byte) (n int, err error) {
	return 0, io.ErrClosedPipe
}
