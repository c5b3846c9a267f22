package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	var lines []map[string]interface{}
	for _, raw := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("log line is not json: %q", raw)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestReleaseWritesJSONToRollingFile(t *testing.T) {
	dir := t.TempDir()
	log := New("release", Options{Dir: dir, Filename: "settlement.log"})
	log.Info("order_created", zap.String("order_number", "ORD000001"))
	log.Debug("order_debug_detail")
	_ = log.Sync()

	lines := readLines(t, filepath.Join(dir, "settlement.log"))
	if len(lines) != 1 {
		t.Fatalf("info level should drop debug lines, got %d lines", len(lines))
	}
	if lines[0]["event"] != "order_created" || lines[0]["order_number"] != "ORD000001" {
		t.Fatalf("unexpected log line: %+v", lines[0])
	}
	if lines[0]["service"] != serviceName {
		t.Fatalf("service field missing: %+v", lines[0])
	}
}

func TestConfiguredLevelOverridesMode(t *testing.T) {
	dir := t.TempDir()
	log := New("release", Options{Dir: dir, Level: "warn"})
	log.Info("dispatch_started")
	log.Warn("dispatch_partial_failure")
	_ = log.Sync()

	lines := readLines(t, filepath.Join(dir, "app.log"))
	if len(lines) != 1 || lines[0]["event"] != "dispatch_partial_failure" {
		t.Fatalf("warn level should keep only warnings: %+v", lines)
	}
}

func TestDebugModeDoesNotCreateFile(t *testing.T) {
	dir := t.TempDir()
	log := New("debug", Options{Dir: dir, Filename: "debug.log"})
	log.Info("debug_log_test")
	_ = log.Sync()

	if _, err := os.Stat(filepath.Join(dir, "debug.log")); !os.IsNotExist(err) {
		t.Fatalf("debug mode should not create log file")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "  req-1 ")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("unexpected request id: %q", got)
	}
	if got := RequestIDFromContext(ContextWithRequestID(context.Background(), "")); got != "" {
		t.Fatalf("blank request id should not be stored, got %q", got)
	}
	if got := RequestIDFromContext(nil); got != "" {
		t.Fatalf("nil context should yield empty id, got %q", got)
	}
	if For(ctx, "order_number", "ORD000001") == nil {
		t.Fatalf("expected scoped logger")
	}
}
