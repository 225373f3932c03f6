package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"barscan/internal/config"
	"barscan/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("scanner ready")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "barscan.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "scanner ready") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndSession(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
		SessionID:   "0123456789abcdef",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "scan").Info("symbols found", logging.Int("count", 2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO scan [01234567]: symbols found") {
		t.Fatalf("unexpected console header: %q", line)
	}
	if !strings.Contains(line, "count=2") {
		t.Fatalf("expected count attribute: %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerUsesStandardKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
		SessionID:   "run-1",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.With(logging.String(logging.FieldSessionID, "scan-9")).Warn("frame read failed")
	logger.Info("daemon started")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), content)
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode second line: %v", err)
	}
	if first["level"] != "warn" || first["msg"] != "frame read failed" {
		t.Fatalf("unexpected first record: %v", first)
	}
	if _, ok := first["ts"]; !ok {
		t.Fatalf("expected ts key: %v", first)
	}
	if first[logging.FieldSessionID] != "scan-9" {
		t.Fatalf("expected explicit session id to win, got %v", first[logging.FieldSessionID])
	}
	if second[logging.FieldSessionID] != "run-1" {
		t.Fatalf("expected run session id, got %v", second[logging.FieldSessionID])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "device lock busy", "device_lock_busy",
		logging.String(logging.FieldImpact, "scanning not started"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldEventType] != "device_lock_busy" {
		t.Fatalf("expected event type, got %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %v", record)
	}
	if record[logging.FieldImpact] != "scanning not started" {
		t.Fatalf("expected caller impact to be kept, got %v", record[logging.FieldImpact])
	}
}

func TestContextFields(t *testing.T) {
	ctx := logging.WithSessionID(context.Background(), "abc")
	ctx = logging.WithRequestID(ctx, "req-1")
	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", fields)
	}
	if id, ok := logging.SessionIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("unexpected session id %q", id)
	}
	if got := logging.ContextFields(context.Background()); len(got) != 0 {
		t.Fatalf("expected no fields for empty context, got %v", got)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "barscan-old.log")
	keepPath := filepath.Join(dir, "barscan-current.log")
	otherPath := filepath.Join(dir, "notes.txt")
	for _, p := range []string{oldPath, keepPath, otherPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{oldPath, keepPath, otherPath} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5,
		logging.RetentionTarget{Dir: dir, Pattern: "barscan-*.log", Exclude: []string{keepPath}})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, p := range []string{keepPath, otherPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
}

func TestScanAttrsUseStandardKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "scan.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "decode failed", "decode_failed",
		logging.Device("/dev/video2"),
		logging.ScanSession("sess-1"),
		logging.FrameSeq(42),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldDevice] != "/dev/video2" || record[logging.FieldScanSession] != "sess-1" {
		t.Fatalf("expected device and scan session keys, got %v", record)
	}
	if record[logging.FieldFrameSeq] != float64(42) {
		t.Fatalf("expected frame_seq 42, got %v", record[logging.FieldFrameSeq])
	}
	if hint, _ := record[logging.FieldErrorHint].(string); !strings.Contains(hint, "barscan logs") {
		t.Fatalf("expected default hint to point at the log, got %q", hint)
	}
	if record[logging.FieldImpact] != "scanning continues" {
		t.Fatalf("expected default impact, got %v", record[logging.FieldImpact])
	}
}
