package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photon/internal/config"
	"photon/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("run complete", logging.String(logging.FieldComponent, "optimizer"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "photon.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "optimizer: run complete") {
		t.Fatalf("expected component subject in log output, got %q", content)
	}
}

func TestNewFromConfigNil(t *testing.T) {
	logger, err := logging.NewFromConfig(nil)
	if err != nil {
		t.Fatalf("NewFromConfig(nil) returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func newFileLogger(t *testing.T, format, level string) (func() string, *logging.Options) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), format+"-"+level+".log")
	opts := &logging.Options{
		Format:           format,
		Level:            level,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	}
	read := func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
	return read, opts
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	read, opts := newFileLogger(t, "console", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")
	logger.Debug("hidden debug message")

	content := read()
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if strings.Contains(content, "hidden debug message") {
		t.Fatalf("debug message should be filtered at info level, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	read, opts := newFileLogger(t, "console", "debug")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content := read()
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerFormatsSubjectAndFields(t *testing.T) {
	read, opts := newFileLogger(t, "console", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithImage(logging.WithRunID(context.Background(), "run-1"), "/images/uploads/a b.jpg")
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "variants"))
	log.Warn("encode failed",
		logging.String(logging.FieldEventType, "image_failed"),
		logging.Error(errors.New("bad header")),
		logging.Int("width", 800),
	)

	content := read()
	for _, want := range []string{
		"WARN variants (/images/uploads/a b.jpg): encode failed",
		"run_id=run-1",
		"event_type=image_failed",
		`error="bad header"`,
		"width=800",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	read, opts := newFileLogger(t, "json", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", logging.String(logging.FieldRunID, "abc"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["msg"] != "hello" || payload["level"] != "info" || payload[logging.FieldRunID] != "abc" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key in %#v", payload)
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		component, image, want string
	}{
		{"optimizer", "/a.jpg", "optimizer (/a.jpg)"},
		{"optimizer", "", "optimizer"},
		{"", "/a.jpg", "/a.jpg"},
		{" ", " ", ""},
	}
	for _, tt := range tests {
		if got := logging.FormatSubject(tt.component, tt.image); got != tt.want {
			t.Errorf("FormatSubject(%q, %q) = %q, want %q", tt.component, tt.image, got, tt.want)
		}
	}
}

func TestContextFieldsEmpty(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
	if _, ok := logging.RunIDFromContext(logging.WithRunID(context.Background(), "  ")); ok {
		t.Fatal("blank run id should not be reported")
	}
}
