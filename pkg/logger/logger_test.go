package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"canvasfetch/pkg/config"

	"github.com/rs/zerolog"
)

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: level}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}
	return log, &buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufferLogger(t, "warn")

	log.Info("quiet")
	log.Warn("loud")

	if strings.Contains(buf.String(), "quiet") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "loud") {
		t.Error("Warn message not found in output")
	}
}

func TestFieldChaining(t *testing.T) {
	log, buf := newBufferLogger(t, "debug")

	log.
		WithField("run_id", "abc").
		WithFields(map[string]interface{}{"source": "met", "budget": 30}).
		InfoWithFields("session started", map[string]interface{}{"page": 2})

	output := buf.String()
	for _, want := range []string{`"run_id":"abc"`, `"source":"met"`, `"budget":30`, `"page":2`, `"app":"canvasfetch"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %s in output %s", want, output)
		}
	}
}

func TestWithFieldDoesNotLeak(t *testing.T) {
	log, buf := newBufferLogger(t, "info")

	_ = log.WithField("child", true)
	log.Info("parent")

	if strings.Contains(buf.String(), "child") {
		t.Error("Child field leaked into parent logger")
	}
}

func TestWithError(t *testing.T) {
	log, buf := newBufferLogger(t, "info")

	if log.WithError(nil) != log {
		t.Error("WithError(nil) should return the same logger")
	}

	log.WithError(errors.New("connection reset")).Error("fetch failed")
	if !strings.Contains(buf.String(), "connection reset") {
		t.Error("Error message not found in output")
	}
}

func TestHelpers(t *testing.T) {
	log := NewTestLogger()

	LogClassification(log, "aic", "42", "rejected", "orientation")
	LogSessionEnd(log, "aic", "exhausted", map[string]interface{}{"fetched": 3})
	LogRequest(log, "aic", "GET", "http://x", 503, 12)

	msgs := log.GetMessages()
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Fields["outcome"] != "rejected" {
		t.Errorf("Expected outcome field, got %v", msgs[0].Fields)
	}
	if msgs[1].Fields["fetched"] != 3 || msgs[1].Fields["state"] != "exhausted" {
		t.Errorf("Expected merged counters, got %v", msgs[1].Fields)
	}
	if msgs[2].Level != "WARN" {
		t.Errorf("Expected server error to log at WARN, got %s", msgs[2].Level)
	}
}

func TestTestLoggerChildrenShareSink(t *testing.T) {
	log := NewTestLogger()
	child := log.WithField("source", "met").WithError(errors.New("boom"))
	child.Warn("careful")

	warns := log.GetMessagesByLevel("WARN")
	if len(warns) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(warns))
	}
	if warns[0].Fields["source"] != "met" || warns[0].Error == nil {
		t.Errorf("Unexpected captured message %+v", warns[0])
	}
	if !log.HasMessage("careful") {
		t.Error("HasMessage should find child message")
	}

	log.Clear()
	if len(log.GetMessages()) != 0 {
		t.Error("Clear should drop messages")
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "error"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	if GetLogger() == nil {
		t.Error("GetLogger() returned nil")
	}

	Info("info message")
	WithField("key", "value").Info("with field")
	WithFields(map[string]interface{}{"k1": "v1"}).Info("with fields")
	WithError(errors.New("test")).Error("with error")
}
