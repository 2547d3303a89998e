// SPDX-License-Identifier: AGPL-3.0-only
package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Level: Warn})

	logger.Debugf("debug message")
	logger.Infof("info message")
	logger.Warnf("warn message")
	logger.Errorf("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("Expected debug message to be filtered")
	}
	if strings.Contains(out, "info message") {
		t.Error("Expected info message to be filtered")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("Expected warn message to be emitted")
	}
	if !strings.Contains(out, "error message") {
		t.Error("Expected error message to be emitted")
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Level: Debug})

	logger.WithField("session_id", "abc-123").Infof("hello")

	out := buf.String()
	if !strings.Contains(out, "session_id=abc-123") {
		t.Errorf("Expected field in output, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("Expected message in output, got %q", out)
	}

	// The parent logger must not inherit the field.
	buf.Reset()
	logger.Infof("plain")
	if strings.Contains(buf.String(), "session_id") {
		t.Error("Expected parent logger to be unchanged")
	}
}

func TestWithFieldChained(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Level: Debug}).
		WithField("a", 1).
		WithField("b", 2)

	logger.Infof("msg")

	out := buf.String()
	if !strings.Contains(out, "a=1") || !strings.Contains(out, "b=2") {
		t.Errorf("Expected both fields in output, got %q", out)
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "client.log")

	logger, err := FileLogger(path, Info)
	if err != nil {
		t.Fatalf("FileLogger: %v", err)
	}
	logger.Infof("persisted line")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read log file: %v", err)
	}
	if !strings.Contains(string(data), "persisted line") {
		t.Errorf("Expected log line in file, got %q", string(data))
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   Debug,
		"info":    Info,
		"warn":    Warn,
		"error":   Error,
		"fatal":   Fatal,
		"bogus":   Info,
		"":        Info,
		"DERANGE": Info,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDefaultLogger(t *testing.T) {
	orig := GetDefaultLogger()
	defer SetDefaultLogger(orig)

	var buf bytes.Buffer
	replacement := New(Options{Output: &buf, Level: Debug})
	SetDefaultLogger(replacement)

	if GetDefaultLogger() != replacement {
		t.Error("Expected GetDefaultLogger to return the replacement")
	}
}
