package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetup_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, false, &buf)

	Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected 'test message' in output, got: %s", output)
	}
}

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, true, &buf)

	Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "{") {
		t.Errorf("Expected JSON output, got: %s", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected 'test message' in output, got: %s", output)
	}
}

func TestSetup_VerboseMode(t *testing.T) {
	var buf bytes.Buffer
	Setup(true, false, &buf)

	if !Verbose {
		t.Error("Verbose flag should be true after Setup(true, ...)")
	}

	Debug("debug message")

	if !strings.Contains(buf.String(), "debug message") {
		t.Errorf("Debug message should appear in verbose mode, got: %s", buf.String())
	}
}

func TestSetup_NonVerboseMode(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, false, &buf)

	if Verbose {
		t.Error("Verbose flag should be false after Setup(false, ...)")
	}

	Debug("debug message")

	if strings.Contains(buf.String(), "debug message") {
		t.Errorf("Debug message should NOT appear in non-verbose mode, got: %s", buf.String())
	}
}

func TestSetup_SetsDefault(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, false, &buf)

	slog.Info("via default")

	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("slog.Default should write to the configured sink, got: %s", buf.String())
	}
}

func TestSetupLevel_Warn(t *testing.T) {
	var buf bytes.Buffer
	SetupLevel(slog.LevelWarn, false, &buf)

	Info("quiet")
	Warn("loud")

	output := buf.String()
	if strings.Contains(output, "quiet") {
		t.Errorf("Info should be filtered at warn level, got: %s", output)
	}
	if !strings.Contains(output, "loud") {
		t.Errorf("Expected 'loud' in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, false, &buf)

	Component("limiter").Info("component test")

	output := buf.String()
	if !strings.Contains(output, "component=limiter") {
		t.Errorf("Expected component attribute in output, got: %s", output)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, false, &buf)

	logger := With("upstream", "algod")
	logger.Info("with test")

	output := buf.String()
	if !strings.Contains(output, "with test") || !strings.Contains(output, "upstream") {
		t.Errorf("Expected attributes in output, got: %s", output)
	}
}

func TestSetup_NilWriter(t *testing.T) {
	Setup(false, false, nil)

	if Logger == nil {
		t.Error("Logger should not be nil after Setup with nil writer")
	}
}

func TestUserOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	origOut, origErr := UserOut, UserErr
	UserOut, UserErr = &out, &errOut
	t.Cleanup(func() { UserOut, UserErr = origOut, origErr })

	UserInfo("Upstream: %s", "http://127.0.0.1:8082")
	UserSuccess("healthy")
	UserWarning("careful")
	UserError("failed: %d", 2)

	if got, want := out.String(), "ℹ Upstream: http://127.0.0.1:8082\n✓ healthy\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got, want := errOut.String(), "⚠ careful\n✗ failed: 2\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}
