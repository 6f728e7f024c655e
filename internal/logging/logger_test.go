package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(&Config{Level: level, Colored: false})
	l.output = &buf
	return l, &buf
}

func TestLoggerLevelFiltering(t *testing.T) {
	l, buf := newTestLogger(LevelWarn)

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}

func TestLoggerComponentPrefix(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)

	cl := l.WithComponent("llamacpp")
	cl.output = buf
	cl.Info("request sent")

	assert.Contains(t, buf.String(), "[llamacpp]")
}

func TestLoggerFields(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)

	fl := l.WithField("status", 502)
	fl.output = buf
	fl.Warn("backend failure")

	assert.Contains(t, buf.String(), "status=502")
}

func TestLoggerFieldsDoNotLeakToParent(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)

	_ = l.WithField("model", "deepseek-chat")
	l.Info("plain line")

	assert.NotContains(t, buf.String(), "model=")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestStripANSI(t *testing.T) {
	in := "\033[32mINFO\033[0m hello"
	out := stripANSI(in)
	assert.Equal(t, "INFO hello", out)
	assert.False(t, strings.ContainsRune(out, '\033'))
}

func TestDisableConsoleOutputKeepsFileLogging(t *testing.T) {
	old := Global()
	defer SetGlobal(old)

	logPath := filepath.Join(t.TempDir(), "session.log")
	l, buf := newTestLogger(LevelDebug)
	assert.NoError(t, l.SetFileOutput(logPath))
	SetGlobal(l)

	Info("before prompt")
	DisableConsoleOutput()
	Info("during prompt")
	EnableConsoleOutput()

	out := buf.String()
	assert.Contains(t, out, "before prompt")
	assert.NotContains(t, out, "during prompt", "console must stay quiet while a prompt owns the terminal")

	data, err := os.ReadFile(logPath)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "during prompt")
}

func TestEnableVerbose(t *testing.T) {
	old := Global()
	defer SetGlobal(old)

	l, buf := newTestLogger(LevelInfo)
	SetGlobal(l)

	Debug("hidden")
	EnableVerbose()
	Debug("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}
