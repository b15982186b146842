package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" Warn ":  LevelWarn,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"off":     LevelNone,
		"trace":   LevelInfo,
		"":        LevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), "ParseLevel(%q)", input)
	}
}

func TestLevelMapsToLogrus(t *testing.T) {
	tests := []struct {
		level  Level
		name   string
		logrus logrus.Level
	}{
		{LevelDebug, "DEBUG", logrus.DebugLevel},
		{LevelInfo, "INFO", logrus.InfoLevel},
		{LevelWarn, "WARN", logrus.WarnLevel},
		{LevelError, "ERROR", logrus.ErrorLevel},
		{LevelNone, "NONE", logrus.InfoLevel},
		{Level(42), "UNKNOWN", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.level.String())
			assert.Equal(t, tt.logrus, tt.level.logrusLevel())
		})
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  []string
	}{
		{LevelDebug, []string{"d", "i", "w", "e"}},
		{LevelInfo, []string{"i", "w", "e"}},
		{LevelError, []string{"e"}},
		{LevelNone, nil},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWriter(tt.level, &buf, "")
			l.Debug("msg-d")
			l.Info("msg-i")
			l.Warn("msg-w")
			l.Error("msg-e")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				if idx := strings.Index(line, "msg-"); idx >= 0 {
					got = append(got, line[idx+4:])
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithPrefixSetsComponent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriter(LevelInfo, &buf, "sandbox")
	child := parent.WithPrefix("confine")

	assert.Equal(t, "sandbox", parent.entry.Data["component"])
	assert.Equal(t, "sandbox:confine", child.entry.Data["component"])

	child.Info("applied")
	assert.Contains(t, buf.String(), "[INFO] [sandbox:confine] applied")

	buf.Reset()
	NewWriter(LevelInfo, &buf, "").Info("bare")
	assert.Contains(t, buf.String(), "[INFO] bare")
	assert.NotContains(t, buf.String(), "component")
}

func TestSetLevelUpdatesLogrus(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(LevelInfo, &buf, "")
	l.Debug("hidden")

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	assert.Equal(t, logrus.DebugLevel, l.entry.Logger.GetLevel())
	l.Debug("shown")

	l.SetLevel(LevelNone)
	l.Error("silenced")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[DEBUG] shown")
	assert.NotContains(t, out, "silenced")
}

func TestNewCreatesLogDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "state", "toolgate", "toolgate.log")
	l, err := New(LevelInfo, logPath, "cli")
	require.NoError(t, err)

	l.Info("started")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "closing twice is harmless")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[INFO] [cli] started")
}

func TestNewDisabledSkipsFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "none.log")
	l, err := New(LevelNone, logPath, "")
	require.NoError(t, err)
	l.Error("nothing")
	require.NoError(t, l.Close())
	assert.NoFileExists(t, logPath)
}

func TestPlainFormatter(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.Local)
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    ts,
		Level:   logrus.WarnLevel,
		Message: "rejected path",
		Data: logrus.Fields{
			"component": "sandbox",
			"root":      "/work",
			"code":      "outside_allowed_roots",
		},
	}

	out, err := PlainFormatter{}.Format(entry)
	require.NoError(t, err)
	assert.Equal(t,
		"2026-03-04 05:06:07.008 [WARN] [sandbox] rejected path code=outside_allowed_roots root=/work\n",
		string(out))
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(LevelDebug, &buf, "tools").WithField("tool", "edit_file")

	l.Debug("applied %d edits", 2)

	line := buf.String()
	assert.Contains(t, line, "[DEBUG] [tools] applied 2 edits tool=edit_file")
}

func TestInitReplacesGlobal(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "global.log")
	require.NoError(t, Init(LevelWarn, logPath))
	t.Cleanup(func() {
		_ = Init(LevelNone, "")
	})

	Info("dropped")
	Warn("kept %s", "warning")
	require.NoError(t, Global().Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "dropped")
	assert.Contains(t, string(content), "kept warning")
}
