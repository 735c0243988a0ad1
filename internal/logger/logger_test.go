package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Run("Should accept known levels in any case", func(t *testing.T) {
		for in, want := range map[string]LogLevel{
			"debug":    DebugLevel,
			"INFO":     InfoLevel,
			" warn ":   WarnLevel,
			"Error":    ErrorLevel,
			"disabled": DisabledLevel,
			"":         InfoLevel,
		} {
			got, err := ParseLevel(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("Should reject unknown levels", func(t *testing.T) {
		_, err := ParseLevel("verbose")
		require.ErrorContains(t, err, `unknown log level "verbose"`)
	})
}

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	testCases := []struct {
		level    LogLevel
		expected int
	}{
		{DebugLevel, -4},
		{InfoLevel, 0},
		{WarnLevel, 4},
		{ErrorLevel, 8},
		{LogLevel("unknown"), 0},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, int(tc.level.ToCharmlogLevel()), "level %s", tc.level)
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write text output", func(t *testing.T) {
		var buf bytes.Buffer

		log := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})
		log.Info("click recorded", "userId", "u1")

		assert.Contains(t, buf.String(), "click recorded")
		assert.Contains(t, buf.String(), "userId=u1")
	})

	t.Run("Should write JSON output when enabled", func(t *testing.T) {
		var buf bytes.Buffer

		log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})
		log.Info("click recorded", "userId", "u1")

		out := strings.TrimSpace(buf.String())
		assert.True(t, strings.HasPrefix(out, "{") && strings.HasSuffix(out, "}"), out)
		assert.Contains(t, out, `"userId":"u1"`)
	})

	t.Run("Should use defaults for a nil config", func(t *testing.T) {
		require.NotNil(t, NewLogger(nil))
	})
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer

	base := NewLogger(&Config{Level: InfoLevel, Output: &buf})
	base.With("component", "httpapi").Info("listening")
	base.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "component=httpapi")
	assert.NotContains(t, lines[1], "component")
}

func TestLoggerLevels(t *testing.T) {
	t.Run("Should respect level filtering", func(t *testing.T) {
		var buf bytes.Buffer

		log := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		log.Debug("debug message")
		log.Info("info message")
		log.Warn("warn message")
		log.Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("Should discard everything when disabled", func(t *testing.T) {
		var buf bytes.Buffer

		log := NewLogger(&Config{Level: DisabledLevel, Output: &buf})
		log.Error("error message")

		assert.Empty(t, buf.String())
	})
}
