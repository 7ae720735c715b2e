package logger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"marsfeed/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "chatty"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
		{name: "json file output", cfg: &config.LoggingConfig{Level: "warn", Format: "json", File: filepath.Join(t.TempDir(), "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
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
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestTestLoggerCapturesFields(t *testing.T) {
	log := NewTestLogger()

	log.WithField("stage", "fetch").
		WithFields(map[string]interface{}{"day": "54"}).
		WithError(errors.New("boom")).
		Warn("Asset fetch failed")

	msgs := log.GetMessagesByLevel("WARN")
	require.Len(t, msgs, 1)
	assert.Equal(t, "fetch", msgs[0].Fields["stage"])
	assert.Equal(t, "54", msgs[0].Fields["day"])
	assert.Equal(t, "boom", msgs[0].Error)
	assert.True(t, log.HasMessage("Asset fetch failed"))
}

func TestHelpers(t *testing.T) {
	log := NewTestLogger()

	LogStageStart(log, "classify", map[string]interface{}{"references": 12})
	LogStageDone(log, "classify", 2*time.Second, map[string]interface{}{"days": 3})
	LogFetch(log, "54", "a.png", "failed", errors.New("timeout"))
	LogFetch(log, "54", "b.png", "downloaded", nil)

	msgs := log.GetMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "classify", msgs[0].Fields["stage"])
	assert.Equal(t, 12, msgs[0].Fields["references"])
	assert.Equal(t, 2*time.Second, msgs[1].Fields["duration"])
	assert.Equal(t, "WARN", msgs[2].Level)
	assert.Equal(t, "timeout", msgs[2].Error)
	assert.Equal(t, "DEBUG", msgs[3].Level)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("k", "v").WithError(errors.New("x")).Info("ignored")
		l.InfoWithFields("ignored", map[string]interface{}{"a": 1})
	})
}
