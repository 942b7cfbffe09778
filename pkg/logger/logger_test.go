package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.InfoLevel).With(String("component", "test"))

	log.Info("computed",
		String("date", "20260114"),
		Int("buckets", 15),
		Float64("close", 19875.5),
		Duration("took", 1500*time.Millisecond),
		Bool("cached", false),
		Strings("brokers", []string{"a", "b"}),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "computed", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "20260114", entry["date"])
	assert.Equal(t, 15.0, entry["buckets"])
	assert.Equal(t, 19875.5, entry["close"])
	assert.Equal(t, 1500.0, entry["took"])
	assert.Equal(t, false, entry["cached"])
	assert.Equal(t, "a, b", entry["brokers"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel)
	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Error("ignored", Error(errors.New("x"))) })
}
