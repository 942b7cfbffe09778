package logger

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchPublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
	err     error
}

func (p *batchPublisher) PublishLogs(_ context.Context, topic string, entries []AggregatedLogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, entries)
	return p.err
}

func (p *batchPublisher) snapshot() [][]AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]AggregatedLogEntry(nil), p.batches...)
}

func newTestCollector(pub Publisher, threshold int) *LogCollector {
	return NewLogCollector(CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: threshold,
		Topic:          "shootdown.logs",
		Publisher:      pub,
	})
}

func TestCollectorAggregatesRepeats(t *testing.T) {
	pub := &batchPublisher{}
	c := newTestCollector(pub, 10)

	fields := map[string]interface{}{"date": "20260114"}
	c.AddLog("warn", "view publish failed", fields, "usecase.go:1")
	c.AddLog("warn", "view publish failed", map[string]interface{}{"date": "20260114"}, "usecase.go:1")
	c.AddLog("warn", "view publish failed", map[string]interface{}{"date": "20260113"}, "usecase.go:1")
	c.Close()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "shootdown.logs", pub.topic)
	require.Len(t, batches[0], 2)

	counts := map[string]int{}
	for _, e := range batches[0] {
		counts[e.Fields["date"].(string)] = e.Count
	}
	assert.Equal(t, map[string]int{"20260114": 2, "20260113": 1}, counts)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &batchPublisher{}
	c := newTestCollector(pub, 2)
	defer c.Close()

	c.AddLog("error", "a", nil, "")
	c.AddLog("error", "a", nil, "")
	assert.Empty(t, pub.snapshot())

	c.AddLog("error", "b", nil, "")
	assert.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, pub.snapshot()[0], 2)
}

func TestCollectorTracksFirstAndLastSeen(t *testing.T) {
	pub := &batchPublisher{}
	c := newTestCollector(pub, 10)

	now := time.Date(2026, 1, 14, 16, 30, 0, 0, time.UTC)
	c.mutex.Lock()
	c.now = func() time.Time { return now }
	c.mutex.Unlock()

	c.AddLog("warn", "view cache set failed", nil, "")
	now = now.Add(time.Minute)
	c.AddLog("warn", "view cache set failed", nil, "")
	c.Close()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	e := batches[0][0]
	assert.Equal(t, 2, e.Count)
	assert.Equal(t, time.Date(2026, 1, 14, 16, 30, 0, 0, time.UTC), e.FirstSeen)
	assert.Equal(t, time.Date(2026, 1, 14, 16, 31, 0, 0, time.UTC), e.LastSeen)
}

func TestCollectorPublishErrorDoesNotBlockClose(t *testing.T) {
	pub := &batchPublisher{err: errors.New("broker down")}
	c := newTestCollector(pub, 10)
	c.AddLog("error", "x", nil, "")
	c.Close()
	assert.Len(t, pub.snapshot(), 1)
}

func TestLoggerFeedsCollector(t *testing.T) {
	pub := &batchPublisher{}
	c := newTestCollector(pub, 100)
	log := NewWithWriter(io.Discard, zerolog.InfoLevel).WithCollector(c).With(String("env", "test"))

	log.Info("not collected")
	for i := 0; i < 2; i++ {
		log.Warn("view publish failed", String("date", "20260114"), Error(errors.New("timeout")))
	}
	log.Error("recompute failed", Int("rows", 0))
	c.Close()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)

	byLevel := map[string]AggregatedLogEntry{}
	for _, e := range batches[0] {
		byLevel[e.Level] = e
	}
	warn := byLevel["warn"]
	assert.Equal(t, "view publish failed", warn.Message)
	assert.Equal(t, 2, warn.Count)
	assert.Equal(t, "test", warn.Fields["env"])
	assert.Equal(t, "20260114", warn.Fields["date"])
	assert.Equal(t, "timeout", warn.Fields["error"])
	assert.Contains(t, warn.Caller, "collector_test.go")

	assert.Equal(t, "recompute failed", byLevel["error"].Message)
	assert.Equal(t, int64(0), byLevel["error"].Fields["rows"])
}

func TestLoggerSkipsCollectorBelowLevel(t *testing.T) {
	pub := &batchPublisher{}
	c := newTestCollector(pub, 100)
	log := NewWithWriter(io.Discard, zerolog.ErrorLevel).WithCollector(c)

	log.Warn("filtered")
	c.Close()
	assert.Empty(t, pub.snapshot())
}
