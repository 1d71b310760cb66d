package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

var anchor = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestHub(cfg Config) *Hub {
	h := NewHub(nil, nil, cfg)
	h.nowFn = func() time.Time { return anchor }
	return h
}

func record(h *Hub, name string, value float64, at time.Time) {
	h.Record(Sample{Name: name, Value: value, TS: at})
}

func TestRollupsAndQuery(t *testing.T) {
	h := newTestHub(Config{})

	// Twelve samples across two 1-minute windows.
	base := anchor.Add(-10 * time.Minute)
	for i := 0; i < 6; i++ {
		record(h, "latency_ms", float64(10+i), base.Add(time.Duration(i)*time.Second))
		record(h, "latency_ms", float64(100+i), base.Add(time.Minute+time.Duration(i)*time.Second))
	}
	h.Flush()
	h.Aggregate()

	buckets, err := h.Query("latency_ms", base.Add(-time.Minute), anchor, time.Minute, AggAvg, nil, 0)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	first := buckets[0].Stats
	assert.Equal(t, 10.0, first.Min)
	assert.Equal(t, 15.0, first.Max)
	assert.Equal(t, 6, first.Count)
	assert.InDelta(t, 12.5, first.Avg, 0.01)
	assert.InDelta(t, 12.5, buckets[0].Value, 0.01)

	// Buckets come back time-ordered.
	assert.True(t, buckets[0].Start.Before(buckets[1].Start))

	// The same samples roll up into a single 5-minute bucket; a max
	// projection reads the window peak.
	wide, err := h.Query("latency_ms", base.Add(-5*time.Minute), anchor, 5*time.Minute, AggMax, nil, 0)
	require.NoError(t, err)
	require.Len(t, wide, 1)
	assert.Equal(t, 12, wide[0].Stats.Count)
	assert.Equal(t, 105.0, wide[0].Value)
}

func TestQueryErrors(t *testing.T) {
	h := newTestHub(Config{})

	_, err := h.Query("nope", anchor.Add(-time.Hour), anchor, time.Minute, AggAvg, nil, 0)
	assert.True(t, errdefs.IsNotFound(err))

	record(h, "m", 1, anchor.Add(-time.Minute))
	h.Flush()
	h.Aggregate()
	_, err = h.Query("m", anchor.Add(-time.Hour), anchor, 42*time.Second, AggAvg, nil, 0)
	assert.True(t, errdefs.IsValidation(err))

	_, err = h.Query("m", anchor.Add(-time.Hour), anchor, time.Minute, Aggregation("stddev"), nil, 0)
	assert.True(t, errdefs.IsValidation(err))
}

func TestQueryFiltersByTags(t *testing.T) {
	h := newTestHub(Config{})

	at := anchor.Add(-5 * time.Minute)
	h.Record(Sample{Name: "records", Value: 10, Tags: map[string]string{"job": "a"}, TS: at})
	h.Record(Sample{Name: "records", Value: 30, Tags: map[string]string{"job": "b"}, TS: at})
	h.Flush()
	h.Aggregate()

	// The window holds one series per tag set.
	all, err := h.Query("records", anchor.Add(-time.Hour), anchor, time.Minute, AggSum, nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	only, err := h.Query("records", anchor.Add(-time.Hour), anchor, time.Minute, AggSum, map[string]string{"job": "b"}, 0)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, map[string]string{"job": "b"}, only[0].Tags)
	assert.Equal(t, 30.0, only[0].Value)
}

func TestRollupsOutliveRawRetention(t *testing.T) {
	h := newTestHub(Config{RawRetention: 24 * time.Hour})

	record(h, "m", 7, anchor.Add(-5*time.Minute))
	h.Flush()
	h.Aggregate()

	// Two days on: the raw window has pruned the sample, but the
	// hourly series keeps its bucket for a week.
	h.nowFn = func() time.Time { return anchor.Add(48 * time.Hour) }
	h.Flush()
	h.Aggregate()

	hourly, err := h.Query("m", anchor.Add(-time.Hour), anchor, time.Hour, AggAvg, nil, 0)
	require.NoError(t, err)
	require.Len(t, hourly, 1)
	assert.Equal(t, 7.0, hourly[0].Value)

	// The minute series only lives a day.
	minute, err := h.Query("m", anchor.Add(-time.Hour), anchor, time.Minute, AggAvg, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, minute)

	// A week and a day on, the hourly bucket expires too.
	h.nowFn = func() time.Time { return anchor.Add(8 * 24 * time.Hour) }
	h.Aggregate()
	hourly, err = h.Query("m", anchor.Add(-time.Hour), anchor, time.Hour, AggAvg, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, hourly)
}

func TestRealtimeStats(t *testing.T) {
	h := newTestHub(Config{})
	for i := 1; i <= 100; i++ {
		record(h, "qps", float64(i), anchor.Add(-time.Duration(i)*time.Second))
	}

	// Unflushed buffer samples still count.
	stats, err := h.RealtimeStats("qps", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 100.0, stats.Max)
	assert.Equal(t, 100, stats.Count)
	assert.InDelta(t, 50.5, stats.Avg, 0.01)
	assert.Equal(t, 95.0, stats.P95)

	// A narrow window sees only recent samples.
	stats, err = h.RealtimeStats("qps", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Count)
}

func TestRawRetention(t *testing.T) {
	h := newTestHub(Config{RawRetention: time.Hour})
	record(h, "m", 1, anchor.Add(-2*time.Hour))
	record(h, "m", 2, anchor.Add(-time.Minute))
	h.Flush()

	stats, err := h.RealtimeStats("m", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 2.0, stats.Min)
}

func TestAnomalies(t *testing.T) {
	h := newTestHub(Config{})

	// A day of steady samples, then one spike in the last hour.
	for i := 0; i < 200; i++ {
		record(h, "m", 50+float64(i%3), anchor.Add(-23*time.Hour).Add(time.Duration(i)*time.Minute))
	}
	record(h, "m", 51, anchor.Add(-30*time.Minute))
	record(h, "m", 500, anchor.Add(-10*time.Minute))
	h.Flush()

	out, err := h.Anomalies("m", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 500.0, out[0].Value)
}

type captureSubmitter struct {
	events []*types.AuditEvent
}

func (c *captureSubmitter) Submit(e *types.AuditEvent) { c.events = append(c.events, e) }

func TestThresholdEmitsPerformanceAlert(t *testing.T) {
	sub := &captureSubmitter{}
	h := NewHub(nil, sub, Config{})
	h.nowFn = func() time.Time { return anchor }

	warn, crit := 80.0, 95.0
	h.SetThreshold("cpu_pct", Threshold{Warning: &warn, Critical: &crit})

	record(h, "cpu_pct", 50, anchor)
	assert.Empty(t, sub.events)

	record(h, "cpu_pct", 85, anchor)
	require.Len(t, sub.events, 1)
	assert.Equal(t, "PerformanceAlert", sub.events[0].EventType)
	assert.Equal(t, types.SeverityMedium, sub.events[0].Severity)

	record(h, "cpu_pct", 99, anchor)
	require.Len(t, sub.events, 2)
	assert.Equal(t, types.SeverityCritical, sub.events[1].Severity)
}

func TestBufferFlushesWhenFull(t *testing.T) {
	h := newTestHub(Config{BufferSize: 5})
	for i := 0; i < 5; i++ {
		record(h, "m", float64(i), anchor.Add(-time.Second))
	}
	h.mu.Lock()
	buffered := len(h.buffer)
	rawCount := len(h.raw["m"])
	h.mu.Unlock()

	assert.Equal(t, 0, buffered)
	assert.Equal(t, 5, rawCount)
}
