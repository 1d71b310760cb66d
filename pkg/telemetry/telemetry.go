package telemetry

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/events"
	"github.com/nineking424/nificdc-sub002/pkg/metrics"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// MetricType classifies how a sample stream should be interpreted.
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
	TypeSummary   MetricType = "summary"
)

// Sample is one telemetry data point.
type Sample struct {
	Name  string            `json:"name"`
	Type  MetricType        `json:"type,omitempty"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
	TS    time.Time         `json:"ts"`
}

// Stats is the summary shape shared by roll-up buckets and realtime
// queries.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Sum    float64 `json:"sum"`
	Count  int     `json:"count"`
}

// Bucket is one roll-up window for one tag set. Value carries the
// statistic a query projected out of Stats.
type Bucket struct {
	Start time.Time         `json:"start"`
	Tags  map[string]string `json:"tags,omitempty"`
	Stats Stats             `json:"stats"`
	Value float64           `json:"value"`
}

// Aggregation selects which statistic a query projects from each
// bucket.
type Aggregation string

const (
	AggAvg    Aggregation = "avg"
	AggMin    Aggregation = "min"
	AggMax    Aggregation = "max"
	AggSum    Aggregation = "sum"
	AggCount  Aggregation = "count"
	AggMedian Aggregation = "median"
	AggP95    Aggregation = "p95"
)

func (a Aggregation) valid() bool {
	switch a {
	case AggAvg, AggMin, AggMax, AggSum, AggCount, AggMedian, AggP95:
		return true
	}
	return false
}

func (s Stats) project(a Aggregation) float64 {
	switch a {
	case AggMin:
		return s.Min
	case AggMax:
		return s.Max
	case AggSum:
		return s.Sum
	case AggCount:
		return float64(s.Count)
	case AggMedian:
		return s.Median
	case AggP95:
		return s.P95
	default:
		return s.Avg
	}
}

// Threshold configures per-metric alerting bounds.
type Threshold struct {
	Warning  *float64 `json:"warning,omitempty"`
	Critical *float64 `json:"critical,omitempty"`
}

// AlertSubmitter is the slice of the audit manager the hub needs.
type AlertSubmitter interface {
	Submit(event *types.AuditEvent)
}

// Intervals the aggregator maintains, smallest first.
var rollupIntervals = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	6 * time.Hour,
	24 * time.Hour,
}

// Retention per roll-up interval: sub-hourly kept a day, hourly and
// six-hourly a week, daily a month.
func retentionFor(interval time.Duration) time.Duration {
	switch {
	case interval < time.Hour:
		return 24 * time.Hour
	case interval < 24*time.Hour:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Config tunes the hub. Zero values fall back to defaults.
type Config struct {
	BufferSize    int
	FlushInterval time.Duration
	RawRetention  time.Duration
	ZScore        float64
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 30 * time.Second
	}
	if c.RawRetention <= 0 {
		c.RawRetention = 24 * time.Hour
	}
	if c.ZScore <= 0 {
		c.ZScore = 2
	}
	return c
}

// Hub collects samples, maintains raw rings and periodic roll-ups, and
// serves queries over both.
type Hub struct {
	cfg    Config
	broker *events.Broker
	alerts AlertSubmitter

	mu         sync.Mutex
	buffer     []Sample
	raw        map[string][]Sample
	rollups    map[string]map[time.Duration][]Bucket
	thresholds map[string]Threshold

	nowFn  func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHub builds a hub. The broker and alert submitter may be nil.
func NewHub(broker *events.Broker, alerts AlertSubmitter, cfg Config) *Hub {
	return &Hub{
		cfg:        cfg.withDefaults(),
		broker:     broker,
		alerts:     alerts,
		raw:        make(map[string][]Sample),
		rollups:    make(map[string]map[time.Duration][]Bucket),
		thresholds: make(map[string]Threshold),
		nowFn:      time.Now,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// SetThreshold installs warning/critical bounds for a metric.
func (h *Hub) SetThreshold(metric string, t Threshold) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.thresholds[metric] = t
}

// Start launches the flush and aggregation loops.
func (h *Hub) Start() {
	go func() {
		defer close(h.doneCh)
		flush := time.NewTicker(h.cfg.FlushInterval)
		aggregate := time.NewTicker(time.Minute)
		defer flush.Stop()
		defer aggregate.Stop()
		for {
			select {
			case <-flush.C:
				h.Flush()
			case <-aggregate.C:
				h.Aggregate()
			case <-h.stopCh:
				h.Flush()
				return
			}
		}
	}()
}

// Stop flushes outstanding samples and stops the loops.
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

// Record ingests one sample. The buffer flushes when full.
func (h *Hub) Record(s Sample) {
	if s.TS.IsZero() {
		s.TS = h.nowFn().UTC()
	}
	metrics.TelemetrySamples.Inc()

	h.mu.Lock()
	h.buffer = append(h.buffer, s)
	full := len(h.buffer) >= h.cfg.BufferSize
	threshold, hasThreshold := h.thresholds[s.Name]
	h.mu.Unlock()

	if hasThreshold {
		h.checkThreshold(s, threshold)
	}
	if full {
		h.Flush()
	}
}

// Flush moves buffered samples into the per-metric raw rings and prunes
// anything past raw retention.
func (h *Hub) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.nowFn().Add(-h.cfg.RawRetention)
	for _, s := range h.buffer {
		h.raw[s.Name] = append(h.raw[s.Name], s)
	}
	h.buffer = nil
	for name, samples := range h.raw {
		h.raw[name] = pruneSamples(samples, cutoff)
	}

	if h.broker != nil {
		h.broker.Publish(&events.Event{
			Channel: events.ChannelMetrics,
			Type:    events.EventMetricsSnapshot,
		})
	}
}

// Aggregate folds the raw windows into each roll-up series and prunes
// every series by its own retention horizon. Buckets already rolled up
// outlive the raw samples they were built from, so coarse series keep
// their longer retention.
func (h *Hub) Aggregate() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.nowFn()
	names := make(map[string]bool, len(h.raw)+len(h.rollups))
	for name := range h.raw {
		names[name] = true
	}
	for name := range h.rollups {
		names[name] = true
	}
	for name := range names {
		byInterval, ok := h.rollups[name]
		if !ok {
			byInterval = make(map[time.Duration][]Bucket)
			h.rollups[name] = byInterval
		}
		for _, interval := range rollupIntervals {
			rebuilt := buildBuckets(h.raw[name], interval)
			cutoff := now.Add(-retentionFor(interval))
			byInterval[interval] = mergeBuckets(byInterval[interval], rebuilt, cutoff)
		}
	}
}

// mergeBuckets overlays rebuilt buckets onto an existing series. A
// rebuilt bucket replaces the stored one for the same window and tag
// set; stored buckets older than the raw window survive untouched
// until their retention cutoff.
func mergeBuckets(existing, rebuilt []Bucket, cutoff time.Time) []Bucket {
	merged := make(map[string]Bucket, len(existing)+len(rebuilt))
	for _, b := range existing {
		if b.Start.After(cutoff) {
			merged[bucketKey(b)] = b
		}
	}
	for _, b := range rebuilt {
		if b.Start.After(cutoff) {
			merged[bucketKey(b)] = b
		}
	}
	out := make([]Bucket, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return tagKey(out[i].Tags) < tagKey(out[j].Tags)
	})
	return out
}

func bucketKey(b Bucket) string {
	return strconv.FormatInt(b.Start.Unix(), 10) + "|" + tagKey(b.Tags)
}

// tagKey is a deterministic encoding of a tag set.
func tagKey(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}

// Query returns time-ordered roll-up buckets for a metric, filtered to
// buckets whose tag set contains every requested tag and projected
// through the requested aggregation. An empty aggregation means avg.
func (h *Hub) Query(metric string, start, end time.Time, interval time.Duration, agg Aggregation, tags map[string]string, limit int) ([]Bucket, error) {
	if agg == "" {
		agg = AggAvg
	}
	if !agg.valid() {
		return nil, errdefs.Validation("unknown aggregation %q", agg)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	byInterval, ok := h.rollups[metric]
	if !ok {
		return nil, errdefs.NotFound("metric", metric)
	}
	buckets, ok := byInterval[interval]
	if !ok {
		return nil, errdefs.Validation("unsupported roll-up interval %s", interval)
	}

	var out []Bucket
	for _, b := range buckets {
		if b.Start.Before(start) || b.Start.After(end) {
			continue
		}
		if !matchTags(b.Tags, tags) {
			continue
		}
		b.Value = b.Stats.project(agg)
		out = append(out, b)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matchTags(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// RealtimeStats summarizes raw samples of a metric over the trailing
// window.
func (h *Hub) RealtimeStats(metric string, window time.Duration) (Stats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.nowFn().Add(-window)
	var values []float64
	for _, s := range h.buffer {
		if s.Name == metric && s.TS.After(cutoff) {
			values = append(values, s.Value)
		}
	}
	for _, s := range h.raw[metric] {
		if s.TS.After(cutoff) {
			values = append(values, s.Value)
		}
	}
	if len(values) == 0 {
		return Stats{}, errdefs.NotFound("metric", metric)
	}
	return computeStats(values), nil
}

// Anomalies flags last-hour raw samples outside mean ± z·stddev, where
// mean and stddev come from the trailing 24 h of raw data.
func (h *Hub) Anomalies(metric string, zScore float64) ([]Sample, error) {
	if zScore <= 0 {
		zScore = h.cfg.ZScore
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	samples := h.raw[metric]
	if len(samples) == 0 {
		return nil, errdefs.NotFound("metric", metric)
	}

	now := h.nowFn()
	dayCutoff := now.Add(-24 * time.Hour)
	var sum, sumSq float64
	n := 0
	for _, s := range samples {
		if s.TS.After(dayCutoff) {
			sum += s.Value
			sumSq += s.Value * s.Value
			n++
		}
	}
	if n < 2 {
		return nil, nil
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	stddev := math.Sqrt(variance)

	hourCutoff := now.Add(-time.Hour)
	var out []Sample
	for _, s := range samples {
		if !s.TS.After(hourCutoff) {
			continue
		}
		if math.Abs(s.Value-mean) > zScore*stddev {
			out = append(out, s)
		}
	}
	return out, nil
}

// checkThreshold emits a PerformanceAlert audit event when a sample
// crosses its metric's configured bounds.
func (h *Hub) checkThreshold(s Sample, t Threshold) {
	if h.alerts == nil {
		return
	}
	severity := types.Severity("")
	switch {
	case t.Critical != nil && s.Value >= *t.Critical:
		severity = types.SeverityCritical
	case t.Warning != nil && s.Value >= *t.Warning:
		severity = types.SeverityMedium
	default:
		return
	}
	h.alerts.Submit(&types.AuditEvent{
		EventType: "PerformanceAlert",
		Result:    types.ResultAlert,
		Severity:  severity,
		Resource:  types.Resource{Kind: "metric", ID: s.Name},
		Metadata: map[string]any{
			"value": s.Value,
			"tags":  s.Tags,
		},
	})
}

func pruneSamples(samples []Sample, cutoff time.Time) []Sample {
	kept := samples[:0]
	for _, s := range samples {
		if s.TS.After(cutoff) {
			kept = append(kept, s)
		}
	}
	return kept
}

// buildBuckets groups samples into fixed windows aligned to the epoch,
// one series per tag set.
func buildBuckets(samples []Sample, interval time.Duration) []Bucket {
	type group struct {
		start  time.Time
		tags   map[string]string
		values []float64
	}
	groups := make(map[string]*group)
	for _, s := range samples {
		start := s.TS.Truncate(interval)
		key := strconv.FormatInt(start.Unix(), 10) + "|" + tagKey(s.Tags)
		g, ok := groups[key]
		if !ok {
			g = &group{start: start.UTC(), tags: s.Tags}
			groups[key] = g
		}
		g.values = append(g.values, s.Value)
	}

	out := make([]Bucket, 0, len(groups))
	for _, g := range groups {
		out = append(out, Bucket{
			Start: g.start,
			Tags:  g.tags,
			Stats: computeStats(g.values),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return tagKey(out[i].Tags) < tagKey(out[j].Tags)
	})
	return out
}

func computeStats(values []float64) Stats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := Stats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Count:  len(sorted),
		Median: percentile(sorted, 50),
		P95:    percentile(sorted, 95),
	}
	for _, v := range sorted {
		s.Sum += v
	}
	s.Avg = s.Sum / float64(len(sorted))
	return s
}

// percentile over a sorted slice using nearest-rank.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
