package audit

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nineking424/nificdc-sub002/pkg/events"
	"github.com/nineking424/nificdc-sub002/pkg/log"
	"github.com/nineking424/nificdc-sub002/pkg/metrics"
	"github.com/nineking424/nificdc-sub002/pkg/storage"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Critical event types force an immediate flush of the ingestion
// buffer so they are durable before the request returns.
var criticalTypes = map[string]bool{
	"UnauthorizedAccessAttempt": true,
	"MultipleLoginFailures":     true,
	"PrivilegeEscalation":       true,
	"DataExport":                true,
	"SystemConfigChange":        true,
	"SecurityBreach":            true,
	"SuspiciousActivity":        true,
	"AdminAction":               true,
	"BulkDataAccess":            true,
	"AfterHoursAccess":          true,
}

// Config tunes the manager. Zero values fall back to defaults.
type Config struct {
	BufferSize      int
	FlushInterval   time.Duration
	HistorySize     int
	AlertRateWindow time.Duration
	MaxAlertsPerWin int
	Cooldown        time.Duration
	SinkRetries     int
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 30 * time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 1000
	}
	if c.AlertRateWindow <= 0 {
		c.AlertRateWindow = 5 * time.Minute
	}
	if c.MaxAlertsPerWin <= 0 {
		c.MaxAlertsPerWin = 10
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
	if c.SinkRetries <= 0 {
		c.SinkRetries = 2
	}
	return c
}

// Manager buffers audit events, flushes them to storage in batches and
// evaluates alert rules against every submitted event.
type Manager struct {
	cfg    Config
	store  storage.Store
	broker *events.Broker
	logger zerolog.Logger

	mu        sync.Mutex
	buffer    []*types.AuditEvent
	rules     []*types.AlertRule
	windows   map[string][]time.Time
	lastFired map[string]time.Time
	firings   map[string][]time.Time
	history   []*types.Alert
	sinks     map[string]Sink

	nowFn  func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewManager builds a manager wired to storage and the event bus. The
// broker may be nil in tests.
func NewManager(store storage.Store, broker *events.Broker, cfg Config) *Manager {
	m := &Manager{
		cfg:       cfg.withDefaults(),
		store:     store,
		broker:    broker,
		logger:    log.WithComponent("audit"),
		windows:   make(map[string][]time.Time),
		lastFired: make(map[string]time.Time),
		firings:   make(map[string][]time.Time),
		sinks:     make(map[string]Sink),
		nowFn:     time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	m.sinks["log"] = &LogSink{}
	if broker != nil {
		m.sinks["event"] = &EventSink{Broker: broker}
	}
	return m
}

// RegisterSink installs a dispatch sink for an action type.
func (m *Manager) RegisterSink(actionType string, s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks[actionType] = s
}

// ReloadRules re-reads enabled alert rules from storage.
func (m *Manager) ReloadRules() error {
	rules, err := m.store.ListAlertRules()
	if err != nil {
		return err
	}
	enabled := rules[:0]
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	m.mu.Lock()
	m.rules = enabled
	m.mu.Unlock()
	return nil
}

// Start launches the periodic flush loop.
func (m *Manager) Start() {
	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(m.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Flush()
			case <-m.stopCh:
				m.Flush()
				return
			}
		}
	}()
}

// Stop flushes the buffer and stops the loop.
func (m *Manager) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// Submit ingests one event. It is buffered for batch persistence,
// critical types flush immediately, and all enabled alert rules are
// evaluated against it.
func (m *Manager) Submit(event *types.AuditEvent) {
	m.submit(event, true)
}

func (m *Manager) submit(event *types.AuditEvent, evaluate bool) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.TS.IsZero() {
		event.TS = m.nowFn().UTC()
	}
	if event.Severity == "" {
		event.Severity = types.SeverityLow
	}

	m.mu.Lock()
	m.buffer = append(m.buffer, event)
	full := len(m.buffer) >= m.cfg.BufferSize
	metrics.AuditEventsBuffered.Set(float64(len(m.buffer)))
	m.mu.Unlock()

	if evaluate {
		m.evaluate(event)
	}
	if full || criticalTypes[event.EventType] {
		m.Flush()
	}
}

// Flush persists the buffered events in one batch. On storage failure
// the batch is retained for the next flush, bounded to ten buffers'
// worth with oldest-first eviction.
func (m *Manager) Flush() {
	m.mu.Lock()
	batch := m.buffer
	m.buffer = nil
	m.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	if err := m.store.AppendAuditEvents(batch); err != nil {
		m.logger.Error().Err(err).Int("events", len(batch)).Msg("Audit flush failed; retaining batch")
		m.mu.Lock()
		m.buffer = append(batch, m.buffer...)
		if limit := m.cfg.BufferSize * 10; len(m.buffer) > limit {
			m.buffer = m.buffer[len(m.buffer)-limit:]
		}
		metrics.AuditEventsBuffered.Set(float64(len(m.buffer)))
		m.mu.Unlock()
		return
	}
	m.mu.Lock()
	metrics.AuditEventsBuffered.Set(float64(len(m.buffer)))
	m.mu.Unlock()
}

// evaluate runs every rule over one event and fires matching alerts.
func (m *Manager) evaluate(event *types.AuditEvent) {
	m.mu.Lock()
	rules := m.rules
	m.mu.Unlock()

	for _, rule := range rules {
		if !matches(rule, event) {
			continue
		}
		if alert := m.tryFire(rule, event); alert != nil {
			m.dispatch(rule, alert)
		}
	}
}

// tryFire updates the rule's sliding window for the event's group and
// applies the threshold, global rate limit and cooldown gates.
func (m *Manager) tryFire(rule *types.AlertRule, event *types.AuditEvent) *types.Alert {
	now := event.TS
	group := groupKey(rule, event)
	windowKey := rule.ID + "|" + group

	m.mu.Lock()
	defer m.mu.Unlock()

	window := time.Duration(rule.Condition.TimeWindowMS) * time.Millisecond
	if window <= 0 {
		window = time.Minute
	}
	times := prune(m.windows[windowKey], now.Add(-window))
	times = append(times, now)
	m.windows[windowKey] = times

	threshold := rule.Condition.Threshold
	if threshold <= 0 {
		threshold = 1
	}
	if len(times) < threshold {
		return nil
	}

	// Global per-rule rate limit.
	maxPerWindow := rule.MaxAlertsPerWindow
	if maxPerWindow <= 0 {
		maxPerWindow = m.cfg.MaxAlertsPerWin
	}
	firings := prune(m.firings[rule.ID], now.Add(-m.cfg.AlertRateWindow))
	m.firings[rule.ID] = firings
	if len(firings) >= maxPerWindow {
		return nil
	}

	// Per-group cooldown.
	cooldown := time.Duration(rule.CooldownMS) * time.Millisecond
	if cooldown <= 0 {
		cooldown = m.cfg.Cooldown
	}
	if last, ok := m.lastFired[windowKey]; ok && now.Sub(last) < cooldown {
		return nil
	}

	m.lastFired[windowKey] = now
	m.firings[rule.ID] = append(firings, now)

	alert := &types.Alert{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Severity:    rule.Severity,
		GroupKey:    group,
		Count:       len(times),
		TriggeredAt: now,
		Event:       *event,
	}
	m.history = append(m.history, alert)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[len(m.history)-m.cfg.HistorySize:]
	}
	return alert
}

// dispatch records the alert as an audit event and delivers it to the
// rule's action sinks, best-effort with bounded retry.
func (m *Manager) dispatch(rule *types.AlertRule, alert *types.Alert) {
	metrics.AlertsFired.WithLabelValues(rule.Name).Inc()

	// The generated event skips rule evaluation so alerts can never
	// cascade into more alerts.
	m.submit(&types.AuditEvent{
		EventType: "SecurityAlertGenerated",
		Result:    types.ResultAlert,
		Severity:  alert.Severity,
		Resource:  types.Resource{Kind: "alert_rule", ID: rule.ID},
		Metadata: map[string]any{
			"alert_id":  alert.ID,
			"group_key": alert.GroupKey,
			"count":     alert.Count,
		},
	}, false)

	if m.broker != nil {
		m.broker.Publish(&events.Event{
			Channel: events.ChannelAlerts,
			Type:    events.EventAlertFired,
			Message: rule.Name,
			Data:    alert,
		})
	}

	m.mu.Lock()
	sinks := m.sinks
	m.mu.Unlock()

	for _, action := range rule.Actions {
		sink, ok := sinks[action.Type]
		if !ok {
			m.logger.Warn().Str("action", action.Type).Str("rule", rule.Name).
				Msg("No sink registered for alert action")
			continue
		}
		var err error
		for attempt := 0; attempt <= m.cfg.SinkRetries; attempt++ {
			if err = sink.Dispatch(alert, action); err == nil {
				break
			}
		}
		if err != nil {
			m.logger.Error().Err(err).Str("action", action.Type).Str("rule", rule.Name).
				Msg("Alert sink dispatch failed")
		}
	}
}

// History returns the retained alerts, newest last.
func (m *Manager) History() []*types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Alert, len(m.history))
	copy(out, m.history)
	return out
}

// Pending returns the number of events waiting for the next flush.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffer)
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// matches applies the rule's filters; empty filters pass everything.
func matches(rule *types.AlertRule, event *types.AuditEvent) bool {
	c := rule.Condition
	if len(c.EventTypes) > 0 && !containsString(c.EventTypes, event.EventType) {
		return false
	}
	if len(c.Roles) > 0 && !containsString(c.Roles, event.Actor.Role) {
		return false
	}
	if len(c.Actions) > 0 && !containsString(c.Actions, event.Action) {
		return false
	}
	if c.ResourceKind != "" && c.ResourceKind != event.Resource.Kind {
		return false
	}
	if len(c.Severities) > 0 && !containsString(c.Severities, string(event.Severity)) {
		return false
	}
	return true
}

// groupKey concatenates the event fields named in group_by. An empty
// group_by buckets everything together.
func groupKey(rule *types.AlertRule, event *types.AuditEvent) string {
	if len(rule.Condition.GroupBy) == 0 {
		return "*"
	}
	parts := make([]string, len(rule.Condition.GroupBy))
	for i, field := range rule.Condition.GroupBy {
		parts[i] = fieldValue(event, field)
	}
	return strings.Join(parts, "|")
}

func fieldValue(event *types.AuditEvent, field string) string {
	switch field {
	case "actor.user_id", "user_id":
		return event.Actor.UserID
	case "actor.role", "role":
		return event.Actor.Role
	case "ip":
		return event.IP
	case "event_type":
		return event.EventType
	case "action":
		return event.Action
	case "resource.kind":
		return event.Resource.Kind
	case "resource.id":
		return event.Resource.ID
	case "session_id":
		return event.SessionID
	default:
		return ""
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
