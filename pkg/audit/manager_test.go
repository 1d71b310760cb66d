package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nineking424/nificdc-sub002/pkg/storage"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

func newTestManager(t *testing.T, cfg Config) (*Manager, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := NewManager(store, nil, cfg)
	return m, store
}

func loginFailure(userID, ip string, at time.Time) *types.AuditEvent {
	return &types.AuditEvent{
		TS:        at,
		EventType: "LoginFailure",
		Actor:     types.Actor{UserID: userID, Role: "user"},
		Result:    types.ResultFailure,
		Severity:  types.SeverityMedium,
		IP:        ip,
	}
}

func bruteForceRule() *types.AlertRule {
	return &types.AlertRule{
		ID:       "rule-1",
		Name:     "login brute force",
		Severity: types.SeverityHigh,
		Enabled:  true,
		Condition: types.AlertCondition{
			EventTypes:   []string{"LoginFailure"},
			Threshold:    3,
			TimeWindowMS: 60_000,
			GroupBy:      []string{"actor.user_id"},
		},
	}
}

func TestBufferedFlush(t *testing.T) {
	m, store := newTestManager(t, Config{BufferSize: 5})
	at := time.Now().UTC()

	for i := 0; i < 4; i++ {
		m.Submit(loginFailure("u-1", "1.2.3.4", at))
	}
	assert.Equal(t, 4, m.Pending())

	// Fifth event reaches the buffer size and flushes.
	m.Submit(loginFailure("u-1", "1.2.3.4", at))
	assert.Equal(t, 0, m.Pending())

	stored, err := store.ListAuditEvents(storage.AuditFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestCriticalEventFlushesImmediately(t *testing.T) {
	m, store := newTestManager(t, Config{BufferSize: 100})

	m.Submit(&types.AuditEvent{
		EventType: "PrivilegeEscalation",
		Actor:     types.Actor{UserID: "u-1", Role: "user"},
		Result:    types.ResultBlocked,
		Severity:  types.SeverityCritical,
	})

	assert.Equal(t, 0, m.Pending())
	stored, err := store.ListAuditEvents(storage.AuditFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "PrivilegeEscalation", stored[0].EventType)
}

func TestThresholdFiresAlert(t *testing.T) {
	m, store := newTestManager(t, Config{BufferSize: 100})
	require.NoError(t, store.CreateAlertRule(bruteForceRule()))
	require.NoError(t, m.ReloadRules())

	at := time.Now().UTC()
	for i := 0; i < 2; i++ {
		m.Submit(loginFailure("u-1", "1.2.3.4", at.Add(time.Duration(i)*time.Second)))
	}
	assert.Empty(t, m.History())

	m.Submit(loginFailure("u-1", "1.2.3.4", at.Add(2*time.Second)))
	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, "rule-1", history[0].RuleID)
	assert.Equal(t, "u-1", history[0].GroupKey)
	assert.Equal(t, 3, history[0].Count)
	assert.Equal(t, types.SeverityHigh, history[0].Severity)

	// The alert itself lands in the audit buffer as a generated event.
	found := false
	m.Flush()
	stored, err := store.ListAuditEvents(storage.AuditFilter{Limit: 50})
	require.NoError(t, err)
	for _, e := range stored {
		if e.EventType == "SecurityAlertGenerated" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGroupIsolation(t *testing.T) {
	m, store := newTestManager(t, Config{BufferSize: 100})
	require.NoError(t, store.CreateAlertRule(bruteForceRule()))
	require.NoError(t, m.ReloadRules())

	at := time.Now().UTC()
	// Two failures each for two users: neither group reaches 3.
	for i := 0; i < 2; i++ {
		m.Submit(loginFailure("u-1", "1.2.3.4", at))
		m.Submit(loginFailure("u-2", "1.2.3.4", at))
	}
	assert.Empty(t, m.History())

	m.Submit(loginFailure("u-2", "1.2.3.4", at.Add(time.Second)))
	require.Len(t, m.History(), 1)
	assert.Equal(t, "u-2", m.History()[0].GroupKey)
}

func TestCooldownSuppressesRefiring(t *testing.T) {
	m, store := newTestManager(t, Config{BufferSize: 100, Cooldown: time.Minute})
	require.NoError(t, store.CreateAlertRule(bruteForceRule()))
	require.NoError(t, m.ReloadRules())

	at := time.Now().UTC()
	for i := 0; i < 6; i++ {
		m.Submit(loginFailure("u-1", "1.2.3.4", at.Add(time.Duration(i)*time.Second)))
	}
	// Events 3..6 all satisfy the threshold but only the first firing
	// escapes the cooldown.
	assert.Len(t, m.History(), 1)

	// After the cooldown the same group may fire again.
	late := at.Add(2 * time.Minute)
	for i := 0; i < 3; i++ {
		m.Submit(loginFailure("u-1", "1.2.3.4", late.Add(time.Duration(i)*time.Second)))
	}
	assert.Len(t, m.History(), 2)
}

func TestGlobalRateLimit(t *testing.T) {
	rule := bruteForceRule()
	rule.MaxAlertsPerWindow = 2
	rule.CooldownMS = 1 // effectively off
	rule.Condition.Threshold = 1
	rule.Condition.GroupBy = []string{"ip"}

	m, store := newTestManager(t, Config{BufferSize: 100})
	require.NoError(t, store.CreateAlertRule(rule))
	require.NoError(t, m.ReloadRules())

	at := time.Now().UTC()
	// Distinct groups dodge the cooldown; the per-rule window caps at 2.
	for i := 0; i < 5; i++ {
		ip := string(rune('a'+i)) + ".example"
		m.Submit(loginFailure("u-1", ip, at.Add(time.Duration(i)*time.Second)))
	}
	assert.Len(t, m.History(), 2)
}

func TestRuleFilters(t *testing.T) {
	rule := bruteForceRule()
	rule.Condition.Roles = []string{"admin"}
	rule.Condition.Threshold = 1

	m, store := newTestManager(t, Config{BufferSize: 100})
	require.NoError(t, store.CreateAlertRule(rule))
	require.NoError(t, m.ReloadRules())

	m.Submit(loginFailure("u-1", "1.2.3.4", time.Now().UTC())) // role=user
	assert.Empty(t, m.History())

	e := loginFailure("u-9", "1.2.3.4", time.Now().UTC())
	e.Actor.Role = "admin"
	m.Submit(e)
	assert.Len(t, m.History(), 1)
}

func TestDisabledRulesAreSkipped(t *testing.T) {
	rule := bruteForceRule()
	rule.Enabled = false
	rule.Condition.Threshold = 1

	m, store := newTestManager(t, Config{BufferSize: 100})
	require.NoError(t, store.CreateAlertRule(rule))
	require.NoError(t, m.ReloadRules())

	m.Submit(loginFailure("u-1", "1.2.3.4", time.Now().UTC()))
	assert.Empty(t, m.History())
}

func TestHistoryBounded(t *testing.T) {
	rule := bruteForceRule()
	rule.Condition.Threshold = 1
	rule.CooldownMS = 1
	rule.MaxAlertsPerWindow = 1000
	rule.Condition.GroupBy = []string{"ip"}

	m, store := newTestManager(t, Config{BufferSize: 1000, HistorySize: 10})
	require.NoError(t, store.CreateAlertRule(rule))
	require.NoError(t, m.ReloadRules())

	at := time.Now().UTC()
	for i := 0; i < 25; i++ {
		e := loginFailure("u-1", "distinct-ip", at.Add(time.Duration(i)*time.Minute))
		e.IP = string(rune('a' + i%26))
		m.Submit(e)
	}
	assert.Len(t, m.History(), 10)
}
