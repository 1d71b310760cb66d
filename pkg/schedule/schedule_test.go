package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestNext(t *testing.T) {
	now := ts("2024-03-15T10:30:00Z")

	tests := []struct {
		name  string
		sched types.Schedule
		want  *time.Time
	}{
		{"manual never fires", types.Schedule{Kind: types.ScheduleManual}, nil},
		{"immediate fires now", types.Schedule{Kind: types.ScheduleImmediate}, &now},
		{"once in the future", types.Schedule{
			Kind: types.ScheduleOnce, FireAt: tsp("2024-03-16T00:00:00Z"),
		}, tsp("2024-03-16T00:00:00Z")},
		{"once in the past fires now", types.Schedule{
			Kind: types.ScheduleOnce, FireAt: tsp("2024-03-01T00:00:00Z"),
		}, &now},
		{"recurring before start", types.Schedule{
			Kind: types.ScheduleRecurring, Start: tsp("2024-04-01T00:00:00Z"),
			IntervalCount: 1, IntervalUnit: types.UnitDays,
		}, tsp("2024-04-01T00:00:00Z")},
		{"recurring aligns to next boundary", types.Schedule{
			Kind: types.ScheduleRecurring, Start: tsp("2024-03-15T00:00:00Z"),
			IntervalCount: 2, IntervalUnit: types.UnitHours,
		}, tsp("2024-03-15T12:00:00Z")},
		{"recurring minutes", types.Schedule{
			Kind: types.ScheduleRecurring, Start: tsp("2024-03-15T10:05:00Z"),
			IntervalCount: 15, IntervalUnit: types.UnitMinutes,
		}, tsp("2024-03-15T10:35:00Z")},
		{"recurring skips missed periods", types.Schedule{
			Kind: types.ScheduleRecurring, Start: tsp("2024-01-01T00:00:00Z"),
			IntervalCount: 1, IntervalUnit: types.UnitWeeks,
		}, tsp("2024-03-18T00:00:00Z")},
		{"recurring months via calendar", types.Schedule{
			Kind: types.ScheduleRecurring, Start: tsp("2024-01-31T00:00:00Z"),
			IntervalCount: 1, IntervalUnit: types.UnitMonths,
		}, tsp("2024-03-31T00:00:00Z")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.sched, now)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %s got %s", tt.want, got)
		})
	}
}

func TestNextOnBoundary(t *testing.T) {
	// Exactly on a boundary the boundary itself is the next fire time.
	now := ts("2024-03-15T10:00:00Z")
	got, err := Next(types.Schedule{
		Kind:          types.ScheduleRecurring,
		Start:         tsp("2024-03-15T09:00:00Z"),
		IntervalCount: 1,
		IntervalUnit:  types.UnitHours,
	}, now)
	require.NoError(t, err)
	assert.True(t, now.Equal(*got))
}

func TestNextCron(t *testing.T) {
	now := ts("2024-03-15T10:30:00Z")

	got, err := Next(types.Schedule{Kind: types.ScheduleCron, CronExpr: "0 */6 * * *"}, now)
	require.NoError(t, err)
	assert.True(t, ts("2024-03-15T12:00:00Z").Equal(*got))

	// Timezone applies: 09:00 in Seoul is 00:00 UTC.
	got, err = Next(types.Schedule{
		Kind: types.ScheduleCron, CronExpr: "0 9 * * *", Timezone: "Asia/Seoul",
	}, now)
	require.NoError(t, err)
	assert.True(t, ts("2024-03-16T00:00:00Z").Equal(*got))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		sched types.Schedule
		ok    bool
	}{
		{"manual", types.Schedule{Kind: types.ScheduleManual}, true},
		{"once without fire_at", types.Schedule{Kind: types.ScheduleOnce}, false},
		{"recurring zero interval", types.Schedule{
			Kind: types.ScheduleRecurring, Start: tsp("2024-01-01T00:00:00Z"),
			IntervalCount: 0, IntervalUnit: types.UnitHours,
		}, false},
		{"recurring bad unit", types.Schedule{
			Kind: types.ScheduleRecurring, Start: tsp("2024-01-01T00:00:00Z"),
			IntervalCount: 1, IntervalUnit: "fortnights",
		}, false},
		{"cron six fields rejected", types.Schedule{
			Kind: types.ScheduleCron, CronExpr: "0 0 0 * * *",
		}, false},
		{"cron ok", types.Schedule{Kind: types.ScheduleCron, CronExpr: "*/5 * * * *"}, true},
		{"cron bad timezone", types.Schedule{
			Kind: types.ScheduleCron, CronExpr: "* * * * *", Timezone: "Mars/Olympus",
		}, false},
		{"unknown kind", types.Schedule{Kind: "weekly"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sched)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errdefs.IsValidation(err))
			}
		})
	}
}
