package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// cronParser accepts standard 5-field expressions (minute hour dom
// month dow). Seconds-resolution expressions are rejected.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks that the schedule's active variant is well-formed.
func Validate(s types.Schedule) error {
	switch s.Kind {
	case types.ScheduleManual, types.ScheduleImmediate:
		return nil
	case types.ScheduleOnce:
		if s.FireAt == nil {
			return errdefs.Validation("once schedule requires fire_at")
		}
		return nil
	case types.ScheduleRecurring:
		if s.Start == nil {
			return errdefs.Validation("recurring schedule requires start")
		}
		if s.IntervalCount < 1 {
			return errdefs.Validation("recurring schedule requires interval_count >= 1")
		}
		switch s.IntervalUnit {
		case types.UnitMinutes, types.UnitHours, types.UnitDays, types.UnitWeeks, types.UnitMonths:
			return nil
		default:
			return errdefs.Validation("unknown interval unit %q", s.IntervalUnit)
		}
	case types.ScheduleCron:
		if _, err := cronParser.Parse(s.CronExpr); err != nil {
			return errdefs.Validation("invalid cron expression %q: %v", s.CronExpr, err)
		}
		if _, err := location(s.Timezone); err != nil {
			return err
		}
		return nil
	default:
		return errdefs.Validation("unknown schedule kind %q", s.Kind)
	}
}

// Next computes the next fire time strictly derived from the schedule.
// Manual schedules never fire on their own and return nil. Immediate
// and pending once schedules return now; the scheduler clears the slot
// after the single dispatch.
func Next(s types.Schedule, now time.Time) (*time.Time, error) {
	switch s.Kind {
	case types.ScheduleManual:
		return nil, nil
	case types.ScheduleImmediate:
		t := now
		return &t, nil
	case types.ScheduleOnce:
		if s.FireAt == nil {
			return nil, errdefs.Validation("once schedule requires fire_at")
		}
		if s.FireAt.After(now) {
			t := *s.FireAt
			return &t, nil
		}
		// Past-dated once schedules fire right away rather than never.
		t := now
		return &t, nil
	case types.ScheduleRecurring:
		if err := Validate(s); err != nil {
			return nil, err
		}
		t := nextRecurring(s, now)
		return &t, nil
	case types.ScheduleCron:
		sched, err := cronParser.Parse(s.CronExpr)
		if err != nil {
			return nil, errdefs.Validation("invalid cron expression %q: %v", s.CronExpr, err)
		}
		loc, err := location(s.Timezone)
		if err != nil {
			return nil, err
		}
		t := sched.Next(now.In(loc))
		return &t, nil
	default:
		return nil, errdefs.Validation("unknown schedule kind %q", s.Kind)
	}
}

// nextRecurring finds the earliest start + k*interval at or after now,
// k >= 0. Month intervals step via AddDate to respect calendar length;
// the fixed units step arithmetically.
func nextRecurring(s types.Schedule, now time.Time) time.Time {
	start := *s.Start
	if !start.Before(now) {
		return start
	}
	if s.IntervalUnit == types.UnitMonths {
		// Always offset from start so a Jan 31 anchor yields Mar 31,
		// not the drifted Mar 02 that cumulative stepping through the
		// short February would produce.
		for k := 1; ; k++ {
			t := start.AddDate(0, k*s.IntervalCount, 0)
			if !t.Before(now) {
				return t
			}
		}
	}
	var step time.Duration
	switch s.IntervalUnit {
	case types.UnitMinutes:
		step = time.Minute
	case types.UnitHours:
		step = time.Hour
	case types.UnitDays:
		step = 24 * time.Hour
	case types.UnitWeeks:
		step = 7 * 24 * time.Hour
	}
	step *= time.Duration(s.IntervalCount)
	k := now.Sub(start) / step
	if t := start.Add(k * step); !t.Before(now) {
		return t
	}
	return start.Add((k + 1) * step)
}

func location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errdefs.Validation("unknown timezone %q", tz)
	}
	return loc, nil
}
