// Package schedule computes job fire times.
//
// A schedule is a tagged union with five variants: manual (never fires
// on its own), immediate (fires once as soon as it is saved), once
// (fires at a fixed instant), recurring (start plus a fixed interval)
// and cron (standard 5-field expression, evaluated in the schedule's
// timezone).
//
// Next is pure: it derives the next fire time from the schedule and
// the supplied clock only, never from the wall clock, which keeps the
// scheduler deterministic under test. Recurring schedules always
// return the earliest interval boundary at or after now, so a driver
// that was down for several periods fires once and realigns instead
// of replaying missed runs.
package schedule
