// Package timex provides pure wall-clock arithmetic for daily schedules.
//
// All functions take an explicit "now" and an explicit *time.Location so the
// organizational timezone is a parameter rather than ambient host state, and
// so callers (and tests) can pin the clock.
package timex

import "time"

// Until returns the duration from now until the next occurrence of
// hour:min in loc. If hour:min has not yet passed today (in loc) the target
// is today, otherwise tomorrow.
//
// The result is always strictly positive: when now is exactly the target
// instant the duration is a full day, so a daily job never fires twice in
// the same instant.
func Until(now time.Time, loc *time.Location, hour, min int) time.Duration {
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), hour, min, 0, 0, loc)
	if !target.After(local) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(local)
}

// LastOccurrence returns the latest instant at or before now whose local
// time-of-day in loc is hour:min. It anchors lookback windows such as
// "messages since yesterday 20:00".
func LastOccurrence(now time.Time, loc *time.Location, hour, min int) time.Time {
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), hour, min, 0, 0, loc)
	if target.After(local) {
		target = target.AddDate(0, 0, -1)
	}
	return target
}
