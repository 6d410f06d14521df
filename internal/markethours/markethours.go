// Package markethours knows the NSE cash-market calendar: which days are
// sessions and which daily bar a dataset should end on at a given moment.
// Bar dates are calendar days; their location is ignored.
package markethours

import "time"

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session close in IST. The daily bar of a session exists only after it.
const (
	CloseHour   = 15
	CloseMinute = 30
)

// maxGap bounds the walk to a neighbouring session (weekends plus the
// longest holiday run).
const maxGap = 10

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if the calendar day of t is a weekday and not a
// holiday.
func IsTradingDay(t time.Time) bool {
	d := civil(t)
	return IsWeekday(d) && !IsHoliday(d)
}

// LastSession returns the most recent session whose close has passed at now,
// as a calendar day at UTC midnight.
func LastSession(now time.Time) time.Time {
	ist := now.In(IST)
	d := civil(ist)
	closed := ist.Hour()*60+ist.Minute() >= CloseHour*60+CloseMinute
	if closed && IsTradingDay(d) {
		return d
	}
	return PrevSession(d)
}

// PrevSession returns the session before the calendar day of t.
func PrevSession(t time.Time) time.Time {
	d := civil(t)
	for i := 0; i < maxGap; i++ {
		d = d.AddDate(0, 0, -1)
		if IsTradingDay(d) {
			return d
		}
	}
	return d
}

// SessionsBetween counts sessions after from up to and including to.
// It is zero when to is not after from.
func SessionsBetween(from, to time.Time) int {
	from, to = civil(from), civil(to)
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			n++
		}
	}
	return n
}

// Behind returns how many sessions a dataset ending on last is missing at
// now.
func Behind(last, now time.Time) int {
	return SessionsBetween(last, LastSession(now))
}

// Stale reports whether a dataset ending on last misses more than allowed
// sessions at now.
func Stale(last, now time.Time, allowed int) bool {
	return Behind(last, now) > allowed
}

// civil drops the clock and location of t, keeping its calendar day.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
