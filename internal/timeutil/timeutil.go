// Package timeutil normalizes report boundaries to the shop's local day.
// Bookkeeping days run on UTC+05:30 regardless of the server's timezone.
package timeutil

import "time"

var ShopLocation = time.FixedZone("UTC+05:30", 5*3600+30*60)

func StartOfDay(t time.Time) time.Time {
	local := t.In(ShopLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, ShopLocation)
}

func EndOfDay(t time.Time) time.Time {
	local := t.In(ShopLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), ShopLocation)
}

// DayRange widens [from, to] to full local days. Zero values default to today.
func DayRange(from, to time.Time, now time.Time) (time.Time, time.Time) {
	if from.IsZero() {
		from = now
	}
	if to.IsZero() {
		to = now
	}
	return StartOfDay(from), EndOfDay(to)
}
