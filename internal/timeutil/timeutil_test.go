package timeutil

import (
	"testing"
	"time"
)

func TestStartOfDayUsesShopZone(t *testing.T) {
	// 2026-03-10 20:00 UTC is already 2026-03-11 01:30 in the shop's zone.
	at := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	start := StartOfDay(at)

	if got := start.In(ShopLocation); got.Year() != 2026 || got.Month() != 3 || got.Day() != 11 {
		t.Fatalf("expected shop-local 2026-03-11, got %v", got)
	}
	if got := start.In(ShopLocation); got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
		t.Fatalf("expected local midnight, got %v", got)
	}
}

func TestEndOfDayIsInclusive(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := EndOfDay(at)

	local := end.In(ShopLocation)
	if local.Hour() != 23 || local.Minute() != 59 || local.Second() != 59 {
		t.Fatalf("expected end of local day, got %v", local)
	}
	if !end.After(at) {
		t.Fatalf("end of day %v should be after %v", end, at)
	}
}

func TestDayRangeDefaultsToToday(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	from, to := DayRange(time.Time{}, time.Time{}, now)

	if !from.Before(now) || !to.After(now) {
		t.Fatalf("expected [%v, %v] to bracket %v", from, to, now)
	}
	if from.In(ShopLocation).Day() != to.In(ShopLocation).Day() {
		t.Fatalf("default range should cover a single local day")
	}
}

func TestDayRangeSpansMultipleDays(t *testing.T) {
	from, to := DayRange(
		time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 3, 2, 0, 0, 0, time.UTC),
		time.Now(),
	)
	if !to.After(from.Add(48 * time.Hour)) {
		t.Fatalf("expected range longer than two days, got %v..%v", from, to)
	}
}
