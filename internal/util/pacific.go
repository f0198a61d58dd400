package util

import "time"

// The YouTube Data API quota day rolls over at midnight Pacific time. The offsets
// here are computed from the fixed US DST rules (second Sunday of March through
// first Sunday of November) instead of tzdata, so the day boundary is identical
// on every host regardless of installed zone databases.

var (
	pstZone = time.FixedZone("PST", -8*60*60)
	pdtZone = time.FixedZone("PDT", -7*60*60)
)

// nthSundayUTC: the n-th Sunday of the given month, at the given UTC hour.
func nthSundayUTC(year int, month time.Month, n, hourUTC int) time.Time {
	first := time.Date(year, month, 1, hourUTC, 0, 0, 0, time.UTC)
	offset := (7 - int(first.Weekday())) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}

// pacificDST reports whether Pacific daylight time is in effect at instant t.
// DST starts at 2:00 PST (10:00 UTC) on the second Sunday of March and ends at
// 2:00 PDT (9:00 UTC) on the first Sunday of November.
func pacificDST(t time.Time) bool {
	year := t.UTC().Year()
	start := nthSundayUTC(year, time.March, 2, 10)
	end := nthSundayUTC(year, time.November, 1, 9)
	u := t.UTC()
	return !u.Before(start) && u.Before(end)
}

// ToPacific: converts t to Pacific time using the fixed DST rules.
func ToPacific(t time.Time) time.Time {
	if pacificDST(t) {
		return t.In(pdtZone)
	}
	return t.In(pstZone)
}

// NowPacific: current time in Pacific time.
func NowPacific() time.Time {
	return ToPacific(time.Now())
}

// PacificDateKey: the quota-day key ("2006-01-02") for instant t.
func PacificDateKey(t time.Time) string {
	return ToPacific(t).Format("2006-01-02")
}

// NextPacificMidnight: the next quota-day boundary strictly after t.
// Midnight always exists on both sides of a DST transition (transitions happen
// at 02:00), but the zone in effect at the boundary can differ from the zone at
// t, so the candidate is re-evaluated once with the boundary's own offset.
func NextPacificMidnight(t time.Time) time.Time {
	p := ToPacific(t)
	candidate := time.Date(p.Year(), p.Month(), p.Day()+1, 0, 0, 0, 0, p.Location())
	if pacificDST(candidate) != pacificDST(p) {
		zone := pstZone
		if pacificDST(candidate) {
			zone = pdtZone
		}
		candidate = time.Date(p.Year(), p.Month(), p.Day()+1, 0, 0, 0, 0, zone)
	}
	return candidate
}
