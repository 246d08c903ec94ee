package bonus

import "time"

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameCalendarYear(a, b time.Time) bool {
	return a.Year() == b.Year()
}

func inWindow(t, from, until time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !until.IsZero() && t.After(until) {
		return false
	}
	return true
}
