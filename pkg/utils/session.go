package utils

import "time"

// SessionStart returns the start of the trading session containing t.
// Sessions are daily: VWAP accumulation and day-trade counting reset here.
func SessionStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameSession reports whether a and b fall within the same trading session.
func SameSession(a, b time.Time) bool {
	return SessionStart(a).Equal(SessionStart(b))
}
