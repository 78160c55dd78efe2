package model

import (
	"math"
	"time"
)

const hoursPerDay = 24

// DateOf strips the wall-clock part of t, keeping its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayOfWeek returns 0 for Monday through 6 for Sunday.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WholeDays returns the whole days elapsed from since to t, rounded toward
// negative infinity.
func WholeDays(since, t time.Time) int {
	return int(math.Floor(t.Sub(since).Hours() / hoursPerDay))
}

// DaysSinceRelease returns the whole days between the release date and t,
// clipped at zero. ok is false when the game has no release date.
func (g GameMeta) DaysSinceRelease(t time.Time) (days int, ok bool) {
	if !g.HasRelease {
		return 0, false
	}
	days = WholeDays(g.ReleaseDate, t)
	if days < 0 {
		days = 0
	}
	return days, true
}
