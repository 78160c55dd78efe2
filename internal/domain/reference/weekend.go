// Package reference holds the read-only lookup tables joined into features.
//
// Both indexes are built once and never mutated, so concurrent readers need
// no locking.
package reference

import (
	"time"

	"github.com/okian/crowdcast/internal/domain/model"
)

// WeekendIndex maps a calendar date to its weekend flag.
type WeekendIndex struct {
	flags map[time.Time]bool
}

// NewWeekendIndex builds the index. When a date appears more than once the
// first row wins.
func NewWeekendIndex(rows []model.WeekendFlag) *WeekendIndex {
	idx := &WeekendIndex{flags: make(map[time.Time]bool, len(rows))}
	for _, r := range rows {
		d := model.DateOf(r.Date)
		if _, dup := idx.flags[d]; dup {
			continue
		}
		idx.flags[d] = r.IsWeekend
	}
	return idx
}

// IsWeekend reports the stored flag for the date of t. Dates missing from
// the table are treated as weekdays.
func (w *WeekendIndex) IsWeekend(t time.Time) bool {
	if w == nil {
		return false
	}
	return w.flags[model.DateOf(t)]
}

// Lookup is IsWeekend plus whether the date was present at all.
func (w *WeekendIndex) Lookup(t time.Time) (isWeekend, found bool) {
	if w == nil {
		return false, false
	}
	isWeekend, found = w.flags[model.DateOf(t)]
	return isWeekend, found
}

// Len returns the number of distinct dates.
func (w *WeekendIndex) Len() int {
	if w == nil {
		return 0
	}
	return len(w.flags)
}
