// Package freshness decides when a user or catalog entity is due for another refresh.
package freshness

import "time"

// Gate enforces a minimum interval between refreshes.
type Gate struct {
	Interval time.Duration
	Now      func() time.Time
}

func NewGate(interval time.Duration) *Gate {
	return &Gate{Interval: interval, Now: time.Now}
}

// IsDueAt reports whether lastUpdated is at least interval before now.
// A zero lastUpdated (never refreshed) is always due.
func IsDueAt(lastUpdated, now time.Time, interval time.Duration) bool {
	if lastUpdated.IsZero() {
		return true
	}
	return now.Sub(lastUpdated) >= interval
}

// IsDue reports whether an entity last refreshed at lastUpdated needs a refresh.
func (g *Gate) IsDue(lastUpdated time.Time) bool {
	return IsDueAt(lastUpdated, g.now(), g.Interval)
}

// MarkRefreshed returns the refresh instant for the caller to record.
// Millisecond precision matches how timestamps are persisted.
func (g *Gate) MarkRefreshed() time.Time {
	return g.now().UTC().Truncate(time.Millisecond)
}

// StaleBefore returns the cutoff instant: anything refreshed earlier is due.
func (g *Gate) StaleBefore() time.Time {
	return g.now().Add(-g.Interval)
}

func (g *Gate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}
