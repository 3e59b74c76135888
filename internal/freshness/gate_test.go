package freshness

import (
	"testing"
	"time"
)

func TestIsDueAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lastUpdated time.Time
		interval    time.Duration
		want        bool
	}{
		{"never refreshed", time.Time{}, time.Hour, true},
		{"never refreshed with zero interval", time.Time{}, 0, true},
		{"refreshed just now", now, 30 * time.Second, false},
		{"inside interval", now.Add(-29 * time.Second), 30 * time.Second, false},
		{"exactly at interval", now.Add(-30 * time.Second), 30 * time.Second, true},
		{"past interval", now.Add(-8 * 24 * time.Hour), 7 * 24 * time.Hour, true},
		{"within a week", now.Add(-6 * 24 * time.Hour), 7 * 24 * time.Hour, false},
		{"clock skew puts last update in future", now.Add(time.Minute), 30 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDueAt(tt.lastUpdated, now, tt.interval); got != tt.want {
				t.Errorf("IsDueAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGate_IsDueAndMarkRefreshed(t *testing.T) {
	current := time.Date(2024, 6, 1, 12, 0, 0, 987654321, time.UTC)
	g := &Gate{Interval: 30 * time.Second, Now: func() time.Time { return current }}

	if !g.IsDue(time.Time{}) {
		t.Fatal("Expected zero timestamp to be due")
	}

	last := g.MarkRefreshed()
	if last.Nanosecond() != 987000000 {
		t.Errorf("Expected millisecond truncation, got %d ns", last.Nanosecond())
	}
	if g.IsDue(last) {
		t.Error("Expected freshly refreshed entity not to be due")
	}

	current = current.Add(31 * time.Second)
	if !g.IsDue(last) {
		t.Error("Expected entity to be due after the interval")
	}
}

func TestGate_StaleBefore(t *testing.T) {
	now := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	g := &Gate{Interval: 7 * 24 * time.Hour, Now: func() time.Time { return now }}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := g.StaleBefore(); !got.Equal(want) {
		t.Errorf("StaleBefore() = %v, want %v", got, want)
	}
}

func TestNewGate_UsesWallClock(t *testing.T) {
	g := NewGate(time.Hour)
	if g.IsDue(time.Now()) {
		t.Error("Expected entity refreshed now not to be due")
	}
	if !g.IsDue(time.Now().Add(-2 * time.Hour)) {
		t.Error("Expected entity refreshed two hours ago to be due")
	}
}
