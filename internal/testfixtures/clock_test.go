package testfixtures

import (
	"testing"
	"time"

	"github.com/example/facility-reservations/internal/scheduler"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2025, time.June, 1, 23, 30, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(time.Hour)
	if !updated.Equal(start.Add(time.Hour)) {
		t.Fatalf("advance returned %v", updated)
	}
	if got, want := clock.Today(), (scheduler.Date{Year: 2025, Month: time.June, Day: 2}); got != want {
		t.Fatalf("expected today %v after crossing midnight, got %v", want, got)
	}

	clock.Set(start)
	if got := clock.NowFunc()(); !got.Equal(start) {
		t.Fatalf("expected %v, got %v", start, got)
	}
}
