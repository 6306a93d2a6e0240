package clock

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	clk := RealClock{}
	if clk.Now().IsZero() {
		t.Fatalf("expected non-zero time")
	}
}

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)

	if !clk.Now().Equal(start) {
		t.Fatalf("expected start time")
	}

	clk.Advance(1500 * time.Millisecond)
	want := start.Add(1500 * time.Millisecond)
	if !clk.Now().Equal(want) {
		t.Fatalf("expected %v got %v", want, clk.Now())
	}
}

func TestFakeClockTimersFireInOrder(t *testing.T) {
	clk := NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	var got []string

	clk.AfterFunc(1000*time.Millisecond, func() {
		got = append(got, "first")
		clk.AfterFunc(500*time.Millisecond, func() { got = append(got, "nested") })
	})
	clk.AfterFunc(200*time.Millisecond, func() { got = append(got, "early") })

	clk.Advance(999 * time.Millisecond)
	if len(got) != 1 || got[0] != "early" {
		t.Fatalf("expected only early timer, got %v", got)
	}

	clk.Advance(time.Second)
	if len(got) != 3 || got[1] != "first" || got[2] != "nested" {
		t.Fatalf("unexpected order %v", got)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clk.Pending())
	}
}

func TestFakeTimerStop(t *testing.T) {
	clk := NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	fired := false
	tm := clk.AfterFunc(time.Second, func() { fired = true })

	if !tm.Stop() {
		t.Fatalf("expected Stop to report a pending timer")
	}
	if tm.Stop() {
		t.Fatalf("second Stop should report false")
	}
	clk.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer fired")
	}
}
