package market

import (
	"testing"
	"time"
)

func TestRemaining_NeverNegative(t *testing.T) {
	now := time.Now()
	if got := Remaining(ptrTime(now.Add(-time.Hour)), now); got != 0 {
		t.Errorf("expected 0 for past end, got %v", got)
	}
	if got := Remaining(ptrTime(now), now); got != 0 {
		t.Errorf("expected 0 at end, got %v", got)
	}
	if got := Remaining(nil, now); got != 0 {
		t.Errorf("expected 0 for nil end, got %v", got)
	}
	if got := Remaining(ptrTime(now.Add(90*time.Second)), now); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                "00:00",
		59 * time.Second:                 "00:59",
		5*time.Minute + 7*time.Second:    "05:07",
		59*time.Minute + 59*time.Second:  "59:59",
		time.Hour:                        "01:00:00",
		26*time.Hour + 3*time.Minute + 4: "26:03:00",
		-time.Second:                     "00:00",
	}
	for in, want := range cases {
		if got := FormatRemaining(in); got != want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestCountdown_EdgeTriggered(t *testing.T) {
	c := NewCountdown()
	start := time.Now()
	end := start.Add(2 * time.Second)
	ends := map[string]time.Time{"m1": end}

	if got := c.Tick(start, ends); len(got) != 0 {
		t.Fatalf("expected no expiry before end, got %v", got)
	}
	if got := c.Tick(end, ends); len(got) != 1 || got[0] != "m1" {
		t.Fatalf("expected m1 to expire, got %v", got)
	}
	for i := 1; i <= 5; i++ {
		if got := c.Tick(end.Add(time.Duration(i)*time.Second), ends); len(got) != 0 {
			t.Fatalf("tick %d: expected no repeat expiry, got %v", i, got)
		}
	}
}

func TestCountdown_RearmsAfterRenewal(t *testing.T) {
	c := NewCountdown()
	now := time.Now()
	end := now.Add(-time.Second)
	if got := c.Tick(now, map[string]time.Time{"m1": end}); len(got) != 1 {
		t.Fatalf("expected first expiry, got %v", got)
	}

	renewed := now.Add(time.Minute)
	if got := c.Tick(now, map[string]time.Time{"m1": renewed}); len(got) != 0 {
		t.Fatalf("expected no expiry while renewed market runs, got %v", got)
	}
	if got := c.Tick(renewed, map[string]time.Time{"m1": renewed}); len(got) != 1 {
		t.Fatalf("expected renewed market to expire once, got %v", got)
	}
}
