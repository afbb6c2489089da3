package market

import (
	"fmt"
	"sync"
	"time"
)

// Remaining returns the time left until endsAt, never negative. A nil end
// time yields zero.
func Remaining(endsAt *time.Time, now time.Time) time.Duration {
	if endsAt == nil {
		return 0
	}
	d := endsAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders d as MM:SS below one hour and HH:MM:SS otherwise.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Countdown watches market end times on each heartbeat and reports a market
// exactly once when its remaining time reaches zero. Re-arming happens only
// when the market's end time changes, e.g. after a renewal.
type Countdown struct {
	mu    sync.Mutex
	fired map[string]time.Time // market id -> end time already reported
}

// NewCountdown creates an empty Countdown.
func NewCountdown() *Countdown {
	return &Countdown{fired: make(map[string]time.Time)}
}

// Tick checks every (id, endsAt) pair against now and returns the ids that
// expired since the previous call.
func (c *Countdown) Tick(now time.Time, ends map[string]time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []string
	for id, end := range ends {
		if Remaining(&end, now) > 0 {
			// Still running; forget any stale firing so a renewal re-arms.
			if prev, ok := c.fired[id]; ok && !prev.Equal(end) {
				delete(c.fired, id)
			}
			continue
		}
		if prev, ok := c.fired[id]; ok && prev.Equal(end) {
			continue
		}
		c.fired[id] = end
		expired = append(expired, id)
	}

	// Drop markets that are no longer tracked.
	for id := range c.fired {
		if _, ok := ends[id]; !ok {
			delete(c.fired, id)
		}
	}
	return expired
}
