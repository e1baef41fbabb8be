// Package countdown derives a payment deadline countdown from a
// server-supplied minutes-to-expire value. Purely derived state: no
// ticker, no persistence; callers sample it as often as they render.
package countdown

import (
	"fmt"
	"time"
)

// Clock supplies the current time. Tests inject a fake.
type Clock func() time.Time

// Countdown counts down from a deadline to zero, never below.
type Countdown struct {
	deadline time.Time
	now      Clock
}

// New starts a countdown of the given number of minutes from now.
// Zero or negative minutes yield an already-expired countdown, which is
// how reservations without an expiry window behave.
func New(minutes int) *Countdown {
	return NewWithClock(minutes, time.Now)
}

// NewWithClock is New with an injected clock.
func NewWithClock(minutes int, now Clock) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{
		deadline: now().Add(time.Duration(minutes) * time.Minute),
		now:      now,
	}
}

// Seconds returns whole seconds remaining, clamped at zero.
func (c *Countdown) Seconds() int {
	remaining := int(c.deadline.Sub(c.now()) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Remaining formats the time left as "m:ss".
func (c *Countdown) Remaining() string {
	secs := c.Seconds()
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Expired reports whether the countdown reached zero. Local expiry is a
// client-side approximation; callers reconcile with the server before
// treating it as authoritative.
func (c *Countdown) Expired() bool {
	return c.Seconds() == 0
}
