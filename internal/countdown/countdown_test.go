package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances only when told to.
type fakeClock struct {
	current time.Time
}

func (f *fakeClock) now() time.Time {
	return f.current
}

func (f *fakeClock) advance(d time.Duration) {
	f.current = f.current.Add(d)
}

func TestCountdown(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cd := NewWithClock(2, clock.now)

	assert.Equal(t, 120, cd.Seconds())
	assert.Equal(t, "2:00", cd.Remaining())
	assert.False(t, cd.Expired())

	clock.advance(45 * time.Second)
	assert.Equal(t, 75, cd.Seconds())
	assert.Equal(t, "1:15", cd.Remaining())

	clock.advance(74 * time.Second)
	assert.Equal(t, 1, cd.Seconds())
	assert.Equal(t, "0:01", cd.Remaining())
	assert.False(t, cd.Expired())

	clock.advance(1 * time.Second)
	assert.True(t, cd.Expired())
	assert.Equal(t, "0:00", cd.Remaining())
}

func TestCountdownNeverNegative(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cd := NewWithClock(1, clock.now)

	clock.advance(10 * time.Minute)
	assert.Equal(t, 0, cd.Seconds())
	assert.Equal(t, "0:00", cd.Remaining())
	assert.True(t, cd.Expired())
}

func TestCountdownZeroAndNegativeMinutes(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	assert.True(t, NewWithClock(0, clock.now).Expired())
	assert.True(t, NewWithClock(-5, clock.now).Expired())
}

func TestCountdownLongWindow(t *testing.T) {
	clock := &fakeClock{current: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cd := NewWithClock(15, clock.now)

	assert.Equal(t, "15:00", cd.Remaining())
	clock.advance(10*time.Minute + 30*time.Second)
	assert.Equal(t, "4:30", cd.Remaining())
}
