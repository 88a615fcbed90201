package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock(epoch)
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, 0, clock.Pending())
}

func TestManualClock_FiresInDeadlineOrder(t *testing.T) {
	clock := NewManualClock(epoch)
	var order []string
	clock.AfterFunc(30*time.Millisecond, func() { order = append(order, "late") })
	clock.AfterFunc(10*time.Millisecond, func() { order = append(order, "early") })
	clock.AfterFunc(10*time.Millisecond, func() { order = append(order, "early2") })

	assert.Equal(t, 2, clock.Advance(20*time.Millisecond))
	assert.Equal(t, []string{"early", "early2"}, order)
	assert.Equal(t, epoch.Add(20*time.Millisecond), clock.Now())

	assert.Equal(t, 1, clock.Advance(10*time.Millisecond))
	assert.Equal(t, []string{"early", "early2", "late"}, order)
}

func TestManualClock_StopPreventsFiring(t *testing.T) {
	clock := NewManualClock(epoch)
	fired := false
	timer := clock.AfterFunc(time.Millisecond, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	clock.Advance(time.Second)
	assert.False(t, fired)
}

func TestManualClock_CallbackCanRearm(t *testing.T) {
	clock := NewManualClock(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			clock.AfterFunc(time.Millisecond, tick)
		}
	}
	clock.AfterFunc(time.Millisecond, tick)

	assert.Equal(t, 3, clock.Advance(10*time.Millisecond))
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, clock.Pending())
}
