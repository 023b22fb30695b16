package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var calls int32
	d := New(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, d.Pending())
}

func TestDebouncerSeparateWindows(t *testing.T) {
	var calls int32
	d := New(10*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	d.Trigger()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 2*time.Millisecond)
	d.Trigger()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 2*time.Millisecond)
}

func TestDebouncerStopCancels(t *testing.T) {
	var calls int32
	d := New(20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestDebouncerFlush(t *testing.T) {
	var calls int32
	d := New(time.Hour, func() { atomic.AddInt32(&calls, 1) })

	d.Flush()
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	d.Trigger()
	assert.True(t, d.Pending())
	d.Flush()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, d.Pending())
}
