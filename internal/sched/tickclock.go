// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
	"time"
)

// TickClock paces the simulated timer against the wall clock. Each value
// sent on Ch is the wall-clock tick number, starting at 1.
type TickClock struct {
	Ch     chan Tick
	count  atomic.Uint64
	missed atomic.Int64
	stop   chan struct{}
}

// NewTickClock creates a clock whose channel buffers at most buffer ticks.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan Tick, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks every interval.
// A tick the consumer is too slow to take is counted as missed, not queued.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := Tick(c.count.Add(1))
				select {
				case c.Ch <- n:
				default:
					c.missed.Add(1)
				}
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Stop ends the clock and closes Ch.
func (c *TickClock) Stop() {
	close(c.stop)
}

// Count returns how many wall-clock ticks have elapsed.
func (c *TickClock) Count() Tick {
	return Tick(c.count.Load())
}

// Missed returns how many wall-clock ticks were dropped because the kernel lagged.
func (c *TickClock) Missed() int64 {
	return c.missed.Load()
}
