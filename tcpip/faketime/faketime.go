// Package faketime 提供手动推进的时钟，测试定时器时使用。
package faketime

import (
	"sync/atomic"
	"time"
)

// ManualClock implements tcpip.Clock. Time only moves when Advance is called.
type ManualClock struct {
	now int64
}

// NewManualClock returns a clock reading zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// NowMonotonic implements tcpip.Clock.NowMonotonic.
func (c *ManualClock) NowMonotonic() int64 {
	return atomic.LoadInt64(&c.now)
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	atomic.AddInt64(&c.now, int64(d))
}
