package umpire

import (
	"sync"
	"time"
)

//Clock gives the elapsed time the engine compares dropout and display windows against.
//It must never go backwards.
type Clock interface {
	Now() time.Duration
}

//Ticker is implemented by clocks that advance once per frame rather than with real time
type Ticker interface {
	Tick()
}

//MonotonicClock measures time since it was created, for live sources
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

//FrameClock derives time from the frame count, so a video file gives the same verdicts however fast it is processed
type FrameClock struct {
	interval time.Duration
	frame    int64
}

//NewFrameClock returns a clock for the given frame rate. Non-positive rates fall back to 30 fps.
func NewFrameClock(fps float64) *FrameClock {
	if fps <= 0 {
		fps = 30
	}
	return &FrameClock{interval: time.Duration(float64(time.Second) / fps)}
}

func NewFrameClockInterval(interval time.Duration) *FrameClock {
	return &FrameClock{interval: interval}
}

func (c *FrameClock) Now() time.Duration {
	return time.Duration(c.frame) * c.interval
}

func (c *FrameClock) Tick() {
	c.frame++
}

//ManualClock is set by hand, for tests and replays
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(d time.Duration) {
	c.mu.Lock()
	c.now = d
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}
